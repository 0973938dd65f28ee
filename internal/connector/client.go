package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/mkrause/beacon/internal/models"
)

const (
	// defaultTokenURL is the Bot Framework login endpoint for single-tenant
	// and multi-tenant bots alike.
	defaultTokenURL = "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"
	// defaultScope is the connector API scope for client-credentials tokens.
	defaultScope = "https://api.botframework.com/.default"
	// sendTimeout bounds one delivery attempt end to end.
	sendTimeout = 15 * time.Second
)

// Client is the production Sender. It authenticates against the Bot
// Framework login endpoint with the app's client credentials and posts
// message activities to the service URL recorded in each conversation
// reference.
type Client struct {
	appID string
	http  *http.Client
}

// ClientOpts holds parameters for creating a connector Client.
type ClientOpts struct {
	AppID       string
	AppPassword string
	TokenURL    string // defaults to the Bot Framework login endpoint
	Scope       string // defaults to the connector API scope
	// For testing: bypasses the OAuth2 transport entirely.
	HTTPClient *http.Client
}

// NewClient creates a connector Client. With credentials the client carries
// an OAuth2 client-credentials token source that refreshes tokens as needed;
// without them it sends unauthenticated, which only the local emulator
// accepts.
func NewClient(opts ClientOpts) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil && (opts.AppID == "" || opts.AppPassword == "") {
		httpClient = &http.Client{Timeout: sendTimeout}
	}
	if httpClient == nil {
		tokenURL := opts.TokenURL
		if tokenURL == "" {
			tokenURL = defaultTokenURL
		}
		scope := opts.Scope
		if scope == "" {
			scope = defaultScope
		}
		cc := &clientcredentials.Config{
			ClientID:     opts.AppID,
			ClientSecret: opts.AppPassword,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = sendTimeout
	}

	return &Client{appID: opts.AppID, http: httpClient}, nil
}

// messageActivity is the outbound activity body for a proactive text send.
type messageActivity struct {
	Type         string          `json:"type"`
	Text         string          `json:"text"`
	ChannelID    string          `json:"channelId,omitempty"`
	From         *models.Account `json:"from,omitempty"`
	Recipient    *models.Account `json:"recipient,omitempty"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

// SendToConversation posts a message activity to
// {serviceURL}/v3/conversations/{conversationId}/activities.
func (c *Client) SendToConversation(ctx context.Context, ref models.ConversationReference, text string) error {
	if ref.ServiceURL == "" {
		return fmt.Errorf("connector: conversation reference has no service url")
	}
	if ref.Conversation == nil || ref.Conversation.ID == "" {
		return fmt.Errorf("connector: conversation reference has no conversation id")
	}

	act := messageActivity{
		Type:      "message",
		Text:      text,
		ChannelID: ref.ChannelID,
		From:      ref.Bot,
		Recipient: ref.User,
	}
	act.Conversation.ID = ref.Conversation.ID

	body, err := json.Marshal(act)
	if err != nil {
		return fmt.Errorf("connector: marshal activity: %w", err)
	}

	endpoint := strings.TrimRight(ref.ServiceURL, "/") +
		"/v3/conversations/" + url.PathEscape(ref.Conversation.ID) + "/activities"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("connector: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connector: send to %s: %w", ref.Conversation.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("connector: send to %s: status %d: %s",
			ref.Conversation.ID, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
