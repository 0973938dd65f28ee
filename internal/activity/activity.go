// Package activity defines the typed schema for inbound Bot Framework
// activities. All optional fields are validated and defaulted once here, at
// the boundary; nothing deeper in the pipeline probes raw JSON.
package activity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mkrause/beacon/internal/models"
)

// Activity types we act on. Teams also delivers typing/reaction activities;
// those fall through the tracker as ignored.
const (
	TypeMessage            = "message"
	TypeConversationUpdate = "conversationUpdate"
	TypeInstallationUpdate = "installationUpdate"
)

// Installation update actions.
const (
	ActionAdd    = "add"
	ActionRemove = "remove"
)

// Account is a bot or user participant as it appears on the wire.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Conversation is the conversation block of an activity.
type Conversation struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversationType"`
	IsGroup          bool   `json:"isGroup"`
	Name             string `json:"name"`
	TenantID         string `json:"tenantId"`
}

// TeamInfo and ChannelInfo come from the Teams channelData block.
type TeamInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChannelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ChannelData is the Teams-specific envelope extension.
type ChannelData struct {
	Team    *TeamInfo    `json:"team"`
	Channel *ChannelInfo `json:"channel"`
	Tenant  *struct {
		ID string `json:"id"`
	} `json:"tenant"`
}

// Activity is the subset of the Bot Framework activity schema this relay
// consumes.
type Activity struct {
	Type           string       `json:"type"`
	ID             string       `json:"id"`
	Action         string       `json:"action"`
	ServiceURL     string       `json:"serviceUrl"`
	ChannelID      string       `json:"channelId"`
	Conversation   Conversation `json:"conversation"`
	From           Account      `json:"from"`
	Recipient      Account      `json:"recipient"`
	MembersAdded   []Account    `json:"membersAdded"`
	MembersRemoved []Account    `json:"membersRemoved"`
	ChannelData    ChannelData  `json:"channelData"`
	Text           string       `json:"text"`
}

// Parse decodes and validates an inbound activity payload.
func Parse(body []byte) (*Activity, error) {
	var a Activity
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("activity: parse: %w", err)
	}
	if strings.TrimSpace(a.Type) == "" {
		return nil, fmt.Errorf("activity: missing type")
	}
	if strings.TrimSpace(a.Conversation.ID) == "" {
		return nil, fmt.Errorf("activity: missing conversation id")
	}
	return &a, nil
}

// Team returns the channelData team block, or a zero TeamInfo when absent.
func (a *Activity) Team() TeamInfo {
	if a.ChannelData.Team != nil {
		return *a.ChannelData.Team
	}
	return TeamInfo{}
}

// Channel returns the channelData channel block, or a zero ChannelInfo.
func (a *Activity) Channel() ChannelInfo {
	if a.ChannelData.Channel != nil {
		return *a.ChannelData.Channel
	}
	return ChannelInfo{}
}

// TenantID prefers the conversation tenant and falls back to channelData.
func (a *Activity) TenantID() string {
	if a.Conversation.TenantID != "" {
		return a.Conversation.TenantID
	}
	if a.ChannelData.Tenant != nil {
		return a.ChannelData.Tenant.ID
	}
	return ""
}

// ConversationRef builds the routing token stored per recipient. The bot
// side of the reference is the activity's recipient (the bot received this
// activity), the user side is the sender.
func (a *Activity) ConversationRef() models.ConversationReference {
	ref := models.ConversationReference{
		ActivityID: a.ID,
		ChannelID:  a.ChannelID,
		ServiceURL: a.ServiceURL,
		Conversation: &models.ConversationAccount{
			ID:               a.Conversation.ID,
			ConversationType: a.Conversation.ConversationType,
			IsGroup:          a.Conversation.IsGroup,
			Name:             a.Conversation.Name,
			TenantID:         a.TenantID(),
		},
	}
	if a.Recipient.ID != "" {
		ref.Bot = &models.Account{ID: a.Recipient.ID, Name: a.Recipient.Name}
	}
	if a.From.ID != "" {
		ref.User = &models.Account{ID: a.From.ID, Name: a.From.Name}
	}
	return ref
}

// MentionsBot reports whether any of the accounts is the bot itself. Teams
// prefixes bot ids with "28:" on some surfaces, so both spellings match.
func MentionsBot(accounts []Account, botID string) bool {
	if botID == "" {
		return false
	}
	for _, m := range accounts {
		if m.ID == botID || m.ID == "28:"+botID {
			return true
		}
	}
	return false
}
