package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mkrause/beacon/internal/httpapi"
	"github.com/mkrause/beacon/internal/models"
)

// apiClient is the shared HTTP client for operator subcommands talking to a
// running relay.
var apiClient = &http.Client{Timeout: 30 * time.Second}

func newSendCmd() *cobra.Command {
	var (
		addr     string
		message  string
		to       []string
		tags     []string
		teams    []string
		channels []string
		exclude  []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a proactive notification through a running relay",
		Long:  "Posts to the relay's /send endpoint and prints the per-recipient delivery report.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpapi.SendRequest{
				Message:         message,
				ConversationIDs: to,
				Tags:            tags,
				Teams:           teams,
				Channels:        channels,
				ExcludeIDs:      exclude,
			}
			return runSend(cmd, addr, req)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "http://localhost:3978", "base URL of the running relay")
	cmd.Flags().StringVarP(&message, "message", "m", "", "notification text (required)")
	cmd.Flags().StringSliceVar(&to, "to", nil, "target conversation id (repeatable)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "target tag, exact match (repeatable)")
	cmd.Flags().StringSliceVar(&teams, "team", nil, "target team name substring (repeatable)")
	cmd.Flags().StringSliceVar(&channels, "channel", nil, "target channel name substring (repeatable)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "conversation id to exclude (repeatable)")
	cmd.MarkFlagRequired("message")
	return cmd
}

func runSend(cmd *cobra.Command, addr string, req httpapi.SendRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := apiClient.Post(strings.TrimRight(addr, "/")+"/send", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("send failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var report models.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("decode report: %w", err)
	}
	printReport(cmd, report)
	return nil
}

func printReport(cmd *cobra.Command, r models.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sent %d/%d (of %d registered)\n", r.SentCount, r.FilteredRecipients, r.TotalRecipients)
	for _, s := range r.SentTo {
		fmt.Fprintf(out, "  ok   %s  %s\n", s.ConversationID, s.DisplayName)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  fail %s\n", e)
	}
}
