package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show registered recipients of a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status struct {
				BotID           string `json:"bot_id"`
				RecipientsCount int    `json:"recipients_count"`
				Recipients      []struct {
					ConversationID   string   `json:"conversation_id"`
					DisplayName      string   `json:"display_name"`
					ConversationType string   `json:"conversation_type"`
					Tags             []string `json:"tags"`
					AddedAt          string   `json:"added_at"`
				} `json:"recipients"`
			}
			if err := getJSON(addr, "/status", &status); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Bot %s — %d recipient(s)\n", status.BotID, status.RecipientsCount)
			for _, r := range status.Recipients {
				fmt.Fprintf(out, "  %-12s %s  [%s]  added %s\n",
					r.ConversationType, r.DisplayName, strings.Join(r.Tags, ", "), r.AddedAt)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "http://localhost:3978", "base URL of the running relay")
	return cmd
}

func newTargetsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List valid send filter values on a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			var targets struct {
				ConversationIDs   []string `json:"conversation_ids"`
				AvailableTags     []string `json:"available_tags"`
				AvailableTeams    []string `json:"available_teams"`
				AvailableChannels []string `json:"available_channels"`
			}
			if err := getJSON(addr, "/targets", &targets); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "conversation ids: %s\n", strings.Join(targets.ConversationIDs, ", "))
			fmt.Fprintf(out, "tags:             %s\n", strings.Join(targets.AvailableTags, ", "))
			fmt.Fprintf(out, "teams:            %s\n", strings.Join(targets.AvailableTeams, ", "))
			fmt.Fprintf(out, "channels:         %s\n", strings.Join(targets.AvailableChannels, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "http://localhost:3978", "base URL of the running relay")
	return cmd
}

// getJSON fetches a relay endpoint and decodes the JSON body into v.
func getJSON(addr, path string, v any) error {
	resp, err := apiClient.Get(strings.TrimRight(addr, "/") + path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed (%d): %s", path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
