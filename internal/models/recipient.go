// Package models holds the shared types for the Beacon notification relay.
package models

import "time"

// Conversation kinds as Teams reports them. Anything else is treated as
// KindOther for display purposes but stored verbatim.
const (
	KindChannel  = "channel"
	KindPersonal = "personal"
	KindGroup    = "groupChat"
)

// Account identifies a bot or user participant on the Bot Framework side.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ConversationAccount identifies a conversation on the Bot Framework side.
type ConversationAccount struct {
	ID               string `json:"id"`
	ConversationType string `json:"conversation_type,omitempty"`
	IsGroup          bool   `json:"is_group,omitempty"`
	Name             string `json:"name,omitempty"`
	TenantID         string `json:"tenant_id,omitempty"`
}

// ConversationReference is the opaque routing token stored per recipient.
// It carries everything the connector needs to re-address a proactive
// message to a previously seen conversation.
type ConversationReference struct {
	ActivityID   string               `json:"activity_id,omitempty"`
	Bot          *Account             `json:"bot,omitempty"`
	ChannelID    string               `json:"channel_id,omitempty"`
	Conversation *ConversationAccount `json:"conversation,omitempty"`
	ServiceURL   string               `json:"service_url,omitempty"`
	User         *Account             `json:"user,omitempty"`
}

// RecipientRecord is one reachable conversation endpoint. The JSON field
// names mirror the recipients file layout, so a file written by an earlier
// deployment loads unchanged.
type RecipientRecord struct {
	ConversationID   string `json:"conversation_id"`
	ConversationType string `json:"conversation_type"`
	ConversationName string `json:"conversation_name,omitempty"`
	ServiceURL       string `json:"service_url"`
	ChannelID        string `json:"channel_id"`
	TenantID         string `json:"tenant_id,omitempty"`

	TeamID         string `json:"team_id,omitempty"`
	TeamName       string `json:"team_name,omitempty"`
	ChannelName    string `json:"channel_name,omitempty"`
	TeamsChannelID string `json:"teams_channel_id,omitempty"`

	DisplayName string   `json:"display_name"`
	Tags        []string `json:"tags"`

	Reference ConversationReference `json:"conversation_reference"`

	AddedAt time.Time `json:"added_at"`
}

// HasTag reports whether the record carries the exact tag.
func (r RecipientRecord) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
