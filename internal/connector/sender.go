// Package connector is the boundary to the Bot Framework connector service:
// delivering activities into previously seen conversations, and checking the
// bearer token the service attaches to inbound webhooks.
package connector

import (
	"context"

	"github.com/mkrause/beacon/internal/models"
)

// Sender delivers a text message into an existing conversation, addressed by
// the stored conversation reference. Implementations own their timeout
// policy; this layer imposes none beyond the caller's context.
type Sender interface {
	// SendToConversation resumes the referenced conversation and posts a
	// single text message activity into it.
	SendToConversation(ctx context.Context, ref models.ConversationReference, text string) error
}
