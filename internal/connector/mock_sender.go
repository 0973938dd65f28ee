package connector

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkrause/beacon/internal/models"
)

// MockSender implements Sender for testing. It records every delivery and
// can be scripted to fail for specific conversation ids.
type MockSender struct {
	mu       sync.Mutex
	sent     []MockDelivery
	failFor  map[string]error
	failNext error
}

// MockDelivery is one recorded SendToConversation call.
type MockDelivery struct {
	ConversationID string
	Text           string
	Ref            models.ConversationReference
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{failFor: make(map[string]error)}
}

// SendToConversation records the delivery, or returns the scripted error.
func (m *MockSender) SendToConversation(ctx context.Context, ref models.ConversationReference, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := ""
	if ref.Conversation != nil {
		id = ref.Conversation.ID
	}
	if err := m.failFor[id]; err != nil {
		return err
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.sent = append(m.sent, MockDelivery{ConversationID: id, Text: text, Ref: ref})
	return nil
}

// --- Test helpers ---

// FailFor makes every send to the conversation id fail with the given
// message.
func (m *MockSender) FailFor(conversationID, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor[conversationID] = fmt.Errorf("%s", msg)
}

// FailNext makes only the next send fail, regardless of target.
func (m *MockSender) FailNext(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fmt.Errorf("%s", msg)
}

// SentCount returns the number of successful deliveries.
func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// AllSent returns a copy of all recorded deliveries.
func (m *MockSender) AllSent() []MockDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockDelivery, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the deliveries addressed to one conversation id.
func (m *MockSender) SentTo(conversationID string) []MockDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockDelivery
	for _, d := range m.sent {
		if d.ConversationID == conversationID {
			out = append(out, d)
		}
	}
	return out
}
