// Package tracker turns installation events into recipient registrations.
// Teams surfaces signal an install inconsistently: some emit an
// installationUpdate activity, others a conversationUpdate whose
// membersAdded contains the bot. Both paths converge here behind a dedup
// set so an install registers exactly once.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/mkrause/beacon/internal/activity"
	"github.com/mkrause/beacon/internal/connector"
	"github.com/mkrause/beacon/internal/models"
	"github.com/mkrause/beacon/internal/store"
)

// welcomeText is the one-time acknowledgment sent on installation.
const welcomeText = "Notify bot added successfully!"

// Tracker registers and unregisters recipients from inbound activities.
type Tracker struct {
	store  *store.Store
	sender connector.Sender
	botID  string
	log    zerolog.Logger

	// processed guards against the same installation arriving through both
	// event kinds. In-memory only; the durable store answers "is this a
	// known recipient", this set only suppresses duplicate welcomes within
	// one process lifetime.
	mu        sync.Mutex
	processed map[string]struct{}
}

// Opts holds parameters for creating a Tracker.
type Opts struct {
	Store  *store.Store
	Sender connector.Sender
	BotID  string
	Log    zerolog.Logger
}

// New creates a Tracker.
func New(opts Opts) (*Tracker, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("tracker: store is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("tracker: sender is required")
	}
	return &Tracker{
		store:     opts.Store,
		sender:    opts.Sender,
		botID:     opts.BotID,
		log:       opts.Log,
		processed: make(map[string]struct{}),
	}, nil
}

// HandleActivity routes one inbound activity. Activities arrive from an
// untrusted external source at unpredictable cadence; nothing here may
// propagate an error or panic out of the event path, so failures are logged
// and swallowed.
func (t *Tracker) HandleActivity(ctx context.Context, act *activity.Activity) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Str("type", act.Type).Msg("activity handler panicked")
		}
	}()

	switch act.Type {
	case activity.TypeInstallationUpdate:
		switch act.Action {
		case activity.ActionAdd:
			t.register(ctx, act)
		case activity.ActionRemove:
			t.unregister(act)
		default:
			t.log.Debug().Str("action", act.Action).Msg("installation update with unknown action ignored")
		}
	case activity.TypeConversationUpdate:
		if activity.MentionsBot(act.MembersAdded, t.botID) {
			t.register(ctx, act)
		}
		if activity.MentionsBot(act.MembersRemoved, t.botID) {
			t.unregister(act)
		}
	case activity.TypeMessage:
		// Notification-only bot: inbound messages are observed, not answered.
		t.log.Debug().
			Str("conversation", act.Conversation.ID).
			Str("from", act.From.Name).
			Msg("inbound message ignored")
	default:
		t.log.Debug().Str("type", act.Type).Msg("activity type ignored")
	}
}

// register stores the conversation as a recipient and sends the one-time
// welcome. The first of the two installation event kinds to arrive wins;
// the second is a no-op.
func (t *Tracker) register(ctx context.Context, act *activity.Activity) {
	id := act.Conversation.ID
	t.mu.Lock()
	if _, done := t.processed[id]; done {
		t.mu.Unlock()
		t.log.Debug().Str("conversation", id).Msg("installation already processed, skipping")
		return
	}
	t.processed[id] = struct{}{}
	t.mu.Unlock()

	team := act.Team()
	channel := act.Channel()

	rec := models.RecipientRecord{
		ConversationID:   id,
		ConversationType: act.Conversation.ConversationType,
		ConversationName: act.Conversation.Name,
		ServiceURL:       act.ServiceURL,
		ChannelID:        act.ChannelID,
		TenantID:         act.TenantID(),
		TeamID:           team.ID,
		TeamName:         team.Name,
		ChannelName:      channel.Name,
		TeamsChannelID:   channel.ID,
		DisplayName:      displayName(act.Conversation, team, channel),
		Tags:             deriveTags(act.Conversation, team, channel),
		Reference:        act.ConversationRef(),
		AddedAt:          time.Now().UTC(),
	}

	if err := t.store.Upsert(id, rec); err != nil {
		t.log.Error().Err(err).Str("conversation", id).Msg("failed to store recipient")
		return
	}
	t.log.Info().
		Str("conversation", id).
		Str("display_name", rec.DisplayName).
		Strs("tags", rec.Tags).
		Msg("bot installed")

	if err := t.sender.SendToConversation(ctx, rec.Reference, welcomeText); err != nil {
		t.log.Warn().Err(err).Str("conversation", id).Msg("welcome message failed")
	}
}

// unregister deletes the recipient and resets the dedup entry so a later
// reinstallation is treated as fresh.
func (t *Tracker) unregister(act *activity.Activity) {
	id := act.Conversation.ID
	t.mu.Lock()
	delete(t.processed, id)
	t.mu.Unlock()

	rec, removed, err := t.store.Remove(id)
	if err != nil {
		t.log.Error().Err(err).Str("conversation", id).Msg("failed to remove recipient")
		return
	}
	if removed {
		t.log.Info().Str("conversation", id).Str("display_name", rec.DisplayName).Msg("bot removed")
	}
}

// displayName derives the human-readable label operators see in /status.
func displayName(conv activity.Conversation, team activity.TeamInfo, channel activity.ChannelInfo) string {
	switch conv.ConversationType {
	case models.KindChannel:
		if team.Name != "" && channel.Name != "" {
			return team.Name + " > " + channel.Name
		}
	case models.KindPersonal:
		return "Personal Chat (" + orDefault(conv.Name, "Unknown User") + ")"
	case models.KindGroup:
		return "Group Chat (" + orDefault(conv.Name, "Unnamed Group") + ")"
	}
	label := conv.Name
	if label == "" {
		label = conv.ID
		if len(label) > 20 {
			label = label[:20]
		}
	}
	return titleKind(conv.ConversationType) + " (" + label + "...)"
}

// deriveTags builds the searchable tag set: always the conversation kind,
// plus team:/channel:/name: tags for whichever source fields are non-empty.
func deriveTags(conv activity.Conversation, team activity.TeamInfo, channel activity.ChannelInfo) []string {
	tags := []string{conv.ConversationType}
	if v := normalizeTagValue(team.Name); v != "" {
		tags = append(tags, "team:"+v)
	}
	if v := normalizeTagValue(channel.Name); v != "" {
		tags = append(tags, "channel:"+v)
	}
	if v := normalizeTagValue(conv.Name); v != "" {
		tags = append(tags, "name:"+v)
	}
	return tags
}

// normalizeTagValue lowercases and hyphenates a tag value. Values that are
// empty after normalization are dropped by the caller.
func normalizeTagValue(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	return strings.ReplaceAll(v, " ", "-")
}

// titleKind uppercases the first rune of a conversation kind for the
// fallback display-name form.
func titleKind(kind string) string {
	if kind == "" {
		return ""
	}
	r := []rune(kind)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
