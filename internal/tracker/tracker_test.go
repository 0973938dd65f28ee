package tracker

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mkrause/beacon/internal/activity"
	"github.com/mkrause/beacon/internal/connector"
	"github.com/mkrause/beacon/internal/store"
)

const botID = "bot-123"

func newTestTracker(t *testing.T) (*Tracker, *store.Store, *connector.MockSender) {
	t.Helper()
	st, err := store.New(store.Opts{
		Path: filepath.Join(t.TempDir(), "recipients.json"),
		Log:  zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	sender := connector.NewMockSender()
	trk, err := New(Opts{Store: st, Sender: sender, BotID: botID, Log: zerolog.Nop()})
	if err != nil {
		t.Fatalf("new tracker: %v", err)
	}
	return trk, st, sender
}

func installUpdate(convID string) *activity.Activity {
	return &activity.Activity{
		Type:       activity.TypeInstallationUpdate,
		Action:     activity.ActionAdd,
		ServiceURL: "https://smba.trafficmanager.net/amer/",
		ChannelID:  "msteams",
		Conversation: activity.Conversation{
			ID:               convID,
			ConversationType: "channel",
			IsGroup:          true,
		},
		Recipient: activity.Account{ID: "28:" + botID, Name: "Notify Bot"},
		ChannelData: activity.ChannelData{
			Team:    &activity.TeamInfo{ID: "19:team", Name: "Acme Corp"},
			Channel: &activity.ChannelInfo{ID: convID, Name: "general"},
		},
	}
}

func membersAdded(convID, memberID string) *activity.Activity {
	act := installUpdate(convID)
	act.Type = activity.TypeConversationUpdate
	act.Action = ""
	act.MembersAdded = []activity.Account{{ID: memberID}}
	return act
}

func membersRemoved(convID, memberID string) *activity.Activity {
	return &activity.Activity{
		Type:           activity.TypeConversationUpdate,
		Conversation:   activity.Conversation{ID: convID, ConversationType: "channel"},
		MembersRemoved: []activity.Account{{ID: memberID}},
	}
}

func TestInstall_SingleRecordAndWelcome(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, installUpdate("19:general"))

	recipients := st.Load()
	if len(recipients) != 1 {
		t.Fatalf("store has %d records, want 1", len(recipients))
	}
	rec := recipients["19:general"]
	if rec.DisplayName != "Acme Corp > general" {
		t.Errorf("DisplayName = %q, want Acme Corp > general", rec.DisplayName)
	}
	want := []string{"channel", "team:acme-corp", "channel:general"}
	if !reflect.DeepEqual(rec.Tags, want) {
		t.Errorf("Tags = %v, want %v", rec.Tags, want)
	}
	if got := sender.SentTo("19:general"); len(got) != 1 {
		t.Fatalf("welcome count = %d, want 1", len(got))
	} else if got[0].Text != welcomeText {
		t.Errorf("welcome text = %q", got[0].Text)
	}
}

func TestInstall_BothEventKinds_OneWelcome(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	ctx := context.Background()

	// Teams surfaces emit these inconsistently; both may arrive for one event.
	trk.HandleActivity(ctx, installUpdate("19:general"))
	trk.HandleActivity(ctx, membersAdded("19:general", "28:"+botID))

	if n := len(st.Load()); n != 1 {
		t.Errorf("store has %d records, want 1", n)
	}
	if n := sender.SentCount(); n != 1 {
		t.Errorf("welcome count = %d, want exactly 1", n)
	}
}

func TestInstall_MembersAddedFirst(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, membersAdded("19:general", "28:"+botID))
	trk.HandleActivity(ctx, installUpdate("19:general"))

	if n := len(st.Load()); n != 1 {
		t.Errorf("store has %d records, want 1", n)
	}
	if n := sender.SentCount(); n != 1 {
		t.Errorf("welcome count = %d, want exactly 1", n)
	}
}

func TestInstall_ReplayIdempotent(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, installUpdate("19:general"))
	trk.HandleActivity(ctx, installUpdate("19:general"))
	trk.HandleActivity(ctx, installUpdate("19:general"))

	if n := len(st.Load()); n != 1 {
		t.Errorf("store has %d records, want 1", n)
	}
	if n := sender.SentCount(); n != 1 {
		t.Errorf("welcome count = %d, want 1", n)
	}
}

func TestInstall_OtherMemberAdded_Ignored(t *testing.T) {
	trk, st, sender := newTestTracker(t)

	trk.HandleActivity(context.Background(), membersAdded("19:general", "29:some-user"))

	if n := len(st.Load()); n != 0 {
		t.Errorf("store has %d records, want 0", n)
	}
	if n := sender.SentCount(); n != 0 {
		t.Errorf("welcome count = %d, want 0", n)
	}
}

func TestRemove_ThenReinstallIsFresh(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, installUpdate("19:general"))
	trk.HandleActivity(ctx, membersRemoved("19:general", "28:"+botID))

	if n := len(st.Load()); n != 0 {
		t.Fatalf("after removal: %d records, want 0", n)
	}

	// A fresh install for the same conversation must register again.
	trk.HandleActivity(ctx, installUpdate("19:general"))
	if n := len(st.Load()); n != 1 {
		t.Errorf("after reinstall: %d records, want 1", n)
	}
	if n := sender.SentCount(); n != 2 {
		t.Errorf("welcome count = %d, want 2 (one per install)", n)
	}
}

func TestRemove_OtherMember_KeepsRecord(t *testing.T) {
	trk, st, _ := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, installUpdate("19:general"))
	trk.HandleActivity(ctx, membersRemoved("19:general", "29:some-user"))

	if n := len(st.Load()); n != 1 {
		t.Errorf("store has %d records, want 1", n)
	}
}

func TestInstall_InstallationUpdateRemove(t *testing.T) {
	trk, st, _ := newTestTracker(t)
	ctx := context.Background()

	trk.HandleActivity(ctx, installUpdate("19:general"))

	removal := installUpdate("19:general")
	removal.Action = activity.ActionRemove
	trk.HandleActivity(ctx, removal)

	if n := len(st.Load()); n != 0 {
		t.Errorf("store has %d records, want 0", n)
	}
}

func TestWelcomeFailure_RecordStillStored(t *testing.T) {
	trk, st, sender := newTestTracker(t)
	sender.FailNext("service unavailable")

	trk.HandleActivity(context.Background(), installUpdate("19:general"))

	if n := len(st.Load()); n != 1 {
		t.Errorf("store has %d records, want 1 despite welcome failure", n)
	}
}

func TestMessageActivity_Ignored(t *testing.T) {
	trk, st, sender := newTestTracker(t)

	trk.HandleActivity(context.Background(), &activity.Activity{
		Type:         activity.TypeMessage,
		Conversation: activity.Conversation{ID: "a:1"},
		Text:         "hello bot",
	})

	if n := len(st.Load()); n != 0 {
		t.Errorf("store has %d records, want 0", n)
	}
	if n := sender.SentCount(); n != 0 {
		t.Errorf("sent = %d, want 0 (notification-only bot)", n)
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		name    string
		conv    activity.Conversation
		team    activity.TeamInfo
		channel activity.ChannelInfo
		want    string
	}{
		{
			name:    "channel with team and channel names",
			conv:    activity.Conversation{ID: "19:x", ConversationType: "channel"},
			team:    activity.TeamInfo{Name: "Acme Corp"},
			channel: activity.ChannelInfo{Name: "general"},
			want:    "Acme Corp > general",
		},
		{
			name: "personal with name",
			conv: activity.Conversation{ID: "a:1", ConversationType: "personal", Name: "Dana"},
			want: "Personal Chat (Dana)",
		},
		{
			name: "personal without name",
			conv: activity.Conversation{ID: "a:1", ConversationType: "personal"},
			want: "Personal Chat (Unknown User)",
		},
		{
			name: "group with name",
			conv: activity.Conversation{ID: "19:g", ConversationType: "groupChat", Name: "Launch Crew"},
			want: "Group Chat (Launch Crew)",
		},
		{
			name: "group without name",
			conv: activity.Conversation{ID: "19:g", ConversationType: "groupChat"},
			want: "Group Chat (Unnamed Group)",
		},
		{
			name: "unknown kind with name",
			conv: activity.Conversation{ID: "x:1", ConversationType: "meeting", Name: "Standup"},
			want: "Meeting (Standup...)",
		},
		{
			name: "unknown kind truncates long id",
			conv: activity.Conversation{ID: "abcdefghijklmnopqrstuvwxyz", ConversationType: "meeting"},
			want: "Meeting (abcdefghijklmnopqrst...)",
		},
		{
			name: "channel without channel data falls through",
			conv: activity.Conversation{ID: "19:x", ConversationType: "channel", Name: "Ops"},
			want: "Channel (Ops...)",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := displayName(tc.conv, tc.team, tc.channel); got != tc.want {
				t.Errorf("displayName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDeriveTags(t *testing.T) {
	cases := []struct {
		name    string
		conv    activity.Conversation
		team    activity.TeamInfo
		channel activity.ChannelInfo
		want    []string
	}{
		{
			name:    "channel with everything",
			conv:    activity.Conversation{ConversationType: "channel"},
			team:    activity.TeamInfo{Name: "Acme Corp"},
			channel: activity.ChannelInfo{Name: "General Chat"},
			want:    []string{"channel", "team:acme-corp", "channel:general-chat"},
		},
		{
			name: "personal bare kind only",
			conv: activity.Conversation{ConversationType: "personal"},
			want: []string{"personal"},
		},
		{
			name: "group with conversation name",
			conv: activity.Conversation{ConversationType: "groupChat", Name: "Launch Crew"},
			want: []string{"groupChat", "name:launch-crew"},
		},
		{
			name: "whitespace-only names dropped",
			conv: activity.Conversation{ConversationType: "channel", Name: "   "},
			team: activity.TeamInfo{Name: " "},
			want: []string{"channel"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := deriveTags(tc.conv, tc.team, tc.channel)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("deriveTags = %v, want %v", got, tc.want)
			}
		})
	}
}
