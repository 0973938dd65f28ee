package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mkrause/beacon/internal/httpapi"
	"github.com/mkrause/beacon/internal/models"
)

func TestSendCmd_PrintsReport(t *testing.T) {
	var gotReq httpapi.SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send" {
			t.Errorf("path = %q, want /send", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(models.Report{
			SentCount:          1,
			TotalRecipients:    2,
			FilteredRecipients: 1,
			SentTo: []models.SentInfo{
				{ConversationID: "19:eng", DisplayName: "Engineering > general"},
			},
			Errors: []string{},
		})
	}))
	defer srv.Close()

	out, err := runCmd(t, "send", "--addr", srv.URL, "--message", "ship it", "--team", "Eng")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotReq.Message != "ship it" {
		t.Errorf("request message = %q", gotReq.Message)
	}
	if len(gotReq.Teams) != 1 || gotReq.Teams[0] != "Eng" {
		t.Errorf("request teams = %v", gotReq.Teams)
	}
	if !strings.Contains(out, "Sent 1/1 (of 2 registered)") {
		t.Errorf("output = %q, want summary line", out)
	}
	if !strings.Contains(out, "Engineering > general") {
		t.Errorf("output = %q, want recipient line", out)
	}
}

func TestSendCmd_ErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"No recipients found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := runCmd(t, "send", "--addr", srv.URL, "--message", "hi")
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "No recipients found") {
		t.Errorf("error = %q, want server error body", err)
	}
}

func TestStatusCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %q, want /status", r.URL.Path)
		}
		w.Write([]byte(`{
			"bot_id": "bot-123",
			"recipients_count": 1,
			"recipients": [{
				"conversation_id": "19:eng",
				"display_name": "Engineering > general",
				"conversation_type": "channel",
				"tags": ["channel"],
				"added_at": "2026-03-14T09:26:53Z"
			}]
		}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, "status", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "bot-123") || !strings.Contains(out, "Engineering > general") {
		t.Errorf("output = %q", out)
	}
}

func TestTargetsCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"conversation_ids": ["19:eng"],
			"available_tags": ["channel", "team:engineering"],
			"available_teams": ["Engineering"],
			"available_channels": ["general"]
		}`))
	}))
	defer srv.Close()

	out, err := runCmd(t, "targets", "--addr", srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "team:engineering") {
		t.Errorf("output = %q, want tag list", out)
	}
}
