package httpapi

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkrause/beacon/internal/activity"
	"github.com/mkrause/beacon/internal/models"
	"github.com/mkrause/beacon/internal/notify"
)

// registerRoutes sets up all relay routes on the gin router.
func registerRoutes(router *gin.Engine, opts Opts) {
	router.POST("/api/messages", handleMessages(opts))
	router.POST("/send", handleSend(opts))
	router.GET("/status", handleStatus(opts))
	router.GET("/targets", handleTargets(opts))
	router.GET("/health", handleHealth())
}

// handleMessages is the Bot Framework webhook. The activity is parsed and
// auth-checked synchronously, then handed to the tracker asynchronously: the
// connector service only needs the 200 acknowledgment, not the outcome.
func handleMessages(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := opts.Validator.Validate(c.GetHeader("Authorization")); err != nil {
			opts.Log.Warn().Err(err).Str("remote", c.ClientIP()).Msg("webhook auth rejected")
			c.String(http.StatusUnauthorized, err.Error())
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		act, err := activity.Parse(body)
		if err != nil {
			opts.Log.Warn().Err(err).Msg("unparseable activity")
			c.String(http.StatusInternalServerError, err.Error())
			return
		}

		go opts.Tracker.HandleActivity(context.Background(), act)
		c.Status(http.StatusOK)
	}
}

// SendRequest is the body of POST /send.
type SendRequest struct {
	Message         string   `json:"message"`
	ConversationIDs []string `json:"conversation_ids"`
	Tags            []string `json:"tags"`
	Teams           []string `json:"teams"`
	Channels        []string `json:"channels"`
	ExcludeIDs      []string `json:"exclude_conversation_ids"`
}

func handleSend(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Message == "" {
			req.Message = "Default notification message"
		}
		criteria := models.Criteria{
			ConversationIDs: req.ConversationIDs,
			Tags:            req.Tags,
			Teams:           req.Teams,
			Channels:        req.Channels,
			ExcludeIDs:      req.ExcludeIDs,
		}

		recipients := opts.Store.Load()
		if len(recipients) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No recipients found"})
			return
		}

		filtered := notify.Filter(recipients, criteria)
		if len(filtered) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":            "No recipients match the targeting criteria",
				"total_recipients": len(recipients),
				"criteria":         criteria,
			})
			return
		}

		report := opts.Dispatcher.Dispatch(c.Request.Context(), filtered, req.Message)
		report.TotalRecipients = len(recipients)
		report.TargetingCriteria = criteria
		c.JSON(http.StatusOK, report)
	}
}

// recipientStatus is the per-recipient block in GET /status.
type recipientStatus struct {
	ConversationID   string   `json:"conversation_id"`
	DisplayName      string   `json:"display_name"`
	ConversationType string   `json:"conversation_type"`
	TeamName         string   `json:"team_name,omitempty"`
	ChannelName      string   `json:"channel_name,omitempty"`
	Tags             []string `json:"tags"`
	AddedAt          string   `json:"added_at"`
}

func handleStatus(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		recipients := opts.Store.Load()

		out := make([]recipientStatus, 0, len(recipients))
		for id, rec := range recipients {
			out = append(out, recipientStatus{
				ConversationID:   id,
				DisplayName:      rec.DisplayName,
				ConversationType: rec.ConversationType,
				TeamName:         rec.TeamName,
				ChannelName:      rec.ChannelName,
				Tags:             rec.Tags,
				AddedAt:          rec.AddedAt.Format(time.RFC3339),
			})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ConversationID < out[j].ConversationID })

		c.JSON(http.StatusOK, gin.H{
			"bot_id":           opts.BotID,
			"recipients_count": len(recipients),
			"recipients":       out,
		})
	}
}

// recipientSummary is the compact per-recipient block in GET /targets.
type recipientSummary struct {
	ConversationID string   `json:"conversation_id"`
	DisplayName    string   `json:"display_name"`
	Tags           []string `json:"tags"`
}

// handleTargets lists every valid /send filter value currently registered.
func handleTargets(opts Opts) gin.HandlerFunc {
	return func(c *gin.Context) {
		recipients := opts.Store.Load()

		ids := make([]string, 0, len(recipients))
		tagSet := map[string]struct{}{}
		teamSet := map[string]struct{}{}
		channelSet := map[string]struct{}{}
		summary := make([]recipientSummary, 0, len(recipients))

		for id, rec := range recipients {
			ids = append(ids, id)
			for _, t := range rec.Tags {
				tagSet[t] = struct{}{}
			}
			if rec.TeamName != "" {
				teamSet[rec.TeamName] = struct{}{}
			}
			if rec.ChannelName != "" {
				channelSet[rec.ChannelName] = struct{}{}
			}
			summary = append(summary, recipientSummary{
				ConversationID: id,
				DisplayName:    rec.DisplayName,
				Tags:           rec.Tags,
			})
		}
		sort.Strings(ids)
		sort.Slice(summary, func(i, j int) bool { return summary[i].ConversationID < summary[j].ConversationID })

		c.JSON(http.StatusOK, gin.H{
			"conversation_ids":   ids,
			"available_tags":     sortedKeys(tagSet),
			"available_teams":    sortedKeys(teamSet),
			"available_channels": sortedKeys(channelSet),
			"recipients_summary": summary,
		})
	}
}

func handleHealth() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
