// Package notify computes the target set for a notification and delivers to
// it, aggregating a per-recipient report.
package notify

import (
	"strings"

	"github.com/mkrause/beacon/internal/models"
)

// Filter returns the subset of recipients matched by the criteria.
// Exclusions are subtracted first. With no inclusion criteria every
// remaining recipient matches; otherwise a recipient is included when ANY
// category matches: explicit conversation id, exact tag, case-insensitive
// team-name substring, or case-insensitive channel-name substring.
func Filter(all map[string]models.RecipientRecord, c models.Criteria) map[string]models.RecipientRecord {
	excluded := make(map[string]struct{}, len(c.ExcludeIDs))
	for _, id := range c.ExcludeIDs {
		excluded[id] = struct{}{}
	}

	matched := make(map[string]models.RecipientRecord)
	for id, rec := range all {
		if _, skip := excluded[id]; skip {
			continue
		}
		if c.Empty() || matches(id, rec, c) {
			matched[id] = rec
		}
	}
	return matched
}

func matches(id string, rec models.RecipientRecord, c models.Criteria) bool {
	for _, want := range c.ConversationIDs {
		if id == want {
			return true
		}
	}
	for _, tag := range c.Tags {
		if rec.HasTag(tag) {
			return true
		}
	}
	if containsFold(rec.TeamName, c.Teams) {
		return true
	}
	if containsFold(rec.ChannelName, c.Channels) {
		return true
	}
	return false
}

// containsFold reports whether haystack contains any of the needles,
// case-insensitively. An empty haystack never matches.
func containsFold(haystack string, needles []string) bool {
	if haystack == "" {
		return false
	}
	haystack = strings.ToLower(haystack)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
