package models

// Criteria selects the subset of recipients a notification goes to.
// All fields are optional; an empty Criteria matches every recipient.
// Exclusions are subtracted before any inclusion logic runs; the remaining
// categories combine with OR semantics.
type Criteria struct {
	ConversationIDs []string `json:"conversation_ids,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Teams           []string `json:"teams,omitempty"`
	Channels        []string `json:"channels,omitempty"`
	ExcludeIDs      []string `json:"exclude_conversation_ids,omitempty"`
}

// Empty reports whether no inclusion criteria were supplied. Exclusions do
// not count: "everyone except X" is still an empty inclusion set.
func (c Criteria) Empty() bool {
	return len(c.ConversationIDs) == 0 && len(c.Tags) == 0 &&
		len(c.Teams) == 0 && len(c.Channels) == 0
}

// SentInfo identifies one successful delivery in a Report.
type SentInfo struct {
	ConversationID string   `json:"conversation_id"`
	DisplayName    string   `json:"display_name"`
	Tags           []string `json:"tags"`
}

// Report is the aggregate outcome of one dispatch. Errors are formatted
// per-recipient strings; a caller retrying a failed subset reissues /send
// with conversation_ids taken from here.
type Report struct {
	SentCount          int        `json:"sent_count"`
	TotalRecipients    int        `json:"total_recipients"`
	FilteredRecipients int        `json:"filtered_recipients"`
	SentTo             []SentInfo `json:"sent_to"`
	Errors             []string   `json:"errors"`
	TargetingCriteria  Criteria   `json:"targeting_criteria"`
}
