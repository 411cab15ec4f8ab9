package graph

import "time"

// Person is the aggregated view of everyone mentioned across entries. One
// node per case-insensitive name; "Rajesh" and "rajesh" resolve to the same
// record.
type Person struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Relationship   string           `json:"relationship,omitempty"`
	FirstMentioned time.Time        `json:"first_mentioned"`
	LastMentioned  time.Time        `json:"last_mentioned"`
	MentionCount   int64            `json:"mention_count"`
	SentimentAvg   float64          `json:"sentiment_avg"`
	History        []SentimentEntry `json:"history,omitempty"`
}

// SentimentEntry is one point in a person's sentiment history
type SentimentEntry struct {
	Date    time.Time `json:"date"`
	Score   int       `json:"score"`
	Label   string    `json:"label"`
	Context string    `json:"context,omitempty"`
	EntryID string    `json:"entry_id,omitempty"`
}

// MentionInput is a single validated, scored mention ready for the graph
type MentionInput struct {
	Name         string
	Relationship string
	Score        int
	Label        string
	Context      string
	EntryID      string
}
