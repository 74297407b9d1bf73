package domain

import "time"

// RawItem is a news item as fetched from a provider, before any filtering.
// PublishedAt is nil when the source did not report a usable timestamp.
type RawItem struct {
	Title       string
	Link        string
	Summary     string
	Body        string
	Source      string
	PublishedAt *time.Time
}

// CandidateItem is a normalized item prepared for the editorial prompt.
type CandidateItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Content string `json:"content"`
	Source  string `json:"source"`
}
