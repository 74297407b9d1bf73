package domain

import (
	"fmt"
	"time"
)

// EditionStatus enumerates the edition lifecycle.
type EditionStatus string

const (
	StatusDraft     EditionStatus = "draft"
	StatusPublished EditionStatus = "published"
)

// StoryItem is one fully written story inside a category. Story text uses
// "\n" as an explicit paragraph break.
type StoryItem struct {
	Headline string `json:"headline"`
	Story    string `json:"story"`
	Link     string `json:"link"`
}

// Category groups stories under a thematic heading.
type Category struct {
	Name  string      `json:"name"`
	Items []StoryItem `json:"items"`
}

// EditionContent is the structured document returned by the editorial model.
// QuickTakes is optional; consumers must tolerate its absence.
type EditionContent struct {
	Title      string     `json:"title"`
	Intro      string     `json:"intro"`
	QuickTakes []string   `json:"quick_takes,omitempty"`
	Categories []Category `json:"categories"`
}

// Validate checks that the document is structurally usable. It does not
// verify that links trace back to supplied candidates.
func (c EditionContent) Validate() error {
	if c.Title == "" {
		return fmt.Errorf("edition content: missing title")
	}
	if c.Intro == "" {
		return fmt.Errorf("edition content: missing intro")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("edition content: no categories")
	}
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("edition content: category without name")
		}
		for _, item := range cat.Items {
			if item.Headline == "" || item.Story == "" || item.Link == "" {
				return fmt.Errorf("edition content: incomplete item in category %q", cat.Name)
			}
		}
	}
	return nil
}

// Edition is one persisted newsletter issue. EditionNumber values form a
// dense 1..N sequence with no gaps; deleting an edition renumbers the rest.
type Edition struct {
	ID            string
	EditionNumber int
	Title         string
	Intro         string
	Content       EditionContent
	HTML          string
	Status        EditionStatus
	CreatedAt     time.Time
	PublishedAt   *time.Time
}
