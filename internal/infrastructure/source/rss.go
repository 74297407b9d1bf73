package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/mmcdole/gofeed"

	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
)

// RSSSource pulls items from a single RSS/Atom feed.
type RSSSource struct {
	feedURL string
	parser  *gofeed.Parser
}

var _ ports.ItemSource = (*RSSSource)(nil)

// NewRSSSource wires a gofeed parser for one feed endpoint.
func NewRSSSource(feedURL string, client *http.Client) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	parser := gofeed.NewParser()
	parser.Client = client
	parser.UserAgent = "TechDigest/1.0"
	return &RSSSource{feedURL: feedURL, parser: parser}
}

// Name identifies the source by its feed host.
func (s *RSSSource) Name() string {
	if parsed, err := url.Parse(s.feedURL); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return s.feedURL
}

// Fetch downloads and parses the feed into raw items.
func (s *RSSSource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	feed, err := s.parser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", s.feedURL, err)
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		published := entry.PublishedParsed
		if published == nil {
			published = entry.UpdatedParsed
		}

		items = append(items, domain.RawItem{
			Title:       entry.Title,
			Link:        entry.Link,
			Summary:     entry.Description,
			Body:        entry.Content,
			PublishedAt: published,
		})
	}

	return items, nil
}
