package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/araddon/dateparse"

	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
)

// APISource pulls items from a JSON REST endpoint returning an array of
// article-like objects. Upstream field names vary, so several aliases are
// accepted for each field.
type APISource struct {
	name     string
	endpoint string
	client   *http.Client
}

var _ ports.ItemSource = (*APISource)(nil)

// apiArticle tolerates the common field spellings across article APIs.
type apiArticle struct {
	Title       string `json:"title"`
	StoryTitle  string `json:"story_title"`
	URL         string `json:"url"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Body        string `json:"body"`
	StoryText   string `json:"story_text"`
	PublishedAt string `json:"published_at"`
	CreatedAt   string `json:"created_at"`
	Date        string `json:"date"`
}

// apiEnvelope accepts either a bare array or the usual wrapper keys.
type apiEnvelope struct {
	Articles []apiArticle `json:"articles"`
	Hits     []apiArticle `json:"hits"`
	Items    []apiArticle `json:"items"`
}

// NewAPISource wires an HTTP JSON article source.
func NewAPISource(name, endpoint string, client *http.Client) *APISource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APISource{name: name, endpoint: endpoint, client: client}
}

// Name identifies the source inside logs and item labels.
func (s *APISource) Name() string {
	return s.name
}

// Fetch retrieves the article list and maps it into raw items.
func (s *APISource) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TechDigest/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", s.name, resp.Status)
	}

	raw, err := decodeArticles(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.name, err)
	}

	items := make([]domain.RawItem, 0, len(raw))
	for _, art := range raw {
		item := domain.RawItem{
			Title:       firstNonEmpty(art.Title, art.StoryTitle),
			Link:        firstNonEmpty(art.URL, art.Link),
			Summary:     art.Description,
			Body:        firstNonEmpty(art.Body, art.StoryText),
			Source:      s.name,
			PublishedAt: parseTimestamp(firstNonEmpty(art.PublishedAt, art.CreatedAt, art.Date)),
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

func decodeArticles(body io.Reader) ([]apiArticle, error) {
	var buf json.RawMessage
	if err := json.NewDecoder(body).Decode(&buf); err != nil {
		return nil, err
	}

	var list []apiArticle
	if err := json.Unmarshal(buf, &list); err == nil {
		return list, nil
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(buf, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Articles) > 0 {
		return envelope.Articles, nil
	}
	if len(envelope.Hits) > 0 {
		return envelope.Hits, nil
	}
	return envelope.Items, nil
}

func parseTimestamp(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return nil
	}
	return &parsed
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
