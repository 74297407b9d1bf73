package usecase

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TechDigest/internal/domain"
)

// unknownSource labels candidates whose link cannot be parsed for a host.
const unknownSource = "unknown"

// aggregateItems merges fetched items into the bounded candidate input:
// duplicates (by link, first occurrence wins) and items outside the recency
// window are dropped, the rest are stably sorted by publication time
// descending and capped. Items without a resolvable timestamp are excluded;
// an undatable story cannot satisfy the recency guarantee.
func aggregateItems(items []domain.RawItem, now time.Time, window time.Duration, limit int) []domain.RawItem {
	cutoff := now.Add(-window)
	seen := make(map[string]struct{}, len(items))

	filtered := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if item.PublishedAt == nil || item.PublishedAt.Before(cutoff) {
			continue
		}
		if item.Link != "" {
			if _, dup := seen[item.Link]; dup {
				continue
			}
			seen[item.Link] = struct{}{}
		}
		filtered = append(filtered, item)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PublishedAt.After(*filtered[j].PublishedAt)
	})

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

// normalizeItems maps each filtered item 1:1 into a prompt-sized candidate.
// The excerpt prefers the source's summary field over the raw body and is
// stripped of markup before truncation.
func normalizeItems(items []domain.RawItem, excerptChars int) []domain.CandidateItem {
	candidates := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		text := item.Summary
		if text == "" {
			text = item.Body
		}

		candidates = append(candidates, domain.CandidateItem{
			Title:   item.Title,
			Link:    item.Link,
			Content: truncate(stripMarkup(text), excerptChars),
			Source:  sourceLabel(item),
		})
	}
	return candidates
}

func sourceLabel(item domain.RawItem) string {
	if item.Source != "" {
		return item.Source
	}
	parsed, err := url.Parse(item.Link)
	if err != nil || parsed.Host == "" {
		return unknownSource
	}
	return parsed.Host
}

// stripMarkup flattens HTML fragments into plain text with collapsed
// whitespace. Non-HTML input passes through unchanged apart from the
// whitespace normalization.
func stripMarkup(text string) string {
	if strings.Contains(text, "<") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
