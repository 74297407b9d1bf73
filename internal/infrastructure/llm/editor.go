package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TechDigest/internal/config"
	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

const editorPrompt = `You are the editor-in-chief of 'Tech Digest'. Your mission is to produce a complete, professional editorial newsletter.

EDITORIAL GUIDELINES:
1. Do NOT produce a bare list of links. The reader must be fully informed by reading ONLY the newsletter.
2. GROUP the stories into clear thematic categories (e.g. 'ARTIFICIAL INTELLIGENCE', 'DEVELOPMENT', 'MOBILE', 'BIG TECH', 'MARKET').
3. For each story, write a journalistic 'story' of 2 to 3 short paragraphs explaining the context and the impact. Objective but engaging tone.
4. Optionally add up to five one-line 'quick_takes' for minor items not worth a full story.
5. Only use the source material provided; every item link must be one of the supplied links.
6. MANDATORY output: strict JSON following this exact structure:
{
  "title": "Catchy title for this edition",
  "intro": "Short introduction about the day's highlight",
  "quick_takes": ["One-line news bullet"],
  "categories": [
    {
      "name": "CATEGORY NAME",
      "items": [
        {
          "headline": "Story headline",
          "story": "Full journalistic summary (use \n for paragraph breaks).",
          "link": "Original URL"
        }
      ]
    }
  ]
}`

// Editor composes edition content through an OpenAI-compatible
// chat-completions API.
type Editor struct {
	endpoint   string
	model      string
	apiKey     string
	backoff    time.Duration
	httpClient *http.Client
}

var _ ports.Synthesizer = (*Editor)(nil)

// chatRequest is the chat-completions request body.
type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

// chatResponse carries the single completion we care about.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewEditor builds a client from configuration.
func NewEditor(cfg config.OpenAIConfig) *Editor {
	return &Editor{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		backoff:  retryBackoff,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// ComposeEdition issues one structured-generation request per attempt and
// returns the first response that parses and validates. After the attempt
// budget it gives up; the caller treats that as fatal for the run.
func (e *Editor) ComposeEdition(ctx context.Context, candidates []domain.CandidateItem) (domain.EditionContent, error) {
	if e.apiKey == "" || e.endpoint == "" || e.model == "" {
		return domain.EditionContent{}, fmt.Errorf("editor client misconfigured")
	}

	payload, err := json.Marshal(candidates)
	if err != nil {
		return domain.EditionContent{}, fmt.Errorf("marshal candidates: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return domain.EditionContent{}, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * e.backoff):
			}
		}

		content, err := e.complete(ctx, payload)
		if err != nil {
			lastErr = err
			continue
		}

		var edition domain.EditionContent
		if err := json.Unmarshal([]byte(content), &edition); err != nil {
			lastErr = fmt.Errorf("parse edition content: %w", err)
			continue
		}
		if err := edition.Validate(); err != nil {
			lastErr = err
			continue
		}

		return edition, nil
	}

	return domain.EditionContent{}, fmt.Errorf("compose edition after %d attempts: %w", maxAttempts, lastErr)
}

func (e *Editor) complete(ctx context.Context, payload []byte) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: editorPrompt},
			{Role: "user", Content: "Here is the raw source material:\n" + string(payload)},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chat error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty completion")
	}

	return parsed.Choices[0].Message.Content, nil
}
