package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"TechDigest/internal/config"
	"TechDigest/internal/domain"
)

const validEdition = `{
	"title": "AI Everywhere",
	"intro": "Another busy day.",
	"quick_takes": ["One-liner"],
	"categories": [
		{"name": "AI", "items": [
			{"headline": "Model out", "story": "Para one.\nPara two.", "link": "https://a.example/1"}
		]}
	]
}`

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func testEditor(endpoint string) *Editor {
	editor := NewEditor(config.OpenAIConfig{
		Endpoint: endpoint,
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	})
	editor.backoff = 0
	return editor
}

func sampleCandidates() []domain.CandidateItem {
	return []domain.CandidateItem{
		{Title: "Model out", Link: "https://a.example/1", Content: "excerpt", Source: "a.example"},
	}
}

func TestComposeEditionParsesStructuredResponse(t *testing.T) {
	var gotRequest chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		_, _ = w.Write([]byte(completionBody(validEdition)))
	}))
	defer server.Close()

	edition, err := testEditor(server.URL).ComposeEdition(context.Background(), sampleCandidates())

	require.NoError(t, err)
	require.Equal(t, "AI Everywhere", edition.Title)
	require.Len(t, edition.Categories, 1)
	require.Equal(t, []string{"One-liner"}, edition.QuickTakes)

	require.NotNil(t, gotRequest.ResponseFormat)
	require.Equal(t, "json_object", gotRequest.ResponseFormat.Type)
	require.Len(t, gotRequest.Messages, 2)
	require.Equal(t, "system", gotRequest.Messages[0].Role)
	require.Contains(t, gotRequest.Messages[1].Content, "https://a.example/1")
}

func TestComposeEditionRetriesOnUnparseableResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(completionBody("this is not json")))
			return
		}
		_, _ = w.Write([]byte(completionBody(validEdition)))
	}))
	defer server.Close()

	edition, err := testEditor(server.URL).ComposeEdition(context.Background(), sampleCandidates())

	require.NoError(t, err)
	require.Equal(t, "AI Everywhere", edition.Title)
	require.Equal(t, int32(2), calls.Load())
}

func TestComposeEditionRejectsIncompleteDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(completionBody(`{"title": "No intro or categories"}`)))
	}))
	defer server.Close()

	_, err := testEditor(server.URL).ComposeEdition(context.Background(), sampleCandidates())

	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
}

func TestComposeEditionFailsOnEmptyCompletion(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	_, err := testEditor(server.URL).ComposeEdition(context.Background(), sampleCandidates())

	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load())
}

func TestComposeEditionMisconfigured(t *testing.T) {
	editor := NewEditor(config.OpenAIConfig{Endpoint: "https://api.openai.com/v1/chat/completions"})

	_, err := editor.ComposeEdition(context.Background(), sampleCandidates())

	require.Error(t, err)
}
