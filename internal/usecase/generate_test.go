package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"TechDigest/internal/config"
	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
	"TechDigest/internal/render"
)

type fakeSource struct {
	name  string
	items []domain.RawItem
	err   error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Fetch(context.Context) ([]domain.RawItem, error) {
	return s.items, s.err
}

type fakeSynthesizer struct {
	content    domain.EditionContent
	err        error
	candidates []domain.CandidateItem
}

func (s *fakeSynthesizer) ComposeEdition(_ context.Context, candidates []domain.CandidateItem) (domain.EditionContent, error) {
	s.candidates = candidates
	if s.err != nil {
		return domain.EditionContent{}, s.err
	}
	return s.content, nil
}

func sampleContent() domain.EditionContent {
	return domain.EditionContent{
		Title: "AI Everywhere",
		Intro: "Another busy day in tech.",
		Categories: []domain.Category{
			{
				Name: "ARTIFICIAL INTELLIGENCE",
				Items: []domain.StoryItem{
					{Headline: "Model released", Story: "First paragraph.\nSecond paragraph.", Link: "https://a.example/1"},
				},
			},
		},
	}
}

func pipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		RecencyWindow: 24 * time.Hour,
		MaxCandidates: 150,
		ExcerptChars:  500,
	}
}

func TestGeneratePersistsDraftEdition(t *testing.T) {
	now := time.Date(2025, time.November, 10, 7, 0, 0, 0, time.UTC)
	repo := newFakeEditionRepo()
	synth := &fakeSynthesizer{content: sampleContent()}

	gen := NewGenerator(GeneratorDeps{
		Sources: []ports.ItemSource{
			&fakeSource{name: "feed-a", items: []domain.RawItem{
				{Title: "fresh", Link: "https://a.example/1", Summary: "text", PublishedAt: ts(now.Add(-time.Hour))},
			}},
		},
		Synthesizer: synth,
		Renderer:    render.NewRenderer(),
		Editions:    repo,
		Pipeline:    pipelineConfig(),
	})
	gen.now = func() time.Time { return now }

	edition, err := gen.Generate(context.Background())

	require.NoError(t, err)
	require.Equal(t, "Edition 10/11/25", edition.Title)
	require.Equal(t, "Another busy day in tech.", edition.Intro)
	require.Equal(t, domain.StatusDraft, edition.Status)
	require.Equal(t, 1, edition.EditionNumber)
	require.Contains(t, edition.HTML, "AI Everywhere")
	require.Len(t, synth.candidates, 1)
	require.Equal(t, "fresh", synth.candidates[0].Title)
}

func TestGenerateToleratesFailingSource(t *testing.T) {
	now := time.Date(2025, time.November, 10, 7, 0, 0, 0, time.UTC)
	repo := newFakeEditionRepo()
	synth := &fakeSynthesizer{content: sampleContent()}

	gen := NewGenerator(GeneratorDeps{
		Sources: []ports.ItemSource{
			&fakeSource{name: "broken", err: fmt.Errorf("connection refused")},
			&fakeSource{name: "healthy", items: []domain.RawItem{
				{Title: "fresh", Link: "https://a.example/1", Summary: "text", PublishedAt: ts(now.Add(-time.Hour))},
			}},
		},
		Synthesizer: synth,
		Renderer:    render.NewRenderer(),
		Editions:    repo,
		Pipeline:    pipelineConfig(),
	})
	gen.now = func() time.Time { return now }

	_, err := gen.Generate(context.Background())

	require.NoError(t, err)
	require.Len(t, synth.candidates, 1)
}

func TestGenerateFailsWithoutRecentItems(t *testing.T) {
	now := time.Date(2025, time.November, 10, 7, 0, 0, 0, time.UTC)
	repo := newFakeEditionRepo()

	gen := NewGenerator(GeneratorDeps{
		Sources: []ports.ItemSource{
			&fakeSource{name: "stale", items: []domain.RawItem{
				{Title: "old", Link: "https://a.example/1", PublishedAt: ts(now.Add(-72 * time.Hour))},
			}},
		},
		Synthesizer: &fakeSynthesizer{content: sampleContent()},
		Renderer:    render.NewRenderer(),
		Editions:    repo,
		Pipeline:    pipelineConfig(),
	})
	gen.now = func() time.Time { return now }

	_, err := gen.Generate(context.Background())

	require.Error(t, err)
	require.Empty(t, repo.editions)
}

func TestGenerateSynthesisFailurePersistsNothing(t *testing.T) {
	now := time.Date(2025, time.November, 10, 7, 0, 0, 0, time.UTC)
	repo := newFakeEditionRepo()

	gen := NewGenerator(GeneratorDeps{
		Sources: []ports.ItemSource{
			&fakeSource{name: "healthy", items: []domain.RawItem{
				{Title: "fresh", Link: "https://a.example/1", PublishedAt: ts(now.Add(-time.Hour))},
			}},
		},
		Synthesizer: &fakeSynthesizer{err: fmt.Errorf("model unavailable")},
		Renderer:    render.NewRenderer(),
		Editions:    repo,
		Pipeline:    pipelineConfig(),
	})
	gen.now = func() time.Time { return now }

	_, err := gen.Generate(context.Background())

	require.Error(t, err)
	require.Empty(t, repo.editions)
}

func TestGenerateEditionNumbersAreSequential(t *testing.T) {
	now := time.Date(2025, time.November, 10, 7, 0, 0, 0, time.UTC)
	repo := newFakeEditionRepo()

	gen := NewGenerator(GeneratorDeps{
		Sources: []ports.ItemSource{
			&fakeSource{name: "feed-a", items: []domain.RawItem{
				{Title: "fresh", Link: "https://a.example/1", PublishedAt: ts(now.Add(-time.Hour))},
			}},
		},
		Synthesizer: &fakeSynthesizer{content: sampleContent()},
		Renderer:    render.NewRenderer(),
		Editions:    repo,
		Pipeline:    pipelineConfig(),
	})
	gen.now = func() time.Time { return now }

	var numbers []int
	for i := 0; i < 3; i++ {
		edition, err := gen.Generate(context.Background())
		require.NoError(t, err)
		numbers = append(numbers, edition.EditionNumber)
	}

	require.Equal(t, []int{1, 2, 3}, numbers)
}
