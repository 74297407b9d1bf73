package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"TechDigest/internal/config"
	"TechDigest/internal/domain"
	"TechDigest/internal/ports"
	"TechDigest/internal/render"
)

// GeneratorDeps wires all driven adapters into the generation pipeline.
type GeneratorDeps struct {
	Sources     []ports.ItemSource
	Synthesizer ports.Synthesizer
	Renderer    *render.Renderer
	Editions    ports.EditionRepository
	Pipeline    config.PipelineConfig
	Logger      *slog.Logger
}

// Generator implements the edition-generation workflow: fetch, aggregate,
// normalize, synthesize, render, persist.
type Generator struct {
	sources     []ports.ItemSource
	synthesizer ports.Synthesizer
	renderer    *render.Renderer
	editions    ports.EditionRepository
	pipeline    config.PipelineConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewGenerator constructs the orchestration component.
func NewGenerator(deps GeneratorDeps) *Generator {
	return &Generator{
		sources:     deps.Sources,
		synthesizer: deps.Synthesizer,
		renderer:    deps.Renderer,
		editions:    deps.Editions,
		pipeline:    deps.Pipeline,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

// Generate runs one complete pipeline pass and persists a draft edition.
// A failed source only shrinks the candidate set; synthesis and persistence
// failures abort the run with no edition written.
func (g *Generator) Generate(ctx context.Context) (domain.Edition, error) {
	items := g.fetchAll(ctx)

	candidates := normalizeItems(
		aggregateItems(items, g.now(), g.pipeline.RecencyWindow, g.pipeline.MaxCandidates),
		g.pipeline.ExcerptChars,
	)
	if len(candidates) == 0 {
		return domain.Edition{}, fmt.Errorf("no recent items to compose an edition from")
	}
	g.info("candidates prepared", "count", len(candidates))

	content, err := g.synthesizer.ComposeEdition(ctx, candidates)
	if err != nil {
		return domain.Edition{}, fmt.Errorf("compose edition: %w", err)
	}
	g.info("edition composed", "title", content.Title, "categories", len(content.Categories))

	html, err := g.renderer.Render(content)
	if err != nil {
		return domain.Edition{}, fmt.Errorf("render edition: %w", err)
	}

	edition, err := g.editions.Insert(ctx, domain.Edition{
		Title:   editionTitle(g.now()),
		Intro:   content.Intro,
		Content: content,
		HTML:    html,
	})
	if err != nil {
		return domain.Edition{}, fmt.Errorf("persist edition: %w", err)
	}

	g.info("edition saved", "edition_number", edition.EditionNumber, "id", edition.ID)
	return edition, nil
}

// fetchAll queries every source concurrently and concatenates results in
// configured source order, so the aggregator's tie-breaking stays stable
// across runs. A source failure is logged and contributes no items; it
// never aborts the fetch.
func (g *Generator) fetchAll(ctx context.Context) []domain.RawItem {
	type fetchResult struct {
		items []domain.RawItem
		err   error
	}

	results := make([]fetchResult, len(g.sources))
	var wg sync.WaitGroup
	for i, src := range g.sources {
		wg.Add(1)
		go func(i int, src ports.ItemSource) {
			defer wg.Done()
			items, err := src.Fetch(ctx)
			results[i] = fetchResult{items: items, err: err}
		}(i, src)
	}
	wg.Wait()

	var all []domain.RawItem
	for i, res := range results {
		if res.err != nil {
			g.warn("source failed", "source", g.sources[i].Name(), "error", res.err)
			continue
		}
		g.info("source fetched", "source", g.sources[i].Name(), "items", len(res.items))
		all = append(all, res.items...)
	}
	return all
}

// editionTitle derives the display title from the run date; the
// model-provided title stays inside the structured content.
func editionTitle(now time.Time) string {
	return fmt.Sprintf("Edition %s", now.Format("02/01/06"))
}

func (g *Generator) info(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Info(msg, args...)
	}
}

func (g *Generator) warn(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Warn(msg, args...)
	}
}
