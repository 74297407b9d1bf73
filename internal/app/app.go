package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"TechDigest/internal/config"
	"TechDigest/internal/httpapi"
	"TechDigest/internal/infrastructure/llm"
	"TechDigest/internal/infrastructure/mailer"
	"TechDigest/internal/infrastructure/scheduler"
	"TechDigest/internal/infrastructure/source"
	"TechDigest/internal/infrastructure/storage"
	"TechDigest/internal/logging"
	"TechDigest/internal/ports"
	"TechDigest/internal/render"
	"TechDigest/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	generator *usecase.Generator
	scheduler ports.Scheduler
	server    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	editions := storage.NewEditionRepository(db)
	subscribers := storage.NewSubscriberRepository(db)

	var sources []ports.ItemSource
	for _, feedURL := range cfg.Sources.Feeds {
		sources = append(sources, source.NewRSSSource(feedURL, nil))
	}
	for _, api := range cfg.Sources.APIs {
		sources = append(sources, source.NewAPISource(api.Name, api.URL, nil))
	}

	generator := usecase.NewGenerator(usecase.GeneratorDeps{
		Sources:     sources,
		Synthesizer: llm.NewEditor(cfg.OpenAI),
		Renderer:    render.NewRenderer(),
		Editions:    editions,
		Pipeline:    cfg.Pipeline,
		Logger:      baseLogger.With("component", "generator"),
	})

	publisher := usecase.NewPublisher(usecase.PublisherDeps{
		Editions:        editions,
		Subscribers:     subscribers,
		Mailer:          mailer.NewResendMailer(cfg.Mail),
		UnsubscribeBase: cfg.Mail.UnsubscribeBase,
		Logger:          baseLogger.With("component", "publisher"),
	})

	api := httpapi.NewServer(httpapi.Deps{
		Generator:   generator,
		Publisher:   publisher,
		Editions:    editions,
		Subscribers: subscribers,
		CronSecret:  cfg.Server.CronSecret,
		Logger:      baseLogger.With("component", "httpapi"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		db:        db,
		generator: generator,
		scheduler: scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location()),
		server: &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the scheduler and the HTTP listener, and blocks until the
// context is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	job := func(trigger time.Time) {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()
		if _, err := a.generator.Generate(runCtx); err != nil {
			a.logger.Error("scheduled generation failed", "trigger", trigger, "error", err)
		}
	}
	if err := a.scheduler.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.cfg.Server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server shutdown", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}

	return nil
}
