// Package app assembles configuration, adapters, and use cases into a
// runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/enrich"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/llm"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/notify"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/parser"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/scheduler"
	"github.com/Seeker214/SystemPaperDaily/internal/infrastructure/store"
	"github.com/Seeker214/SystemPaperDaily/internal/logging"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
	"github.com/Seeker214/SystemPaperDaily/internal/scanner"
	"github.com/Seeker214/SystemPaperDaily/internal/summarize"
	"github.com/Seeker214/SystemPaperDaily/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(nil))
	registry.Register(parser.NewRSSScanner(nil))
	source := parser.NewStrategySource(registry, cfg, baseLogger.With("component", "source"))

	recordStore := store.New(ctx, cfg.GitHub.Token, cfg.GitHub.Owner(), cfg.GitHub.Repo(),
		baseLogger.With("component", "store"))

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build generation provider: %w", err)
	}
	summarizer := summarize.NewClient(provider, summarize.DefaultSystemPrompt,
		cfg.LLM.MaxRetries,
		time.Duration(cfg.LLM.RetryBaseDelaySeconds)*time.Second,
		baseLogger.With("component", "summarize"))

	enricher := enrich.NewPDFExtractor(cfg.PDF, nil, baseLogger.With("component", "enrich"))

	var notifier ports.Notifier
	if cfg.Notifications.WebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notifications.WebhookURL,
			baseLogger.With("component", "webhook"))
	}
	mailer := notify.NewEmailNotifier(cfg.Notifications.Email,
		baseLogger.With("component", "email"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:      source,
		Store:       recordStore,
		Enricher:    enricher,
		Summarizer:  summarizer,
		Notifier:    notifier,
		Mailer:      mailer,
		Keywords:    cfg.Keywords,
		Label:       cfg.GitHub.Label,
		BodyLimit:   cfg.Pipeline.BodyLimit,
		PacingDelay: time.Duration(cfg.Pipeline.PacingSeconds) * time.Second,
		Logger:      baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline, logger: baseLogger}, nil
}

func buildProvider(ctx context.Context, cfg config.Config) (summarize.Provider, error) {
	selected, ok := cfg.LLM.Selected()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", cfg.LLM.Provider)
	}

	maxInput := cfg.PDF.MaxInputChars()
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		return llm.NewGemini(ctx, selected, cfg.LLM.Temperature, maxInput)
	default:
		// DeepSeek and OpenAI share the OpenAI-compatible chat API.
		return llm.NewOpenAI(cfg.LLM.Provider, selected, cfg.LLM.Temperature, maxInput)
	}
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context) error {
	return a.pipeline.Run(ctx)
}

// RunScheduled blocks running the pipeline on the configured daily schedule
// until the context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	sched := usecase.NewScheduler(driver, a.pipeline)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("daemon started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Timezone)

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}
