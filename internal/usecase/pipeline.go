// Package usecase hosts the orchestration workflows that tie sources,
// deduplication, archival, summarization, and notification together.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/archive"
	"github.com/Seeker214/SystemPaperDaily/internal/dedup"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.PaperSource
	Store      ports.RecordStore
	Enricher   ports.Enricher
	Summarizer ports.Summarizer
	Notifier   ports.Notifier
	Mailer     ports.Mailer

	Keywords    []string
	Label       string
	BodyLimit   int
	PacingDelay time.Duration

	Logger *slog.Logger
}

// Pipeline implements the daily paper-processing workflow. Papers are
// handled strictly one at a time; a single run touches each new paper at
// most once.
type Pipeline struct {
	source     ports.PaperSource
	store      ports.RecordStore
	enricher   ports.Enricher
	summarizer ports.Summarizer
	notifier   ports.Notifier
	mailer     ports.Mailer

	keywords    []string
	label       string
	bodyLimit   int
	pacingDelay time.Duration

	now    func() time.Time
	sleep  func(time.Duration)
	logger *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:      deps.Source,
		store:       deps.Store,
		enricher:    deps.Enricher,
		summarizer:  deps.Summarizer,
		notifier:    deps.Notifier,
		mailer:      deps.Mailer,
		keywords:    deps.Keywords,
		label:       deps.Label,
		bodyLimit:   deps.BodyLimit,
		pacingDelay: deps.PacingDelay,
		now:         time.Now,
		sleep:       time.Sleep,
		logger:      logger,
	}
}

// Run executes one full daily cycle: fetch, filter, dedup, summarize,
// archive, notify. Per-paper failures degrade that paper only; the run
// carries on with the rest.
func (p *Pipeline) Run(ctx context.Context) error {
	start := p.now()
	p.logger.Info("pipeline run started")

	papers, err := p.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("fetch papers: %w", err)
	}

	stats := domain.RunStats{Total: len(papers)}
	filtered := p.filterByKeywords(papers)
	p.logger.Info("papers fetched", "total", stats.Total, "matched", len(filtered))

	if len(filtered) == 0 {
		p.publishSummary(ctx, stats)
		return nil
	}

	index := dedup.New(p.store, p.label, p.logger.With("component", "dedup"))
	manager := archive.NewManager(p.store, p.label, p.bodyLimit, p.now, p.logger.With("component", "archive"))

	var digest []domain.Result
	for i, paper := range filtered {
		processed, err := index.IsProcessed(ctx, paper.ID)
		if err != nil {
			// Unknown membership: skip without marking so the paper
			// stays eligible for the next run.
			p.logger.Error("dedup check failed", "paper", paper.ID, "error", err)
			continue
		}
		if processed {
			stats.Skipped++
			p.logger.Debug("skipping duplicate", "paper", paper.ID)
			continue
		}

		result, archived := p.processPaper(ctx, manager, paper, stats.Processed+1)
		if archived {
			index.MarkProcessed(paper.ID)
			stats.Processed++
			digest = append(digest, result)
		}

		if i < len(filtered)-1 {
			p.sleep(p.pacingDelay)
		}
	}

	if err := manager.UpdateHeader(ctx, stats); err != nil {
		p.logger.Error("update archive header failed", "error", err)
	}

	if len(digest) > 0 {
		if p.notifier != nil {
			if err := p.notifier.PublishDigest(ctx, digest); err != nil {
				p.logger.Error("publish digest failed", "error", err)
			}
		}
		if p.mailer != nil {
			if err := p.mailer.SendDigest(ctx, digest); err != nil {
				p.logger.Error("send digest email failed", "error", err)
			}
		}
	}

	p.publishSummary(ctx, stats)
	p.logger.Info("pipeline run finished",
		"processed", stats.Processed,
		"skipped", stats.Skipped,
		"elapsed", p.now().Sub(start).Round(time.Second))
	return nil
}

// processPaper summarizes and archives one paper. It reports whether the
// paper was durably appended; only then may it be marked processed.
func (p *Pipeline) processPaper(ctx context.Context, manager *archive.Manager, paper domain.Paper, ordinal int) (domain.Result, bool) {
	content := paper.Abstract
	if p.enricher != nil {
		extracted, err := p.enricher.Extract(ctx, paper)
		if err != nil {
			p.logger.Warn("content extraction failed, using abstract", "paper", paper.ID, "error", err)
		} else if extracted != "" {
			content = extracted
		}
	}

	summary := p.summarizer.Summarize(ctx, content)

	if _, err := manager.GetOrCreate(ctx); err != nil {
		p.logger.Error("daily archive unavailable", "paper", paper.ID, "error", err)
		return domain.Result{}, false
	}
	if _, err := manager.Append(ctx, paper, summary, ordinal); err != nil {
		p.logger.Error("archive append failed", "paper", paper.ID, "error", err)
		return domain.Result{}, false
	}

	p.logger.Info("paper archived", "paper", paper.ID, "ordinal", ordinal)
	return domain.Result{Paper: paper, Summary: summary}, true
}

func (p *Pipeline) filterByKeywords(papers []domain.Paper) []domain.Paper {
	if len(p.keywords) == 0 {
		return papers
	}
	var matched []domain.Paper
	for _, paper := range papers {
		if paper.MatchKeywords(p.keywords) {
			matched = append(matched, paper)
		}
	}
	return matched
}

func (p *Pipeline) publishSummary(ctx context.Context, stats domain.RunStats) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PublishSummary(ctx, stats); err != nil {
		p.logger.Error("publish run summary failed", "error", err)
	}
}
