package parser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
	"github.com/Seeker214/SystemPaperDaily/internal/scanner"
)

// StrategySource implements PaperSource via registered scanner strategies.
// A failing site yields zero papers and the remaining sites still run.
type StrategySource struct {
	registry    *scanner.Registry
	sites       []config.SiteConfig
	recentHours int
	maxResults  int
	logger      *slog.Logger
}

var _ ports.PaperSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, cfg config.Config, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:    reg,
		sites:       cfg.Sites,
		recentHours: cfg.Pipeline.RecentHours,
		maxResults:  cfg.Pipeline.MaxResults,
		logger:      log,
	}
}

// Fetch iterates over configured sites and executes their scanners.
func (s *StrategySource) Fetch(ctx context.Context) ([]domain.Paper, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	var aggregated []domain.Paper
	for _, site := range s.sites {
		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			s.warn("site skipped", "site", site.Name, "error", err)
			continue
		}

		req := scanner.Request{
			SiteName:    site.Name,
			Options:     site.Options,
			RecentHours: s.recentHours,
			MaxResults:  s.maxResults,
			Categories:  toScannerCategories(site.Categories),
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			s.warn("site fetch failed, treated as zero papers", "site", site.Name, "error", err)
			continue
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = site.Name
			}
		}
		s.debug("site produced papers", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_papers", len(aggregated))
	return aggregated, nil
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
