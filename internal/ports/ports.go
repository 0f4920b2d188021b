package ports

import (
	"context"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
)

// PaperSource pulls fresh papers from upstream providers. Implementations
// isolate their own failures: a broken feed yields zero papers, not an error
// that aborts the run.
type PaperSource interface {
	Fetch(ctx context.Context) ([]domain.Paper, error)
}

// IssueRecord is one record held by the external archive store. The number
// is an opaque handle assigned by the store, never constructed locally.
type IssueRecord struct {
	Number int
	Title  string
	Body   string
}

// RecordStore abstracts the issue-tracker-shaped store backing deduplication
// and archival.
type RecordStore interface {
	EnsureLabel(ctx context.Context, name string) error
	ListByLabel(ctx context.Context, label string) ([]IssueRecord, error)
	FindByTitle(ctx context.Context, title string) (IssueRecord, bool, error)
	Create(ctx context.Context, title, body, label string) (IssueRecord, error)
	EditBody(ctx context.Context, number int, body string) error
}

// Enricher fetches fuller content for a paper beyond its abstract.
// Failures are expected; the caller falls back to the abstract.
type Enricher interface {
	Extract(ctx context.Context, paper domain.Paper) (string, error)
}

// Summarizer produces generated text for paper content. It never fails
// outward: degraded output is a placeholder string, not an error.
type Summarizer interface {
	Summarize(ctx context.Context, content string) string
}

// Notifier fans the run's results out to a webhook channel.
type Notifier interface {
	PublishDigest(ctx context.Context, results []domain.Result) error
	PublishSummary(ctx context.Context, stats domain.RunStats) error
}

// Mailer sends the daily digest over email.
type Mailer interface {
	SendDigest(ctx context.Context, results []domain.Result) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
