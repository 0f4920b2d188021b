// Package archive owns the single per-day archival document: idempotent
// find-or-create, bounded append of paper sections, and boundary-isolated
// header rewriting.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

const (
	// boundaryMarker separates the rewritable header block from the
	// append-only paper sections. Everything before its first occurrence is
	// the header; bytes after it are never touched by a header rewrite.
	boundaryMarker = "---\n\n"

	// truncationSentinel is appended when a write would exceed the body
	// bound. The issue stays readable instead of being corrupted.
	truncationSentinel = "\n\n> Body limit reached. Further papers continue in the next day's issue."

	maxRawAbstract = 3000

	titleFormat = "[Daily] %s SystemPaperDaily"
	dateLayout  = "2006-01-02"
)

// Manager finds or creates the day's document and serializes all writes to
// it. One Manager serves one run; calls must not be concurrent.
type Manager struct {
	store     ports.RecordStore
	label     string
	bodyLimit int
	now       func() time.Time
	logger    *slog.Logger

	doc       *ports.IssueRecord // memoized handle with the current body
	createErr error              // sticky: at most one create attempt per run
}

// NewManager wires the record store; now is injectable for tests and
// defaults to time.Now.
func NewManager(store ports.RecordStore, label string, bodyLimit int, now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		store:     store,
		label:     label,
		bodyLimit: bodyLimit,
		now:       now,
		logger:    logger,
	}
}

// DailyTitle renders the exact-match lookup title for a calendar day.
func DailyTitle(t time.Time) string {
	return fmt.Sprintf(titleFormat, t.UTC().Format(dateLayout))
}

// GetOrCreate returns today's document handle, looking it up by exact title
// before attempting creation. The result, success or failure, is memoized
// so a run performs at most one create attempt.
func (m *Manager) GetOrCreate(ctx context.Context) (ports.IssueRecord, error) {
	if m.doc != nil {
		return *m.doc, nil
	}
	if m.createErr != nil {
		return ports.IssueRecord{}, m.createErr
	}

	title := DailyTitle(m.now())

	if err := m.store.EnsureLabel(ctx, m.label); err != nil {
		m.createErr = fmt.Errorf("ensure label: %w", err)
		return ports.IssueRecord{}, m.createErr
	}

	if rec, found, err := m.store.FindByTitle(ctx, title); err != nil {
		// Lookup failure is not memoized as fatal: creating a duplicate is
		// worse than retrying the search on the next paper.
		return ports.IssueRecord{}, fmt.Errorf("find daily document: %w", err)
	} else if found {
		m.doc = &rec
		if m.logger != nil {
			m.logger.Info("reusing daily document", "number", rec.Number, "title", title)
		}
		return rec, nil
	}

	rec, err := m.store.Create(ctx, title, m.renderHeader(nil), m.label)
	if err != nil {
		m.createErr = fmt.Errorf("create daily document: %w", err)
		return ports.IssueRecord{}, m.createErr
	}

	m.doc = &rec
	return rec, nil
}

// Append renders the paper section and writes the grown body back to the
// store. On failure the caller must not mark the paper as processed. The
// returned number is the document's opaque store handle.
func (m *Manager) Append(ctx context.Context, paper domain.Paper, summary string, ordinal int) (int, error) {
	doc, err := m.GetOrCreate(ctx)
	if err != nil {
		return 0, err
	}

	newBody := doc.Body + renderSection(paper, summary, ordinal)
	if len(newBody) > m.bodyLimit {
		if m.logger != nil {
			m.logger.Warn("document body at limit, truncating", "number", doc.Number, "limit", m.bodyLimit)
		}
		newBody = newBody[:m.bodyLimit] + truncationSentinel
	}

	if err := m.store.EditBody(ctx, doc.Number, newBody); err != nil {
		return 0, fmt.Errorf("append to document %d: %w", doc.Number, err)
	}

	m.doc.Body = newBody
	return doc.Number, nil
}

// UpdateHeader rewrites the block before the first boundary marker with the
// final run statistics, leaving every byte after the marker untouched. A
// no-op when no document was touched this run.
func (m *Manager) UpdateHeader(ctx context.Context, stats domain.RunStats) error {
	if m.doc == nil {
		return nil
	}

	header := m.renderHeader(&stats)
	body := m.doc.Body

	var newBody string
	if idx := strings.Index(body, boundaryMarker); idx >= 0 {
		newBody = header + body[idx+len(boundaryMarker):]
	} else {
		// Missing marker means the document was corrupted or hand-edited;
		// keep the whole body as trailing content.
		newBody = header + body
	}

	if err := m.store.EditBody(ctx, m.doc.Number, newBody); err != nil {
		return fmt.Errorf("update header of document %d: %w", m.doc.Number, err)
	}

	m.doc.Body = newBody
	return nil
}

// renderHeader produces the full header block including the trailing
// boundary marker. Stats are omitted on first creation.
func (m *Manager) renderHeader(stats *domain.RunStats) string {
	day := m.now().UTC().Format(dateLayout)

	var b strings.Builder
	fmt.Fprintf(&b, "# SystemPaperDaily — %s\n\n", day)
	b.WriteString("> Automated daily digest of new systems papers (arXiv + RSS).\n\n")

	if stats != nil {
		b.WriteString("| Metric | Count |\n")
		b.WriteString("|--------|-------|\n")
		fmt.Fprintf(&b, "| Fetched | %d |\n", stats.Total)
		fmt.Fprintf(&b, "| Processed | %d |\n", stats.Processed)
		fmt.Fprintf(&b, "| Skipped (duplicate) | %d |\n\n", stats.Skipped)
	}

	b.WriteString(boundaryMarker)
	return b.String()
}

// renderSection formats one paper as a markdown block, ending with the
// section separator. The marker line must stay in the exact shape the dedup
// scanner extracts.
func renderSection(paper domain.Paper, summary string, ordinal int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## %d. %s\n\n", ordinal, paper.Title)
	fmt.Fprintf(&b, "- **Paper ID**: `%s`\n", paper.ID)
	fmt.Fprintf(&b, "- **Authors**: %s\n", orNA(strings.Join(paper.Authors, ", ")))
	fmt.Fprintf(&b, "- **Published**: %s\n", orNA(paper.Published))
	fmt.Fprintf(&b, "- **Source**: %s\n", orNA(paper.Source))
	fmt.Fprintf(&b, "- **Categories**: %s\n", orNA(strings.Join(paper.Categories, ", ")))
	fmt.Fprintf(&b, "- **PDF**: %s\n", orNA(paper.PDFURL))
	fmt.Fprintf(&b, "- **URL**: %s\n\n", orNA(paper.HTMLURL))

	b.WriteString("### Summary\n\n")
	b.WriteString(summary)
	b.WriteString("\n\n")

	b.WriteString("<details><summary>Original abstract</summary>\n\n")
	abstract := paper.Abstract
	if abstract == "" {
		abstract = "_no abstract_"
	} else if len(abstract) > maxRawAbstract {
		abstract = abstract[:maxRawAbstract]
	}
	b.WriteString(abstract)
	b.WriteString("\n\n</details>\n\n")

	b.WriteString("---\n\n")
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
