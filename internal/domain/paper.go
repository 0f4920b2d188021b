package domain

import "strings"

// Paper is the core entity describing one discovered document.
// Instances are immutable once fetched; the pipeline owns them for one run.
type Paper struct {
	ID         string // globally unique per source (arXiv ID or hashed RSS entry)
	Title      string
	Authors    []string
	Abstract   string
	PDFURL     string // enrichment-source locator
	HTMLURL    string // human-readable locator
	Published  string // ISO timestamp, may be empty
	Categories []string
	Source     string // "arxiv" / "rss" / site name
}

// MatchKeywords reports whether the title or abstract contains any of the
// given keywords, case-insensitively.
func (p Paper) MatchKeywords(keywords []string) bool {
	text := strings.ToLower(p.Title + " " + p.Abstract)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Result pairs a paper with its generated summary for notification fan-out.
type Result struct {
	Paper   Paper
	Summary string
}

// RunStats aggregates the per-run counters written into the daily header
// and pushed with the closing summary notification.
type RunStats struct {
	Total     int // papers fetched across all sources, before filtering
	Processed int // newly appended this run
	Skipped   int // duplicates found in the archive
}
