// Package enrich downloads a paper's PDF and extracts text for
// summarization. Enrichment is best effort: any failure here means the
// caller falls back to the abstract.
package enrich

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/Seeker214/SystemPaperDaily/internal/config"
	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

const (
	// maxDownloadBytes caps how much PDF is pulled into memory.
	maxDownloadBytes = 32 << 20

	truncationNotice = "\n\n[content truncated]"
)

// ErrNoPDF marks papers without an enrichment locator.
var ErrNoPDF = errors.New("enrich: paper has no PDF locator")

// PDFExtractor implements the Enricher port. In partial mode it extracts the
// first and last few pages (abstract, introduction, conclusion); full mode
// extracts everything, under a larger character cap.
type PDFExtractor struct {
	client     *http.Client
	mode       string
	firstPages int
	lastPages  int
	maxChars   int
	logger     *slog.Logger
}

var _ ports.Enricher = (*PDFExtractor)(nil)

// NewPDFExtractor wires extraction settings; client defaults to one with the
// configured download timeout.
func NewPDFExtractor(cfg config.PDFConfig, client *http.Client, logger *slog.Logger) *PDFExtractor {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return &PDFExtractor{
		client:     client,
		mode:       cfg.Mode,
		firstPages: cfg.FirstPages,
		lastPages:  cfg.LastPages,
		maxChars:   cfg.MaxChars,
		logger:     logger,
	}
}

// Extract downloads the paper's PDF and returns the selected pages' text.
func (e *PDFExtractor) Extract(ctx context.Context, paper domain.Paper) (string, error) {
	if paper.PDFURL == "" {
		return "", ErrNoPDF
	}

	data, err := e.download(ctx, paper.PDFURL)
	if err != nil {
		return "", err
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	total := reader.NumPage()
	var parts []string
	for _, pageNum := range e.selectPages(total) {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- Page %d ---\n%s", pageNum, text))
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("pdf yielded no extractable text (%d pages)", total)
	}

	full := strings.Join(parts, "\n")
	if e.maxChars > 0 && len(full) > e.maxChars {
		full = full[:e.maxChars] + truncationNotice
	}

	if e.logger != nil {
		e.logger.Info("extracted pdf content", "paper", paper.ID, "pages", total, "chars", len(full))
	}
	return full, nil
}

func (e *PDFExtractor) download(ctx context.Context, pdfURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SystemPaperDaily/1.0 (research bot)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download pdf: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pdf download returned %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read pdf body: %w", err)
	}
	return data, nil
}

// selectPages returns the 1-based page numbers to extract, in order, without
// duplicates when the windows overlap.
func (e *PDFExtractor) selectPages(total int) []int {
	if total <= 0 {
		return nil
	}
	if e.mode == "full" {
		pages := make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	var pages []int
	head := e.firstPages
	if head > total {
		head = total
	}
	for i := 1; i <= head; i++ {
		pages = append(pages, i)
	}

	tailStart := total - e.lastPages + 1
	if tailStart <= head {
		tailStart = head + 1
	}
	for i := tailStart; i <= total; i++ {
		pages = append(pages, i)
	}
	return pages
}
