package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/scanner"
)

const arxivBaseURL = "https://arxiv.org"

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivScanner crawls category listing pages and extracts papers submitted
// within the requested recent-hours window.
type ArxivScanner struct {
	client   *http.Client
	pageSize int
	now      func() time.Time
}

// NewArxivScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivScanner(client *http.Client) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivScanner{client: client, pageSize: 200, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks each category URL and returns papers newer than the cutoff,
// capped at MaxResults per category. Listing pages are ordered newest first,
// so the walk stops at the first entry older than the cutoff.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Paper, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	cutoff := a.now().UTC().Add(-time.Duration(req.RecentHours) * time.Hour)
	// The listing only dates entries by day; compare at day granularity so a
	// 48h window does not drop same-day submissions.
	cutoffDay := cutoff.Truncate(24 * time.Hour)

	results := make([]domain.Paper, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		collected := 0
		skip := 0
		for {
			pageURL, err := buildPageURL(cat.URL, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			pagePapers, shouldContinue := a.extractPapers(doc, cutoffDay, cat.Name)
			for _, paper := range pagePapers {
				if _, ok := seen[paper.ID]; ok {
					continue
				}
				if req.MaxResults > 0 && collected >= req.MaxResults {
					shouldContinue = false
					break
				}
				seen[paper.ID] = struct{}{}
				results = append(results, paper)
				collected++
			}

			if !shouldContinue {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SystemPaperDaily/1.0")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (a *ArxivScanner) extractPapers(doc *goquery.Document, cutoffDay time.Time, category string) ([]domain.Paper, bool) {
	var (
		collected    []domain.Paper
		continueScan = true
		processed    int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		paper, publishedAt, err := parseEntry(dt, dd, category)
		if err != nil {
			return true
		}

		paperDay := publishedAt.UTC().Truncate(24 * time.Hour)
		if paperDay.Before(cutoffDay) {
			continueScan = false
			return false
		}
		collected = append(collected, paper)

		return true
	})

	if processed < a.pageSize {
		continueScan = false
	}

	return collected, continueScan
}

func parseEntry(dt, dd *goquery.Selection, category string) (domain.Paper, time.Time, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()
	id := strings.TrimSpace(link.Text())
	href, _ := link.Attr("href")
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	id = strings.TrimPrefix(id, "arXiv:")
	if id == "" {
		return domain.Paper{}, time.Time{}, fmt.Errorf("entry without identifier")
	}

	if !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	pdfURL := ""
	if pdfHref, ok := dt.Find("a[href*=\"/pdf/\"]").First().Attr("href"); ok {
		pdfURL = pdfHref
		if !strings.HasPrefix(pdfURL, "http") {
			pdfURL = strings.TrimSuffix(arxivBaseURL, "/") + pdfURL
		}
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	// The title div also carries the mathjax class; only the <p> holds the
	// abstract text.
	abstract := dd.Find("p.mathjax").First().Text()
	abstract = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(abstract), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, sel *goquery.Selection) {
		if name := strings.TrimSpace(sel.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	subjects := strings.TrimSpace(dd.Find(".list-subjects").First().Text())
	subjects = strings.TrimSpace(strings.TrimPrefix(subjects, "Subjects:"))
	var categories []string
	for _, subject := range strings.Split(subjects, ";") {
		if s := strings.TrimSpace(subject); s != "" {
			categories = append(categories, s)
		}
	}
	if len(categories) == 0 && category != "" {
		categories = []string{category}
	}

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	match := dateExpr.FindString(dateText)
	publishedAt := time.Now().UTC()
	if match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			publishedAt = parsed
		}
	}

	paper := domain.Paper{
		ID:         id,
		Title:      title,
		Authors:    authors,
		Abstract:   abstract,
		PDFURL:     pdfURL,
		HTMLURL:    href,
		Published:  publishedAt.Format(time.RFC3339),
		Categories: categories,
		Source:     "arxiv",
	}

	return paper, publishedAt, nil
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
