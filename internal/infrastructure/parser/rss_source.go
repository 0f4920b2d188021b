package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/scanner"
)

const maxAbstractChars = 2000

// RSSScanner fetches RSS 2.0 and Atom feeds and maps entries to papers.
type RSSScanner struct {
	client *http.Client
	now    func() time.Time
}

// NewRSSScanner wires an HTTP client; timeout defaults to 20s.
func NewRSSScanner(client *http.Client) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &RSSScanner{client: client, now: time.Now}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches each configured feed URL and returns entries within the
// recent-hours window. Entries without a parseable date are kept.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Paper, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	cutoff := r.now().UTC().Add(-time.Duration(req.RecentHours) * time.Hour)
	var papers []domain.Paper

	for _, feedRef := range req.Categories {
		entries, err := r.fetchFeed(ctx, feedRef.URL)
		if err != nil {
			return papers, fmt.Errorf("feed %s: %w", feedRef.Name, err)
		}

		collected := 0
		for _, entry := range entries {
			published, ok := entry.publishedAt()
			if ok && published.Before(cutoff) {
				continue
			}
			if req.MaxResults > 0 && collected >= req.MaxResults {
				break
			}

			paper := domain.Paper{
				ID:       "rss-" + entryID(entry),
				Title:    strings.ReplaceAll(strings.TrimSpace(entry.Title), "\n", " "),
				Abstract: truncate(strings.TrimSpace(entry.abstract()), maxAbstractChars),
				PDFURL:   entry.pdfLink(),
				HTMLURL:  entry.pageLink(),
				Source:   "rss",
			}
			if paper.Title == "" {
				paper.Title = "Untitled"
			}
			if ok {
				paper.Published = published.Format(time.RFC3339)
			}
			if paper.PDFURL == "" {
				paper.PDFURL = paper.HTMLURL
			}
			papers = append(papers, paper)
			collected++
		}
	}

	return papers, nil
}

func (r *RSSScanner) fetchFeed(ctx context.Context, feedURL string) ([]feedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SystemPaperDaily/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}

	return parseFeed(raw)
}

// feedDocument covers both RSS 2.0 (<rss><channel><item>) and Atom
// (<feed><entry>) in one structure.
type feedDocument struct {
	XMLName xml.Name
	Channel struct {
		Items []feedEntry `xml:"item"`
	} `xml:"channel"`
	Entries []feedEntry `xml:"entry"`
}

type feedEntry struct {
	GUID        string      `xml:"guid"`
	AtomID      string      `xml:"id"`
	Title       string      `xml:"title"`
	Description string      `xml:"description"`
	Summary     string      `xml:"summary"`
	PubDate     string      `xml:"pubDate"`
	Updated     string      `xml:"updated"`
	Published   string      `xml:"published"`
	Links       []entryLink `xml:"link"`
	Enclosures  []entryLink `xml:"enclosure"`
}

type entryLink struct {
	Href    string `xml:"href,attr"`
	Rel     string `xml:"rel,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

func parseFeed(raw []byte) ([]feedEntry, error) {
	var doc feedDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if len(doc.Channel.Items) > 0 {
		return doc.Channel.Items, nil
	}
	return doc.Entries, nil
}

func (e feedEntry) abstract() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Summary
}

var feedDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2006-01-02T15:04:05Z",
}

func (e feedEntry) publishedAt() (time.Time, bool) {
	for _, raw := range []string{e.PubDate, e.Published, e.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		for _, layout := range feedDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// pageLink prefers an alternate/plain link over enclosures.
func (e feedEntry) pageLink() string {
	for _, l := range e.Links {
		if l.Rel == "" || l.Rel == "alternate" {
			if href := linkHref(l); href != "" {
				return href
			}
		}
	}
	for _, l := range e.Links {
		if href := linkHref(l); href != "" {
			return href
		}
	}
	return ""
}

func (e feedEntry) pdfLink() string {
	for _, l := range append(e.Enclosures, e.Links...) {
		href := linkHref(l)
		if strings.HasSuffix(l.Type, "pdf") || strings.HasSuffix(href, ".pdf") {
			return href
		}
	}
	return ""
}

func linkHref(l entryLink) string {
	if l.Href != "" {
		return l.Href
	}
	return strings.TrimSpace(l.Content)
}

// entryID derives a stable identifier from whatever the entry carries.
func entryID(e feedEntry) string {
	raw := e.GUID
	if raw == "" {
		raw = e.AtomID
	}
	if raw == "" {
		raw = e.pageLink()
	}
	if raw == "" {
		raw = e.Title
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:16]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
