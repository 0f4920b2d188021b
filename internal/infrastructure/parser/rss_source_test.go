package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seeker214/SystemPaperDaily/internal/scanner"
)

func TestRSSScannerScanRSS(t *testing.T) {
	t.Parallel()

	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>USENIX Papers</title>
    <item>
      <guid>https://example.org/papers/42</guid>
      <title>Log-Structured Everything</title>
      <link>https://example.org/papers/42</link>
      <description>A fresh take on log-structured storage.</description>
      <pubDate>Sat, 29 Aug 2026 10:00:00 +0000</pubDate>
      <enclosure url="" type="application/pdf">https://example.org/papers/42.pdf</enclosure>
    </item>
    <item>
      <guid>https://example.org/papers/41</guid>
      <title>Stale Entry</title>
      <link>https://example.org/papers/41</link>
      <description>Too old for the window.</description>
      <pubDate>Mon, 10 Aug 2026 10:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client())
	sc.now = func() time.Time {
		return time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	}

	req := scanner.Request{
		SiteName:    "usenix",
		RecentHours: 48,
		Categories:  []scanner.Category{{Name: "papers", URL: server.URL}},
	}

	papers, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(papers))
	}
	got := papers[0]
	if got.Title != "Log-Structured Everything" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if !strings.HasPrefix(got.ID, "rss-") {
		t.Fatalf("expected rss id prefix, got %s", got.ID)
	}
	if got.HTMLURL != "https://example.org/papers/42" {
		t.Fatalf("unexpected page link: %s", got.HTMLURL)
	}
	if got.PDFURL != "https://example.org/papers/42.pdf" {
		t.Fatalf("unexpected pdf link: %s", got.PDFURL)
	}
}

func TestRSSScannerScanAtom(t *testing.T) {
	t.Parallel()

	feed := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Lab Feed</title>
  <entry>
    <id>urn:uuid:abc-123</id>
    <title>Consensus Without Clocks</title>
    <link rel="alternate" href="https://lab.example.org/posts/consensus"/>
    <link rel="enclosure" type="application/pdf" href="https://lab.example.org/posts/consensus.pdf"/>
    <summary>Clock-free agreement.</summary>
    <updated>2026-08-29T09:00:00Z</updated>
  </entry>
</feed>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(feed))
	}))
	defer server.Close()

	sc := NewRSSScanner(server.Client())
	sc.now = func() time.Time {
		return time.Date(2026, time.August, 30, 12, 0, 0, 0, time.UTC)
	}

	req := scanner.Request{
		SiteName:    "lab",
		RecentHours: 48,
		Categories:  []scanner.Category{{Name: "posts", URL: server.URL}},
	}

	papers, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(papers) != 1 {
		t.Fatalf("expected 1 paper, got %d", len(papers))
	}
	got := papers[0]
	if got.Title != "Consensus Without Clocks" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.Abstract != "Clock-free agreement." {
		t.Fatalf("unexpected abstract: %s", got.Abstract)
	}
	if got.HTMLURL != "https://lab.example.org/posts/consensus" {
		t.Fatalf("unexpected page link: %s", got.HTMLURL)
	}
	if got.PDFURL != "https://lab.example.org/posts/consensus.pdf" {
		t.Fatalf("unexpected pdf link: %s", got.PDFURL)
	}
}

func TestEntryIDStable(t *testing.T) {
	t.Parallel()

	a := feedEntry{GUID: "https://example.org/p/1"}
	b := feedEntry{GUID: "https://example.org/p/1"}
	c := feedEntry{GUID: "https://example.org/p/2"}

	if entryID(a) != entryID(b) {
		t.Fatal("same guid must map to same id")
	}
	if entryID(a) == entryID(c) {
		t.Fatal("different guids must map to different ids")
	}
	if len(entryID(a)) != 16 {
		t.Fatalf("unexpected id length: %d", len(entryID(a)))
	}
}
