package archive

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seeker214/SystemPaperDaily/internal/domain"
	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

type fakeStore struct {
	existing  map[string]ports.IssueRecord // by title
	createErr error
	editErr   error

	createCalls int
	findCalls   int
	nextNumber  int
	bodies      map[int]string // last written body by number
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		existing:   map[string]ports.IssueRecord{},
		nextNumber: 100,
		bodies:     map[int]string{},
	}
}

func (f *fakeStore) EnsureLabel(ctx context.Context, name string) error { return nil }

func (f *fakeStore) ListByLabel(ctx context.Context, label string) ([]ports.IssueRecord, error) {
	return nil, nil
}

func (f *fakeStore) FindByTitle(ctx context.Context, title string) (ports.IssueRecord, bool, error) {
	f.findCalls++
	rec, ok := f.existing[title]
	return rec, ok, nil
}

func (f *fakeStore) Create(ctx context.Context, title, body, label string) (ports.IssueRecord, error) {
	f.createCalls++
	if f.createErr != nil {
		return ports.IssueRecord{}, f.createErr
	}
	f.nextNumber++
	rec := ports.IssueRecord{Number: f.nextNumber, Title: title, Body: body}
	f.existing[title] = rec
	f.bodies[rec.Number] = body
	return rec, nil
}

func (f *fakeStore) EditBody(ctx context.Context, number int, body string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.bodies[number] = body
	return nil
}

func fixedDay() time.Time {
	return time.Date(2026, time.August, 30, 9, 0, 0, 0, time.UTC)
}

func samplePaper(id string) domain.Paper {
	return domain.Paper{
		ID:         id,
		Title:      "Paper " + id,
		Authors:    []string{"Alice", "Bob"},
		Abstract:   "An abstract.",
		PDFURL:     "https://arxiv.org/pdf/" + id,
		HTMLURL:    "https://arxiv.org/abs/" + id,
		Published:  "2026-08-29T00:00:00Z",
		Categories: []string{"cs.OS"},
		Source:     "arxiv",
	}
}

func TestDailyTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[Daily] 2026-08-30 SystemPaperDaily", DailyTitle(fixedDay()))
}

func TestGetOrCreateReusesExisting(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	title := DailyTitle(fixedDay())
	store.existing[title] = ports.IssueRecord{Number: 7, Title: title, Body: "# old\n\n---\n\n"}

	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)

	rec, err := m.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, rec.Number)
	assert.Zero(t, store.createCalls)

	// Memoized: no second lookup.
	_, err = m.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.findCalls)
}

func TestGetOrCreateSingleCreateAttempt(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("store rejected create")

	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx)
	require.Error(t, err)

	_, err = m.GetOrCreate(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, store.createCalls, "create failure must be sticky for the run")
}

func TestAppendGrowsBody(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)
	ctx := context.Background()

	number, err := m.Append(ctx, samplePaper("2501.00001"), "A summary.", 1)
	require.NoError(t, err)
	require.NotZero(t, number)

	body := store.bodies[number]
	assert.Contains(t, body, "## 1. Paper 2501.00001")
	assert.Contains(t, body, "- **Paper ID**: `2501.00001`")
	assert.Contains(t, body, "### Summary\n\nA summary.")
	assert.Contains(t, body, "<details><summary>Original abstract</summary>")

	_, err = m.Append(ctx, samplePaper("2501.00002"), "Another.", 2)
	require.NoError(t, err)

	body = store.bodies[number]
	assert.Contains(t, body, "- **Paper ID**: `2501.00001`")
	assert.Contains(t, body, "- **Paper ID**: `2501.00002`")
	first := strings.Index(body, "## 1.")
	second := strings.Index(body, "## 2.")
	assert.Less(t, first, second, "sections must keep append order")
}

func TestAppendTruncatesAtBodyLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	limit := 1200
	m := NewManager(store, "daily-paper", limit, fixedDay, nil)
	ctx := context.Background()

	paper := samplePaper("2501.00001")
	paper.Abstract = strings.Repeat("x", 2000)

	number, err := m.Append(ctx, paper, "A summary.", 1)
	require.NoError(t, err)

	body := store.bodies[number]
	assert.Equal(t, limit+len(truncationSentinel), len(body))
	assert.True(t, strings.HasSuffix(body, truncationSentinel))
}

func TestAppendFailureLeavesBodyUntouched(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)
	ctx := context.Background()

	number, err := m.Append(ctx, samplePaper("2501.00001"), "First.", 1)
	require.NoError(t, err)
	before := store.bodies[number]

	store.editErr = errors.New("write rejected")
	_, err = m.Append(ctx, samplePaper("2501.00002"), "Second.", 2)
	require.Error(t, err)

	assert.Equal(t, before, store.bodies[number])
	// Later appends must not carry the unwritten section.
	store.editErr = nil
	_, err = m.Append(ctx, samplePaper("2501.00003"), "Third.", 2)
	require.NoError(t, err)
	assert.NotContains(t, store.bodies[number], "2501.00002")
}

func TestUpdateHeaderIsolatesSections(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)
	ctx := context.Background()

	number, err := m.Append(ctx, samplePaper("2501.00001"), "A summary.", 1)
	require.NoError(t, err)

	body := store.bodies[number]
	idx := strings.Index(body, boundaryMarker)
	require.GreaterOrEqual(t, idx, 0)
	suffix := body[idx+len(boundaryMarker):]

	err = m.UpdateHeader(ctx, domain.RunStats{Total: 5, Processed: 1, Skipped: 2})
	require.NoError(t, err)

	updated := store.bodies[number]
	assert.Contains(t, updated, "| Fetched | 5 |")
	assert.Contains(t, updated, "| Processed | 1 |")
	assert.Contains(t, updated, "| Skipped (duplicate) | 2 |")
	assert.True(t, strings.HasSuffix(updated, suffix), "bytes after the boundary must be untouched")

	// Rewriting again must be byte-stable for the section suffix.
	err = m.UpdateHeader(ctx, domain.RunStats{Total: 5, Processed: 1, Skipped: 2})
	require.NoError(t, err)
	assert.Equal(t, updated, store.bodies[number])
}

func TestUpdateHeaderMissingMarker(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	title := DailyTitle(fixedDay())
	store.existing[title] = ports.IssueRecord{Number: 9, Title: title, Body: "hand-edited content without a marker"}

	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)
	ctx := context.Background()

	_, err := m.GetOrCreate(ctx)
	require.NoError(t, err)

	err = m.UpdateHeader(ctx, domain.RunStats{Total: 1})
	require.NoError(t, err)

	updated := store.bodies[9]
	assert.True(t, strings.HasSuffix(updated, "hand-edited content without a marker"))
	assert.Contains(t, updated, "| Fetched | 1 |")
}

func TestUpdateHeaderNoDocumentIsNoop(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	m := NewManager(store, "daily-paper", 65000, fixedDay, nil)

	err := m.UpdateHeader(context.Background(), domain.RunStats{Total: 3})
	require.NoError(t, err)
	assert.Zero(t, store.createCalls)
	assert.Empty(t, store.bodies)
}
