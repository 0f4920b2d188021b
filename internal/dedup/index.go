// Package dedup derives the set of already-archived paper identifiers from
// the external record store. The index lives for a single run: it is built
// lazily on the first query, advanced on every confirmed append, and thrown
// away when the run ends. The store itself is the only durable state.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Seeker214/SystemPaperDaily/internal/ports"
)

// markerKey is the stable textual marker each archived section carries.
// Dedup state is reconstructed by scanning issue bodies for it, so the
// rendering in the archive package and this scanner must agree.
const markerKey = "**Paper ID**"

// Index is the per-run dedup cache. Not safe for concurrent use; the
// pipeline processes items strictly sequentially.
type Index struct {
	store  ports.RecordStore
	label  string
	logger *slog.Logger
	ids    map[string]struct{} // nil until the first query triggers a scan
}

// New builds an empty, unloaded index.
func New(store ports.RecordStore, label string, logger *slog.Logger) *Index {
	return &Index{store: store, label: label, logger: logger}
}

// IsProcessed reports whether the identifier already appears in any archived
// document. The first call scans the store; the result is memoized for the
// rest of the run, so the scan reflects store state at that moment only.
func (i *Index) IsProcessed(ctx context.Context, id string) (bool, error) {
	if i.ids == nil {
		if err := i.load(ctx); err != nil {
			return false, err
		}
	}
	_, ok := i.ids[id]
	return ok, nil
}

// MarkProcessed records an identifier. Call only after a confirmed
// successful archival write.
func (i *Index) MarkProcessed(id string) {
	if i.ids == nil {
		i.ids = map[string]struct{}{}
	}
	i.ids[id] = struct{}{}
}

// Size returns the number of known identifiers; zero before the first scan.
func (i *Index) Size() int {
	return len(i.ids)
}

func (i *Index) load(ctx context.Context) error {
	if err := i.store.EnsureLabel(ctx, i.label); err != nil {
		return fmt.Errorf("ensure label %s: %w", i.label, err)
	}

	records, err := i.store.ListByLabel(ctx, i.label)
	if err != nil {
		return fmt.Errorf("scan labeled records: %w", err)
	}

	ids := map[string]struct{}{}
	for _, rec := range records {
		for _, id := range extractIDs(rec.Body) {
			ids[id] = struct{}{}
		}
	}
	i.ids = ids

	if i.logger != nil {
		i.logger.Info("dedup index loaded", "records", len(records), "ids", len(ids))
	}
	return nil
}

// extractIDs pulls every backtick-delimited value from marker lines like
//
//	- **Paper ID**: `2301.12345`
func extractIDs(body string) []string {
	var ids []string
	for _, line := range strings.Split(body, "\n") {
		if !strings.Contains(line, markerKey) {
			continue
		}
		start := strings.Index(line, "`")
		if start < 0 {
			continue
		}
		rest := line[start+1:]
		end := strings.Index(rest, "`")
		if end < 0 {
			continue
		}
		if id := rest[:end]; id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
