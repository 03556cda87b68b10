// Package ledger tracks every performance date ever observed per title.
//
// The ledger is the monitor's memory between runs: alert decisions compare
// freshly scraped dates against it, and merges only ever grow it. History
// shrinks only through the explicit clear operation.
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/Mantene/tdf-alerts/internal/storage"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

type Ledger struct {
	log   logx.Logger
	store storage.Store

	mu      sync.Mutex
	entries map[string][]string // sorted, de-duplicated date sets
}

// Load reads the ledger from its store. An absent backing store yields an
// empty ledger; an unreadable or corrupt one is logged and also yields an
// empty ledger. Load never fails: the monitor re-discovers availability on
// later runs, so sacrificing history beats refusing to start.
//
// A nil st produces a memory-only ledger whose merges are never persisted.
func Load(ctx context.Context, st storage.Store, log logx.Logger) *Ledger {
	if log.IsZero() {
		log = logx.Nop()
	}

	entries := map[string][]string{}
	if st != nil {
		loaded, err := st.Load(ctx)
		if err != nil {
			log.Warn("ledger unreadable; starting with empty history", logx.Err(err))
		} else if loaded != nil {
			entries = loaded
		}
	}
	// Normalize whatever was on disk.
	for title, dates := range entries {
		entries[title] = sortedSet(dates)
	}

	log.Debug("ledger loaded", logx.Int("titles", len(entries)))
	return &Ledger{log: log, store: st, entries: entries}
}

// HasNewDates reports whether observed contains any date not yet in the
// ledger for title. A title the ledger has never seen counts as having an
// empty known set, so zero observed dates never count as new.
func (l *Ledger) HasNewDates(title string, observed []string) bool {
	return len(l.NewDates(title, observed)) > 0
}

// NewDates returns the observed dates absent from the ledger for title,
// lexicographically sorted and de-duplicated. For an unknown title that is
// every observed date.
func (l *Ledger) NewDates(title string, observed []string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	known := map[string]struct{}{}
	for _, d := range l.entries[title] {
		known[d] = struct{}{}
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(observed))
	for _, d := range observed {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		if _, ok := known[d]; !ok {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

// Merge folds observed into the title's known set and persists the whole
// ledger synchronously. Merging the same observation again is a no-op for
// the stored state. A persistence failure is logged and absorbed: the
// in-memory set stays updated and the next successful save reconverges.
func (l *Ledger) Merge(ctx context.Context, title string, observed []string) {
	l.mu.Lock()
	l.entries[title] = sortedSet(append(l.entries[title], observed...))
	snapshot := copyEntries(l.entries)
	l.mu.Unlock()

	if l.store == nil {
		return
	}
	if err := l.store.Save(ctx, snapshot); err != nil {
		l.log.Warn("ledger save failed; in-memory state kept",
			logx.String("title", title), logx.Err(err))
		return
	}
	l.log.Debug("ledger updated", logx.String("title", title), logx.Int("dates", len(snapshot[title])))
}

// Known returns a copy of the stored date set for title.
func (l *Ledger) Known(title string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries[title]...)
}

// Titles returns all tracked titles, sorted.
func (l *Ledger) Titles() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.entries))
	for t := range l.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the full ledger.
func (l *Ledger) Snapshot() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyEntries(l.entries)
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func sortedSet(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func copyEntries(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
