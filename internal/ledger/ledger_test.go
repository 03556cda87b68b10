package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Mantene/tdf-alerts/internal/storage"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

func fileStore(t *testing.T) (storage.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	st, err := storage.Open(storage.Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestLoadMissingStartsEmpty(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)

	led := Load(context.Background(), st, logx.Nop())
	if led.Len() != 0 {
		t.Errorf("want empty ledger, got %d titles", led.Len())
	}
}

func TestLoadCorruptStartsEmpty(t *testing.T) {
	t.Parallel()
	st, path := fileStore(t)
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	led := Load(context.Background(), st, logx.Nop())
	if led.Len() != 0 {
		t.Errorf("want empty ledger after corruption, got %d titles", led.Len())
	}

	// The ledger must stay usable: a merge rebuilds the store.
	led.Merge(context.Background(), "Hamilton", []string{"12/25/2025"})
	led2 := Load(context.Background(), st, logx.Nop())
	if got := led2.Known("Hamilton"); len(got) != 1 || got[0] != "12/25/2025" {
		t.Errorf("after rebuild, Hamilton = %v", got)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)
	led := Load(context.Background(), st, logx.Nop())
	ctx := context.Background()

	led.Merge(ctx, "Hamilton", []string{"12/26/2025", "12/25/2025"})
	first := led.Snapshot()
	led.Merge(ctx, "Hamilton", []string{"12/25/2025", "12/26/2025"})
	second := led.Snapshot()

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeat merge changed state: %v -> %v", first, second)
	}
	if want := []string{"12/25/2025", "12/26/2025"}; !reflect.DeepEqual(second["Hamilton"], want) {
		t.Errorf("Hamilton = %v, want sorted %v", second["Hamilton"], want)
	}
}

func TestMergeOnlyGrows(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)
	led := Load(context.Background(), st, logx.Nop())
	ctx := context.Background()

	led.Merge(ctx, "Hamilton", []string{"12/25/2025"})
	led.Merge(ctx, "Hamilton", []string{"12/26/2025"})

	// A later observation missing an old date must not remove it.
	led.Merge(ctx, "Hamilton", []string{"12/27/2025"})

	want := []string{"12/25/2025", "12/26/2025", "12/27/2025"}
	if got := led.Known("Hamilton"); !reflect.DeepEqual(got, want) {
		t.Errorf("Known = %v, want %v", got, want)
	}
}

func TestMergePersistsEachCall(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)
	led := Load(context.Background(), st, logx.Nop())
	ctx := context.Background()

	led.Merge(ctx, "Hamilton", []string{"12/25/2025"})
	led.Merge(ctx, "Wicked", []string{"01/01/2026"})

	reloaded := Load(ctx, st, logx.Nop())
	want := map[string][]string{
		"Hamilton": {"12/25/2025"},
		"Wicked":   {"01/01/2026"},
	}
	if got := reloaded.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("persisted = %v, want %v", got, want)
	}
}

func TestNewDates(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)
	led := Load(context.Background(), st, logx.Nop())
	led.Merge(context.Background(), "Hamilton", []string{"12/25/2025"})

	tests := []struct {
		name     string
		title    string
		observed []string
		want     []string
	}{
		{
			name:     "known date filtered out",
			title:    "Hamilton",
			observed: []string{"12/25/2025", "12/26/2025"},
			want:     []string{"12/26/2025"},
		},
		{
			name:     "all known",
			title:    "Hamilton",
			observed: []string{"12/25/2025"},
			want:     []string{},
		},
		{
			name:     "unknown title gets everything",
			title:    "Wicked",
			observed: []string{"12/26/2025", "01/01/2026", "12/26/2025"},
			want:     []string{"01/01/2026", "12/26/2025"},
		},
		{
			name:     "unknown title no dates",
			title:    "Wicked",
			observed: nil,
			want:     []string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := led.NewDates(tt.title, tt.observed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewDates(%q, %v) = %v, want %v", tt.title, tt.observed, got, tt.want)
			}
		})
	}
}

func TestHasNewDates(t *testing.T) {
	t.Parallel()
	st, _ := fileStore(t)
	led := Load(context.Background(), st, logx.Nop())
	led.Merge(context.Background(), "Hamilton", []string{"12/25/2025"})

	tests := []struct {
		name     string
		title    string
		observed []string
		want     bool
	}{
		{name: "novel date", title: "Hamilton", observed: []string{"12/26/2025"}, want: true},
		{name: "already known", title: "Hamilton", observed: []string{"12/25/2025"}, want: false},
		{name: "unknown title with dates", title: "Wicked", observed: []string{"01/01/2026"}, want: true},
		{name: "unknown title without dates", title: "Wicked", observed: nil, want: false},
		{name: "known title without dates", title: "Hamilton", observed: []string{}, want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := led.HasNewDates(tt.title, tt.observed); got != tt.want {
				t.Errorf("HasNewDates(%q, %v) = %v, want %v", tt.title, tt.observed, got, tt.want)
			}
		})
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) (map[string][]string, error) {
	return map[string][]string{}, nil
}
func (failingStore) Save(context.Context, map[string][]string) error {
	return errors.New("disk full")
}
func (failingStore) Close() error { return nil }

func TestMergeSurvivesSaveFailure(t *testing.T) {
	t.Parallel()
	led := Load(context.Background(), failingStore{}, logx.Nop())

	led.Merge(context.Background(), "Hamilton", []string{"12/25/2025"})

	// In-memory state advanced even though persistence failed.
	if got := led.Known("Hamilton"); len(got) != 1 || got[0] != "12/25/2025" {
		t.Errorf("Known = %v, want merged date", got)
	}
	if led.HasNewDates("Hamilton", []string{"12/25/2025"}) {
		t.Error("date should no longer count as new after merge")
	}
}

func TestNilStoreIsMemoryOnly(t *testing.T) {
	t.Parallel()
	led := Load(context.Background(), nil, logx.Nop())

	led.Merge(context.Background(), "Wicked", []string{"01/01/2026"})
	if got := led.Known("Wicked"); len(got) != 1 || got[0] != "01/01/2026" {
		t.Errorf("Known = %v, want merged date", got)
	}
}
