package storage

import (
	"context"
	"errors"
	"strings"

	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// Store is the durable home of the availability ledger.
//
// The data model is deliberately small: one map of title -> dates, read
// whole at load and rewritten whole on save. Drivers must tolerate an
// absent backing store by returning an empty map.
type Store interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, entries map[string][]string) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown ledger driver: " + driver)
	}
}
