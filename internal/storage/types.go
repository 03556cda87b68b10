package storage

import (
	"errors"
	"time"
)

// ErrCorrupt marks a backing file or database whose contents could not be
// decoded. Callers treat it as "history lost", not as a fatal condition.
var ErrCorrupt = errors.New("ledger store corrupt")

// Config configures ledger persistence.
//
// Driver values:
//   - "file": single JSON document, rewritten via temp file + rename
//   - "sqlite": SQLite database file
//
// An empty Driver selects "file".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
