package monitor

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/Mantene/tdf-alerts/internal/config"
)

// DefaultLockPath places the single-instance lock next to the ledger, so
// every process touching the same history contends on the same file.
func DefaultLockPath(cfg *config.Config) string {
	return filepath.Join(filepath.Dir(cfg.Ledger.Path), "tdfmon.lock")
}

// AcquireLock takes the non-blocking cross-process lock at path. One-shot
// runs, ledger pruning and the daemon all take it, so a cron-invoked pass
// can never overlap a running daemon.
//
// The caller owns the returned lock and must Unlock it.
func AcquireLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("another tdfmon instance is already running (lock %s)", path)
	}
	return lock, nil
}
