package monitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

const daemonYAML = `tdf_credentials:
  email: me@example.com
  password: hunter2
titles:
  - Hamilton
notifications:
  method: console
`

func newTestDaemon(t *testing.T, lockPath string) *Daemon {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(daemonYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	m := config.NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if err := config.Finalize(cfg); err != nil {
		t.Fatalf("finalize config: %v", err)
	}

	d, err := NewDaemon(DaemonOptions{Manager: m, Log: logx.Nop(), LockPath: lockPath})
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	return d
}

func TestDefaultLockPathSitsBesideLedger(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, "")
	// Default ledger path is state.json in the working directory.
	if got, want := d.lockPath, "tdfmon.lock"; got != want {
		t.Errorf("lockPath = %q, want %q", got, want)
	}
}

func TestLockIsExclusive(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "tdfmon.lock")
	d1 := newTestDaemon(t, lockPath)
	d2 := newTestDaemon(t, lockPath)

	if err := d1.acquireLock(); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err := d2.acquireLock()
	if err == nil {
		t.Fatal("second acquire should fail while lock is held")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Errorf("unexpected error: %v", err)
	}

	if err := d1.lock.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := d2.acquireLock(); err != nil {
		t.Errorf("acquire after release: %v", err)
	}
	_ = d2.lock.Unlock()
}

func TestScheduleSpecs(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, filepath.Join(t.TempDir(), "l"))
	tests := []struct {
		spec string
		ok   bool
	}{
		{"@every 30m", true},
		{"@hourly", true},
		{"*/5 * * * *", true},
		{"30 6 * * *", true},
		{"0 12 * * MON", true},
		{"15 */2 * * * *", true}, // optional seconds field
		{"61 * * * *", false},
		{"banana", false},
		{"", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.spec, func(t *testing.T) {
			t.Parallel()
			_, err := d.parser.Parse(tt.spec)
			if (err == nil) != tt.ok {
				t.Errorf("Parse(%q) err = %v, want ok=%v", tt.spec, err, tt.ok)
			}
		})
	}
}

func TestStartCronRejectsBadSpec(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, filepath.Join(t.TempDir(), "l"))
	cfg := *d.current()
	cfg.Schedule.Spec = "banana"
	if err := d.startCron(&cfg); err == nil {
		d.stopCron()
		t.Fatal("expected error for invalid spec")
	}
}

func TestApplyUpdatesSchedule(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, filepath.Join(t.TempDir(), "l"))
	if err := d.startCron(d.current()); err != nil {
		t.Fatalf("startCron: %v", err)
	}
	defer d.stopCron()

	next := *d.current()
	next.Schedule.Spec = "@every 5m"
	d.apply(&next)
	if d.spec != "@every 5m" {
		t.Errorf("spec after apply = %q, want @every 5m", d.spec)
	}
	if d.current().Schedule.Spec != "@every 5m" {
		t.Error("current config not swapped")
	}

	// A broken spec is rejected; the previous schedule keeps running.
	bad := next
	bad.Schedule.Spec = "banana"
	d.apply(&bad)
	if d.spec != "@every 5m" {
		t.Errorf("spec after bad apply = %q, want @every 5m", d.spec)
	}
	if d.current() == nil || d.current().Schedule.Spec != "banana" {
		t.Error("non-schedule settings should still be swapped")
	}
}

func TestRequestPassCoalesces(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, filepath.Join(t.TempDir(), "l"))
	d.requestPass("a")
	d.requestPass("b")
	d.requestPass("c")
	if got := len(d.kick); got != 1 {
		t.Errorf("pending passes = %d, want 1", got)
	}
}

func TestDaemonRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	d := newTestDaemon(t, filepath.Join(t.TempDir(), "tdfmon.lock"))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
