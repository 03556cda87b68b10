package config

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

const (
	debounceWindow  = 250 * time.Millisecond
	watchRetryMin   = 250 * time.Millisecond
	watchRetryMax   = 5 * time.Second
	validateTimeout = 5 * time.Second
)

// Watch follows the config file until ctx ends. Edits are debounced,
// parsed, deduplicated by content fingerprint, run through the validator
// and only then committed and fanned out. A watcher whose channels break
// is rebuilt with jittered backoff; Watch itself never fails.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	base := filepath.Base(m.path)
	retry := newRetryDelay(watchRetryMin, watchRetryMax)

	var pendingMu sync.Mutex
	var pending *time.Timer
	schedule := func() {
		pendingMu.Lock()
		defer pendingMu.Unlock()
		if pending != nil {
			pending.Stop()
		}
		pending = time.AfterFunc(debounceWindow, func() { m.reload(ctx) })
	}

	for ctx.Err() == nil {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("config watch setup failed", logx.Err(err), logx.String("dir", dir))
			}
			if !sleep(ctx, retry.next()) {
				return nil
			}
			continue
		}

		retry.reset()
		if !m.log.IsZero() {
			m.log.Debug("config watcher started", logx.String("file", m.path))
		}

		broken := m.consume(ctx, w, base, schedule)
		_ = w.Close()
		if !broken || ctx.Err() != nil {
			return nil
		}

		wait := retry.next()
		if !m.log.IsZero() {
			m.log.Warn("config watcher stopped; restarting",
				logx.String("file", m.path), logx.Duration("backoff", wait))
		}
		if !sleep(ctx, wait) {
			return nil
		}
	}
	return nil
}

// consume pumps watcher events until the watcher breaks (true) or ctx
// ends (false). Only events for the config file schedule a reload; no op
// filtering, since editors replace files via rename/remove as often as
// they write in place.
func (m *Manager) consume(ctx context.Context, w *fsnotify.Watcher, base string, schedule func()) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-w.Events:
			if !ok {
				return true
			}
			if strings.EqualFold(filepath.Base(ev.Name), base) {
				schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return true
			}
			if err == nil {
				continue
			}
			msg := strings.ToLower(err.Error())
			// An overflow may have swallowed the event we care about.
			if strings.Contains(msg, "overflow") {
				schedule()
				continue
			}
			if !m.log.IsZero() {
				m.log.Warn("config watch error", logx.Err(err), logx.String("file", m.path))
			}
			if strings.Contains(msg, "closed") {
				return true
			}
		}
	}
}

// reload runs one debounced reload attempt end to end. Every early exit
// leaves the previously committed config in place.
func (m *Manager) reload(ctx context.Context) {
	cfg, err := m.Parse()
	if err != nil {
		if !m.log.IsZero() {
			m.log.Warn("config reload parse failed", logx.String("path", m.path), logx.Err(err))
		}
		return
	}

	sum := fingerprint(cfg)
	m.mu.RLock()
	unchanged := sum != 0 && sum == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		if !m.log.IsZero() {
			m.log.Debug("config unchanged; skipping publish", logx.String("path", m.path))
		}
		return
	}

	if m.validator != nil {
		vctx, cancel := context.WithTimeout(ctx, validateTimeout)
		err := m.validator(vctx, cfg)
		cancel()
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("config rejected", logx.String("path", m.path), logx.Err(err))
			}
			return
		}
	}

	m.Commit(cfg)
	m.publish(cfg)
	if !m.log.IsZero() {
		m.log.Debug("config published", logx.String("path", m.path))
	}
}

// retryDelay produces jittered exponential backoff for watcher rebuilds.
type retryDelay struct {
	min, max time.Duration
	cur      time.Duration
	rng      *rand.Rand
}

func newRetryDelay(min, max time.Duration) *retryDelay {
	return &retryDelay{
		min: min,
		max: max,
		cur: min,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *retryDelay) next() time.Duration {
	d := r.cur + time.Duration(r.rng.Int63n(int64(r.cur/2)+1))
	if r.cur < r.max {
		r.cur *= 2
		if r.cur > r.max {
			r.cur = r.max
		}
	}
	return d
}

func (r *retryDelay) reset() { r.cur = r.min }

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
