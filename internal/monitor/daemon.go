package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/runtime/supervisor"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// DaemonOptions wire the watch-mode daemon.
type DaemonOptions struct {
	// Manager must have a loaded config. The daemon installs a Finalize
	// validator so hot-reloaded configs are always normalized and valid
	// before they are published.
	Manager *config.Manager

	// Logs, when set, is reconfigured on config reload.
	Logs *logx.Service

	Log logx.Logger

	// LockPath overrides the single-instance lock location. Default is
	// tdfmon.lock next to the ledger.
	LockPath string
}

// Daemon runs monitor passes on a cron schedule until its context is
// cancelled. Passes never overlap: schedule ticks while a pass is
// running collapse into at most one pending pass.
type Daemon struct {
	manager *config.Manager
	logs    *logx.Service
	base    logx.Logger
	log     logx.Logger

	lockPath string
	lock     *flock.Flock

	parser cron.Parser

	mu   sync.Mutex
	cfg  *config.Config
	cron *cron.Cron
	spec string
	tz   string

	kick chan struct{}
}

func NewDaemon(opts DaemonOptions) (*Daemon, error) {
	if opts.Manager == nil {
		return nil, errors.New("daemon requires a config manager")
	}
	cfg := opts.Manager.Get()
	if cfg == nil {
		return nil, errors.New("daemon requires a loaded config")
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}

	lockPath := strings.TrimSpace(opts.LockPath)
	if lockPath == "" {
		lockPath = DefaultLockPath(cfg)
	}

	opts.Manager.SetValidator(func(_ context.Context, cfg *config.Config) error {
		return config.Finalize(cfg)
	})

	return &Daemon{
		manager:  opts.Manager,
		logs:     opts.Logs,
		base:     log,
		log:      log.With(logx.String("comp", "daemon")),
		lockPath: lockPath,
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:    cfg,
		kick:   make(chan struct{}, 1),
	}, nil
}

// Run blocks until ctx is cancelled. It returns an error only for
// startup failures (lock held elsewhere, invalid schedule spec).
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquireLock(); err != nil {
		return err
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.log.Warn("failed to release daemon lock", logx.Err(err))
		}
	}()

	cfg := d.current()
	if err := d.startCron(cfg); err != nil {
		return err
	}
	defer d.stopCron()

	sup := supervisor.New(ctx, supervisor.WithLogger(d.log))
	sup.Go("config.watch", d.manager.Watch)

	sub := d.manager.Subscribe(1)
	defer d.manager.Unsubscribe(sub)
	sup.Go0("config.apply", func(c context.Context) { d.applyLoop(c, sub) })

	sup.Go0("cycles", d.cycleLoop)
	d.startWatchdog(sup)

	if notified, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		d.log.Debug("sd_notify failed", logx.Err(err))
	} else if notified {
		d.log.Debug("systemd notified: ready")
	}

	d.log.Info("daemon started",
		logx.String("schedule", d.spec),
		logx.String("lock", d.lockPath),
		logx.Bool("run_on_start", cfg.Schedule.RunOnStart))

	if cfg.Schedule.RunOnStart {
		d.requestPass("startup")
	}

	<-ctx.Done()

	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	d.log.Info("shutting down")

	wctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sup.Stop(wctx); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warn("shutdown incomplete", logx.Err(err))
	}
	d.log.Info("daemon stopped")
	return nil
}

func (d *Daemon) acquireLock() error {
	lock, err := AcquireLock(d.lockPath)
	if err != nil {
		return err
	}
	d.lock = lock
	return nil
}

func (d *Daemon) current() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// requestPass schedules one pass. A pass already pending absorbs the
// request, so a slow pass cannot pile up a backlog of ticks.
func (d *Daemon) requestPass(reason string) {
	select {
	case d.kick <- struct{}{}:
	default:
		d.log.Warn("pass already pending; skipping", logx.String("reason", reason))
	}
}

func (d *Daemon) cycleLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.kick:
			d.runPass(ctx)
		}
	}
}

func (d *Daemon) runPass(ctx context.Context) {
	r := NewRunner(d.current(), d.base)
	if err := r.Run(ctx); err != nil {
		d.log.Error("monitor pass failed", logx.Err(err))
	}
}

func (d *Daemon) applyLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			if cfg == nil {
				continue
			}
			d.apply(cfg)
		}
	}
}

// apply installs a hot-reloaded config. The next pass picks up titles,
// credentials and channel settings automatically; logging and the cron
// schedule are re-applied here.
func (d *Daemon) apply(cfg *config.Config) {
	if d.logs != nil {
		d.logs.Apply(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
		})
	}

	d.mu.Lock()
	prevSpec, prevTZ := d.spec, d.tz
	d.cfg = cfg
	d.mu.Unlock()

	newTZ := strings.TrimSpace(cfg.Schedule.Timezone)
	if cfg.Schedule.Spec != prevSpec || newTZ != prevTZ {
		if err := d.restartCron(cfg); err != nil {
			d.log.Warn("schedule rejected; keeping previous",
				logx.String("spec", cfg.Schedule.Spec), logx.Err(err))
		} else {
			d.log.Info("schedule updated",
				logx.String("spec", cfg.Schedule.Spec), logx.String("tz", newTZ))
		}
	}

	d.log.Info("configuration reloaded",
		logx.Int("titles", len(cfg.Titles)),
		logx.String("method", cfg.Notifications.Method))
}

func (d *Daemon) startCron(cfg *config.Config) error {
	loc := d.location(cfg.Schedule.Timezone)
	c := cron.New(cron.WithParser(d.parser), cron.WithLocation(loc))
	if _, err := c.AddFunc(cfg.Schedule.Spec, func() { d.requestPass("schedule") }); err != nil {
		return fmt.Errorf("schedule.spec: invalid spec %q: %w", cfg.Schedule.Spec, err)
	}
	c.Start()
	if entries := c.Entries(); len(entries) > 0 {
		d.log.Debug("schedule armed",
			logx.String("spec", cfg.Schedule.Spec),
			logx.Time("next", entries[0].Next))
	}

	d.mu.Lock()
	d.cron = c
	d.spec = cfg.Schedule.Spec
	d.tz = strings.TrimSpace(cfg.Schedule.Timezone)
	d.mu.Unlock()
	return nil
}

func (d *Daemon) restartCron(cfg *config.Config) error {
	// Probe the new spec before tearing down the old schedule.
	if _, err := d.parser.Parse(cfg.Schedule.Spec); err != nil {
		return fmt.Errorf("invalid spec %q: %w", cfg.Schedule.Spec, err)
	}
	d.stopCron()
	return d.startCron(cfg)
}

func (d *Daemon) stopCron() {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-time.After(5 * time.Second):
	}
}

func (d *Daemon) location(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		d.log.Warn("invalid timezone; falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (d *Daemon) startWatchdog(sup *supervisor.Supervisor) {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	tick := interval / 2
	sup.Go0("watchdog", func(ctx context.Context) {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	})
	d.log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
}
