package main

import (
	"fmt"
	"sync"

	"github.com/Mantene/tdf-alerts/internal/config"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// commandContext lazily loads configuration and logging for subcommands.
// Setup runs at most once per invocation and only for commands that need
// it, so `tdfmon --help` works without a config file.
type commandContext struct {
	configFlag *string

	once    sync.Once
	manager *config.Manager
	cfg     *config.Config
	logs    *logx.Service
	log     logx.Logger
	err     error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// setup parses and finalizes the config file and brings up the logging
// service. Any error here is a configuration error: the command reports it
// and exits non-zero before any network or ledger activity.
func (c *commandContext) setup() error {
	c.once.Do(func() {
		path := "./config.yaml"
		if c.configFlag != nil && *c.configFlag != "" {
			path = *c.configFlag
		}

		m := config.NewManager(path)
		cfg, err := m.Load()
		if err != nil {
			c.err = fmt.Errorf("load config %s: %w", path, err)
			return
		}
		if err := config.Finalize(cfg); err != nil {
			c.err = fmt.Errorf("config %s: %w", path, err)
			return
		}
		// Re-commit so the manager's change detection hashes the finalized
		// form, the same shape the watch validator commits on reload.
		m.Commit(cfg)

		logs, log := logx.New(logx.Config{
			Level:   cfg.Logging.Level,
			Console: cfg.Logging.Console,
			File: logx.FileConfig{
				Enabled: cfg.Logging.File.Enabled,
				Path:    cfg.Logging.File.Path,
			},
		})
		m.SetLogger(log.With(logx.String("comp", "config")))

		c.manager = m
		c.cfg = cfg
		c.logs = logs
		c.log = log
	})
	return c.err
}

func (c *commandContext) close() {
	if c.logs != nil {
		_ = c.logs.Close()
	}
}
