package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mantene/tdf-alerts/internal/monitor"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single monitoring pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.setup(); err != nil {
				return err
			}
			defer ctx.close()

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// One-shot runs contend on the same lock as the daemon, so an
			// external scheduler cannot start a pass over a running watch.
			lock, err := monitor.AcquireLock(monitor.DefaultLockPath(ctx.cfg))
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			return monitor.NewRunner(ctx.cfg, ctx.log).Run(sigCtx)
		},
	}
}
