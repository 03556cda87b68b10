package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Mantene/tdf-alerts/internal/monitor"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run scheduled monitoring passes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.setup(); err != nil {
				return err
			}
			defer ctx.close()

			sigCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			d, err := monitor.NewDaemon(monitor.DaemonOptions{
				Manager: ctx.manager,
				Logs:    ctx.logs,
				Log:     ctx.log,
			})
			if err != nil {
				return err
			}
			return d.Run(sigCtx)
		},
	}
}
