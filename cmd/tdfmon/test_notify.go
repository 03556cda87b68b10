package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mantene/tdf-alerts/internal/notify"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification through the configured channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.setup(); err != nil {
				return err
			}
			defer ctx.close()

			ch, err := notify.New(ctx.cfg.Notifications, ctx.log)
			if err != nil {
				return err
			}
			if err := ch.Send(cmd.Context(), "Test notification from tdfmon."); err != nil {
				return fmt.Errorf("send via %s: %w", ch.Name(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Test notification sent via %s\n", ch.Name())
			return nil
		},
	}
}
