package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/ledger"
	"github.com/Mantene/tdf-alerts/internal/monitor"
	"github.com/Mantene/tdf-alerts/internal/storage"
)

func newLedgerCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or prune remembered performance dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newLedgerShowCommand(ctx))
	cmd.AddCommand(newLedgerClearCommand(ctx))
	return cmd
}

func openLedgerStore(ctx *commandContext) (storage.Store, error) {
	busy, err := config.ParseDurationField("ledger.busy_timeout", ctx.cfg.Ledger.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      ctx.cfg.Ledger.Driver,
		Path:        ctx.cfg.Ledger.Path,
		BusyTimeout: busy,
	}, ctx.log)
}

func newLedgerShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List every title and date the monitor has seen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.setup(); err != nil {
				return err
			}
			defer ctx.close()

			store, err := openLedgerStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			led := ledger.Load(cmd.Context(), store, ctx.log)
			titles := led.Titles()
			if len(titles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger is empty")
				return nil
			}

			rows := make([][]string, 0, len(titles))
			for _, title := range titles {
				dates := led.Known(title)
				rows = append(rows, []string{title, strings.Join(dates, ", "), strconv.Itoa(len(dates))})
			}
			table := renderTable(
				[]string{"Title", "Dates", "Count"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newLedgerClearCommand(ctx *commandContext) *cobra.Command {
	var clearAll bool

	cmd := &cobra.Command{
		Use:   "clear [title]",
		Short: "Forget remembered dates for one title or the whole history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !clearAll && len(args) == 0 {
				return errors.New("specify a title to clear, or --all for the whole history")
			}
			if clearAll && len(args) > 0 {
				return errors.New("--all does not take a title")
			}
			if err := ctx.setup(); err != nil {
				return err
			}
			defer ctx.close()

			// A running daemon would rewrite the cleared state on its next
			// save, so clearing contends on the same single-instance lock.
			lock, err := monitor.AcquireLock(monitor.DefaultLockPath(ctx.cfg))
			if err != nil {
				return err
			}
			defer func() { _ = lock.Unlock() }()

			store, err := openLedgerStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if clearAll {
				entries, err := store.Load(cmd.Context())
				if err != nil {
					// Unreadable history is cleared all the same.
					entries = nil
				}
				if err := store.Save(cmd.Context(), map[string][]string{}); err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d titles\n", len(entries))
				return nil
			}

			entries, err := store.Load(cmd.Context())
			if err != nil {
				return err
			}
			title := args[0]
			dates, ok := entries[title]
			if !ok {
				fmt.Fprintf(out, "No ledger entry for %q\n", title)
				return nil
			}
			delete(entries, title)
			if err := store.Save(cmd.Context(), entries); err != nil {
				return err
			}
			fmt.Fprintf(out, "Cleared %q (%d dates)\n", title, len(dates))
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAll, "all", false, "Clear every title")
	return cmd
}
