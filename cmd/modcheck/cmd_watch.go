package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/event"
	"github.com/sydlexius/modcheck/internal/watcher"
)

func newWatchCmd(a *app) *cobra.Command {
	var (
		flags    scanFlags
		debounce time.Duration
		poll     bool
	)
	cmd := &cobra.Command{
		Use:   "watch [DIR]",
		Short: "Rescan the mods directory whenever it changes",
		Long: `Scan DIR once, then rescan each time a mod archive is added, removed,
renamed or rewritten, until interrupted. Network shares that do not report
changes are polled instead.

The options in effect are saved when watch stops.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := flags.plan(cmd, a, args)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context(), 0)
			defer cancel()

			bus := progressBus(a.logger)
			defer bus.Stop()
			bus.Subscribe(event.ModsChanged, func(e event.Event) {
				a.logger.Info("mods changed", slog.Any("name", e.Data["name"]), slog.Any("op", e.Data["op"]))
			})

			svc := flags.scanService(ctx, a, p)
			svc.SetEventBus(bus)
			scan := func(ctx context.Context) error {
				scanCtx, done := ctx, context.CancelFunc(func() {})
				if limit := flags.scanTimeoutOr(a); limit > 0 {
					scanCtx, done = context.WithTimeout(ctx, limit)
				}
				defer done()
				return a.runScan(scanCtx, svc, p, flags.jsonOut)
			}
			if err := scan(ctx); err != nil {
				return err
			}

			w := watcher.NewService(p.dir, scan, bus, a.logger)
			w.SetDebounce(debounce)
			w.ForcePolling(poll)
			fmt.Fprintln(a.stderr, p.renderer.Translator().T("scan.watching", "dir", p.dir)) //nolint:errcheck
			err = w.Start(ctx)

			if saveErr := a.store.Save(p.next); saveErr != nil {
				a.logger.Warn("saving settings", slog.String("error", saveErr.Error()))
			}
			return err
		},
	}
	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", watcher.DefaultDebounce, "quiet period after a change before rescanning")
	cmd.Flags().BoolVar(&poll, "poll", false, "poll the directory instead of using file system notifications")
	return cmd
}
