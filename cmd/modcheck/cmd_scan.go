package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/compat"
	"github.com/sydlexius/modcheck/internal/event"
	"github.com/sydlexius/modcheck/internal/manifest"
	"github.com/sydlexius/modcheck/internal/report"
	"github.com/sydlexius/modcheck/internal/scanner"
	"github.com/sydlexius/modcheck/internal/settings"
)

// scanFlags holds the flags shared by scan, watch and inspect.
type scanFlags struct {
	mc             string
	loader         string
	strategy       string
	prefer         string
	threads        int
	retries        int
	timeout        time.Duration
	scanTimeout    time.Duration
	noCache        bool
	relaxed        bool
	loaderFamilies bool
	cfAPIKey       string
	format         string
	jsonOut        string
	lang           string
	save           bool
}

func (f *scanFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.mc, "mc", "", "target Minecraft version, e.g. 1.20.1")
	fs.StringVar(&f.loader, "loader", "", "target loader: any, forge, neoforge, fabric, quilt or liteloader")
	fs.StringVar(&f.strategy, "strategy", "", "check strategy: local, online or both")
	fs.StringVar(&f.prefer, "prefer", "", "side that wins a disagreement under both: none, local or online")
	fs.IntVar(&f.threads, "threads", 0, "number of archives checked in parallel (default from config)")
	fs.IntVar(&f.retries, "retry", 0, "attempts per provider request (default from config)")
	fs.DurationVar(&f.timeout, "timeout", 0, "timeout per provider request (default from config)")
	fs.DurationVar(&f.scanTimeout, "scan-timeout", 0, "stop the whole scan after this long and report what was checked")
	fs.BoolVar(&f.noCache, "no-cache", false, "do not read or write the lookup cache")
	fs.BoolVar(&f.relaxed, "relaxed-mc", false, "let an exact version declaration match any patch of the same minor version")
	fs.BoolVar(&f.loaderFamilies, "loader-families", false, "accept Fabric mods on Quilt and Forge mods on NeoForge")
	fs.StringVar(&f.cfAPIKey, "cf-api-key", "", "CurseForge API key (overrides config and the stored key)")
	fs.StringVar(&f.format, "format", string(report.FormatTable), "output format: table, json or yaml")
	fs.StringVar(&f.jsonOut, "json-out", "", "also write the full result as JSON to this file")
	fs.StringVar(&f.lang, "lang", "", "report language, e.g. en or zh-CN")
	fs.BoolVar(&f.save, "save", false, "remember these options for the next run")
}

// scanPlan is the validated outcome of merging flags over saved settings.
type scanPlan struct {
	dir      string
	strategy compat.Strategy
	checker  *compat.Checker
	renderer *report.Renderer
	workers  int
	next     settings.Settings
}

// plan merges the command line over the saved settings and validates the
// result. Any problem is a usage error.
func (f *scanFlags) plan(cmd *cobra.Command, a *app, args []string) (*scanPlan, error) {
	changed := cmd.Flags().Changed
	next := a.saved

	pick := func(name, flagVal string, dst *string) {
		if changed(name) {
			*dst = flagVal
		}
	}
	pick("mc", f.mc, &next.GameVersion)
	pick("loader", f.loader, &next.Loader)
	pick("strategy", f.strategy, &next.Strategy)
	pick("prefer", f.prefer, &next.Prefer)
	pick("lang", f.lang, &next.Language)
	if changed("relaxed-mc") {
		next.Relaxed = f.relaxed
	}
	if changed("loader-families") {
		next.LoaderFamilies = f.loaderFamilies
	}
	if len(args) > 0 {
		next.ModsDir = args[0]
	}
	if next.ModsDir == "" {
		next.ModsDir = "."
	}
	if next.Strategy == "" {
		next.Strategy = string(compat.StrategyBoth)
	}
	if next.Loader == "" {
		next.Loader = string(manifest.LoaderAny)
	}

	if next.GameVersion == "" {
		return nil, usageError(errors.New("no target Minecraft version: pass --mc"))
	}
	target, err := compat.NewTarget(next.GameVersion, next.Loader)
	if err != nil {
		return nil, usageError(err)
	}
	target.Relaxed = next.Relaxed
	target.LoaderFamilies = next.LoaderFamilies

	strategy, err := compat.ParseStrategy(next.Strategy)
	if err != nil {
		return nil, usageError(err)
	}
	prefer, err := compat.ParsePreference(next.Prefer)
	if err != nil {
		return nil, usageError(err)
	}
	format, err := report.ParseFormat(f.format)
	if err != nil {
		return nil, usageError(err)
	}
	if f.threads < 0 {
		return nil, usageError(fmt.Errorf("--threads must be positive, got %d", f.threads))
	}
	workers := a.cfg.Scan.Workers
	if f.threads > 0 {
		workers = f.threads
	}

	return &scanPlan{
		dir:      next.ModsDir,
		strategy: strategy,
		checker:  compat.NewChecker(strategy, prefer, target),
		renderer: report.New(format, a.translator(next.Language)),
		workers:  workers,
		next:     next,
	}, nil
}

// scanService builds the scanner for a plan, wiring the provider chain only
// when the strategy needs lookups.
func (f *scanFlags) scanService(ctx context.Context, a *app, p *scanPlan) *scanner.Service {
	// An untyped nil keeps the interface nil under the local strategy.
	var resolver scanner.Resolver
	if p.strategy.UsesOnline() {
		r, _ := a.resolver(ctx, providerOptions{
			apiKey:  f.cfAPIKey,
			noCache: f.noCache,
			retries: f.retries,
			timeout: f.timeout,
		})
		resolver = r
	}
	return scanner.NewService(resolver, a.logger, p.workers)
}

// progressBus logs scan progress at debug level. Stop it after the scan.
func progressBus(logger *slog.Logger) *event.Bus {
	bus := event.NewBus(logger, 64)
	bus.Subscribe(event.ArchiveChecked, func(e event.Event) {
		logger.Debug("archive checked",
			slog.Any("file", e.Data["file"]),
			slog.Any("status", e.Data["status"]),
			slog.Any("source", e.Data["source"]))
	})
	bus.Subscribe(event.ScanCompleted, func(e event.Event) {
		logger.Info("scan finished",
			slog.Any("status", e.Data["status"]),
			slog.Any("checked", e.Data["checked"]),
			slog.Any("total", e.Data["total_files"]))
	})
	go bus.Start()
	return bus
}

// signalContext cancels on SIGINT or SIGTERM and, when limit is positive,
// after limit has elapsed.
func signalContext(parent context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if limit <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, limit)
	return ctx, func() {
		cancel()
		stop()
	}
}

func (f *scanFlags) scanTimeoutOr(a *app) time.Duration {
	if f.scanTimeout > 0 {
		return f.scanTimeout
	}
	return a.cfg.Scan.Timeout
}

// runScan scans the plan's directory once and renders the result.
func (a *app) runScan(ctx context.Context, svc *scanner.Service, p *scanPlan, jsonOut string) error {
	res, err := svc.Scan(ctx, p.dir, p.checker)
	if err != nil {
		return err
	}
	if res.Status == scanner.StatusInterrupted {
		a.logger.Warn("scan interrupted",
			slog.Int("checked", len(res.Verdicts)),
			slog.Int("total", res.TotalFiles))
	}
	if err := p.renderer.Scan(a.stdout, res); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if jsonOut != "" {
		if err := report.SaveJSON(jsonOut, res); err != nil {
			return fmt.Errorf("writing %s: %w", jsonOut, err)
		}
	}
	return nil
}

func newScanCmd(a *app) *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "scan [DIR]",
		Short: "Check every mod archive in a directory",
		Long: `Check every .jar and .zip archive directly inside DIR (default: the last
used directory, or the current one) against the target Minecraft version
and loader.

Unflagged options fall back to the values saved with --save.`,
		Example: `  modcheck scan ~/.minecraft/mods --mc 1.20.1 --loader fabric
  modcheck scan --strategy local --format json
  modcheck scan --mc 1.21.1 --prefer online --save`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, a, args)
		},
	}
	flags.register(cmd)
	return cmd
}

func (f *scanFlags) run(cmd *cobra.Command, a *app, args []string) error {
	p, err := f.plan(cmd, a, args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), f.scanTimeoutOr(a))
	defer cancel()

	svc := f.scanService(ctx, a, p)
	bus := progressBus(a.logger)
	svc.SetEventBus(bus)
	err = a.runScan(ctx, svc, p, f.jsonOut)
	bus.Stop()
	if err != nil {
		return err
	}
	if ctx.Err() == nil {
		a.pruneIfDue(ctx)
	}

	if f.save {
		if err := a.store.Save(p.next); err != nil {
			a.logger.Warn("saving settings", slog.String("error", err.Error()))
		}
	}
	return nil
}
