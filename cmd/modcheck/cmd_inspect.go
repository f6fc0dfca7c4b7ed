package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/compat"
	"github.com/sydlexius/modcheck/internal/report"
	"github.com/sydlexius/modcheck/internal/scanner"
)

func newInspectCmd(a *app) *cobra.Command {
	var (
		strategy string
		format   string
		lang     string
		cfAPIKey string
		noCache  bool
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show what a mod archive declares and what the providers know about it",
		Long: `Print the digests and manifest of one archive, followed by the online
lookup result. No target is needed; nothing is judged.

With --strategy local the online lookup is skipped.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := compat.ParseStrategy(strategy)
			if err != nil {
				return usageError(err)
			}
			f, err := report.ParseFormat(format)
			if err != nil {
				return usageError(err)
			}

			ctx, cancel := signalContext(cmd.Context(), 0)
			defer cancel()

			var resolver scanner.Resolver
			online := st.UsesOnline()
			if online {
				r, _ := a.resolver(ctx, providerOptions{apiKey: cfAPIKey, noCache: noCache})
				resolver = r
			}
			svc := scanner.NewService(resolver, a.logger, 1)
			subject, err := svc.Inspect(ctx, args[0], online)
			if err != nil {
				return err
			}
			if err := report.New(f, a.translator(lang)).Inspect(a.stdout, report.NewInspection(subject, online)); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&strategy, "strategy", string(compat.StrategyBoth), "local skips the online lookup")
	fs.StringVar(&format, "format", string(report.FormatTable), "output format: table, json or yaml")
	fs.StringVar(&lang, "lang", "", "report language")
	fs.StringVar(&cfAPIKey, "cf-api-key", "", "CurseForge API key")
	fs.BoolVar(&noCache, "no-cache", false, "do not read or write the lookup cache")
	return cmd
}
