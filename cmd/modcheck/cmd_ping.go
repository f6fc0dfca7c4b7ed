package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/report"
)

func newPingCmd(a *app) *cobra.Command {
	var (
		format   string
		lang     string
		cfAPIKey string
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Test connectivity to the online providers",
		Long: `Send one request to each configured provider. CurseForge is skipped
when no API key is available. The outcome for a stored key is remembered
and shown by 'modcheck key status'.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return usageError(err)
			}
			ctx, cancel := signalContext(cmd.Context(), 0)
			defer cancel()

			resolver, storedKey := a.resolver(ctx, providerOptions{apiKey: cfAPIKey, noCache: true})
			outcomes := resolver.TestAll(ctx)

			results := make([]report.PingResult, 0, len(provider.AllProviderNames()))
			failed := false
			for _, name := range provider.AllProviderNames() {
				res := report.PingResult{Provider: name}
				if err, ok := outcomes[name]; ok {
					res.Configured = true
					res.OK = err == nil
					if err != nil {
						res.Error = err.Error()
						failed = true
					}
				}
				results = append(results, res)
			}

			if storedKey {
				a.recordKeyStatus(cmd, provider.NameCurseForge, outcomes[provider.NameCurseForge])
			}

			if err := report.New(f, a.translator(lang)).Ping(a.stdout, results); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			if failed {
				return &ExitError{Code: ExitFailure, Err: errors.New("one or more providers are unreachable")}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&format, "format", string(report.FormatTable), "output format: table, json or yaml")
	fs.StringVar(&lang, "lang", "", "report language")
	fs.StringVar(&cfAPIKey, "cf-api-key", "", "CurseForge API key to test instead of the stored one")
	return cmd
}

// recordKeyStatus persists the outcome of testing a stored key. A provider
// that could not be reached says nothing about the key.
func (a *app) recordKeyStatus(cmd *cobra.Command, name provider.ProviderName, testErr error) {
	if errors.Is(testErr, provider.ErrNetworkFailure) {
		return
	}
	ks, err := a.keyService(cmd.Context(), false)
	if err != nil {
		a.logger.Warn("recording key status", slog.String("error", err.Error()))
		return
	}
	status := provider.KeyStatusOK
	if testErr != nil {
		status = provider.KeyStatusInvalid
	}
	if err := ks.SetKeyStatus(cmd.Context(), name, status); err != nil {
		a.logger.Warn("recording key status", slog.String("error", err.Error()))
	}
}
