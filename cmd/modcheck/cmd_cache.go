package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/report"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the online lookup cache",
	}
	cmd.AddCommand(newCachePruneCmd(a), newCacheClearCmd(a), newCacheInfoCmd(a))
	return cmd
}

func newCachePruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove cache entries older than the cache TTL",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			age := a.cfg.Cache.TTL
			if cmd.Flags().Changed("older-than") {
				if olderThan <= 0 {
					return usageError(errors.New("--older-than must be positive"))
				}
				age = olderThan
			}
			m, err := a.maintenance()
			if err != nil {
				return err
			}
			n, err := m.Prune(cmd.Context(), age)
			if err != nil {
				return fmt.Errorf("pruning cache: %w", err)
			}
			printf(cmd, "Removed %s entries older than %s.\n", humanize.Comma(n), age)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age cutoff (default is the configured cache TTL)")
	return cmd
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cache entry",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.maintenance()
			if err != nil {
				return err
			}
			n, err := m.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			printf(cmd, "Removed %s entries.\n", humanize.Comma(n))
			return nil
		},
	}
}

func newCacheInfoCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show where the cache lives and what it holds",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return usageError(err)
			}
			m, err := a.maintenance()
			if err != nil {
				return err
			}
			st, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}
			return report.New(f, a.translator("")).Cache(a.stdout, st, a.cfg.Cache.TTL)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(report.FormatTable), "output format: table, json or yaml")
	return cmd
}
