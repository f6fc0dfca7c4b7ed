package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/provider"
	"github.com/sydlexius/modcheck/internal/report"
)

func newKeyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage provider API keys",
		Long: `Store, remove and list provider API keys. Keys are encrypted with a
local key file before they are written to the cache database.`,
	}
	cmd.AddCommand(newKeySetCmd(a), newKeyDeleteCmd(a), newKeyStatusCmd(a))
	return cmd
}

// keyProvider parses a provider argument that must accept an API key.
func keyProvider(arg string) (provider.ProviderName, error) {
	name, err := parseProvider(arg)
	if err != nil {
		return "", usageError(err)
	}
	if provider.ProviderCapabilities()[name].Tier != provider.TierFreeKey {
		return "", usageError(fmt.Errorf("%s does not use an API key", name.DisplayName()))
	}
	return name, nil
}

func newKeySetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set PROVIDER [KEY]",
		Short: "Store an API key",
		Long: `Store an API key for PROVIDER. Without KEY, or with "-", the key is read
from the first line of standard input so it stays out of shell history.`,
		Example: `  modcheck key set curseforge
  echo "$CF_KEY" | modcheck key set curseforge -`,
		Args: func(cmd *cobra.Command, args []string) error {
			return usageError(cobra.RangeArgs(1, 2)(cmd, args))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keyProvider(args[0])
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 2 && args[1] != "-" {
				key = args[1]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading key from stdin: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return usageError(errors.New("empty API key"))
			}

			ks, err := a.keyService(cmd.Context(), true)
			if err != nil {
				return err
			}
			if err := ks.SetAPIKey(cmd.Context(), name, key); err != nil {
				return err
			}
			printf(cmd, "%s\n", a.translator("").T("key.saved", "provider", name.DisplayName()))
			return nil
		},
	}
}

func newKeyDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROVIDER",
		Short: "Remove a stored API key",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := keyProvider(args[0])
			if err != nil {
				return err
			}
			ks, err := a.keyService(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := ks.DeleteAPIKey(cmd.Context(), name); err != nil {
				return err
			}
			printf(cmd, "%s\n", a.translator("").T("key.deleted", "provider", name.DisplayName()))
			return nil
		},
	}
}

func newKeyStatusCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List providers and the state of their API keys",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return usageError(err)
			}
			ks, err := a.keyService(cmd.Context(), false)
			if err != nil {
				return err
			}
			statuses, err := ks.ListKeyStatuses(cmd.Context())
			if err != nil {
				return err
			}
			return report.New(f, a.translator("")).Keys(a.stdout, statuses)
		},
	}
	cmd.Flags().StringVar(&format, "format", string(report.FormatTable), "output format: table, json or yaml")
	return cmd
}
