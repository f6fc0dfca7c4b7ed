package main

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sydlexius/modcheck/internal/version"
)

func newVersionCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			printf(cmd, "modcheck %s (commit %s, %s %s/%s)\n",
				version.Version, version.Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}
