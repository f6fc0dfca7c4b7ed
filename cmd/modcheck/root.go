package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRootCmd builds the command tree. Running the root command without a
// subcommand scans, taking the same flags as scan.
func newRootCmd(a *app) *cobra.Command {
	var flags scanFlags
	root := &cobra.Command{
		Use:   "modcheck [DIR]",
		Short: "Check Minecraft mods against a game version and loader",
		Long: `modcheck reads each mod archive's own metadata (fabric.mod.json,
quilt.mod.json, mods.toml, neoforge.mods.toml, mcmod.info, litemod.json),
looks the file up on Modrinth and CurseForge by hash, and reports whether
it runs on the target Minecraft version and loader.

Without a subcommand modcheck scans DIR, exactly like 'modcheck scan'.`,
		Example: `  modcheck ~/.minecraft/mods --mc 1.20.1 --loader fabric
  modcheck inspect sodium-fabric-0.5.3+mc1.20.1.jar
  modcheck watch --mc 1.21.1 --loader neoforge`,
		Args:          maxArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			a.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, a, args)
		},
	}
	flags.register(root)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/modcheck/config.yaml)")
	pf.StringVar(&a.settingsPath, "settings", "", "saved settings file (default is $XDG_CONFIG_HOME/modcheck/settings.json)")
	pf.CountVarP(&a.verbose, "verbose", "v", "log more detail (-v info, -vv debug)")

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newScanCmd(a),
		newInspectCmd(a),
		newWatchCmd(a),
		newCacheCmd(a),
		newPingCmd(a),
		newKeyCmd(a),
		newVersionCmd(a),
	)
	return root
}

// maxArgs is cobra.MaximumNArgs reporting a usage error.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(cobra.MaximumNArgs(n)(cmd, args))
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return usageError(cobra.ExactArgs(n)(cmd, args))
	}
}

// printf writes to the command's output, ignoring write errors the way
// fmt.Printf does.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...) //nolint:errcheck
}
