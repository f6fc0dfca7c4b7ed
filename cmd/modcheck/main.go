// Command modcheck checks Minecraft mod archives for compatibility with a
// game version and mod loader.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		// PersistentPostRun does not run when RunE fails.
		a.close()
		fmt.Fprintf(stderr, "error: %v\n", err) //nolint:errcheck
		if exitCode(err) == ExitUsage {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.Name()) //nolint:errcheck
		}
	}
	return exitCode(err)
}
