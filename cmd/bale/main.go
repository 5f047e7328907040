// Package main provides the bale CLI entrypoint.
//
// Usage:
//
//	bale <command> [options] <entry>
//
// Exit codes:
//   - 0: success
//   - 1: build error
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/bale/cli/cmd"
	"github.com/justapithecus/bale/types"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := &cli.App{
		Name:           "bale",
		Usage:          "Multi-language application bundler",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.BuildCommand(),
			cmd.WatchCommand(),
			cmd.CacheCommand(),
			cmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already handled cli.ExitCoder errors; this branch
		// handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler preserves exit codes from cli.Exit(), including the empty
// message form used after a build failure was already pretty-printed.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
