package cmd

import (
	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitSuccess    = 0
	exitBuildError = 1
)

// BuildCommand returns the one-shot build command.
func BuildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Bundle an entry file once and exit",
		ArgsUsage: "<entry>",
		Flags:     commonFlags(),
		Action:    runBuild,
	}
}

func runBuild(c *cli.Context) error {
	env, err := assemble(c, false)
	if err != nil {
		return cli.Exit(err.Error(), exitBuildError)
	}
	defer env.bundler.Stop()

	if _, err := env.bundler.Bundle(c.Context); err != nil {
		// The engine already pretty-printed the failure.
		return cli.Exit("", exitBuildError)
	}

	snap := env.metrics.Snapshot()
	env.sugar.Infof("✨ built %d bundles (%d assets, %d cache hits)",
		snap.BundlesWritten, snap.AssetsProcessed, snap.CacheHits)
	return nil
}
