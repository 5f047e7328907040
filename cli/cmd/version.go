package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/bale/types"
)

// VersionCommand returns the version command. commit is set via ldflags at
// build time.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(c *cli.Context) error {
			if commit == "" {
				commit = "unknown"
			}
			fmt.Printf("bale %s (commit: %s)\n", types.Version, commit)
			return nil
		},
	}
}
