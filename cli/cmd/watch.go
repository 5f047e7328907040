package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// WatchCommand returns the watch command: build, then rebuild on change
// until interrupted.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Bundle an entry file and rebuild on change",
		ArgsUsage: "<entry>",
		Flags: append(commonFlags(),
			&cli.IntFlag{
				Name:  "hmr-port",
				Usage: "Update-notifier port (0 = ephemeral)",
			},
			&cli.BoolFlag{
				Name:  "no-hmr",
				Usage: "Disable the update-notifier socket",
			},
		),
		Action: runWatch,
	}
}

func runWatch(c *cli.Context) error {
	env, err := assemble(c, true)
	if err != nil {
		return cli.Exit(err.Error(), exitBuildError)
	}
	defer env.bundler.Stop()

	if env.hmrPort != 0 {
		env.sugar.Infof("update notifier listening on ws://127.0.0.1:%d", env.hmrPort)
	}

	// Initial build failures do not stop watch mode; the watcher retries
	// on the next change.
	_, _ = env.bundler.Bundle(c.Context)
	env.bundler.StartWatching(c.Context)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		env.sugar.Infof("shutting down")
	case <-c.Context.Done():
	}
	return nil
}
