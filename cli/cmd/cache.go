package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/bale/cache"
	"github.com/justapithecus/bale/cli/config"
)

// CacheCommand returns the cache maintenance command group.
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Cache maintenance",
		Subcommands: []*cli.Command{
			{
				Name:  "clean",
				Usage: "Remove all cache entries",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "Path to bale.yaml",
						Value: config.DefaultPath,
					},
					&cli.StringFlag{
						Name:  "cache-dir",
						Usage: "Directory for cache entries",
					},
				},
				Action: runCacheClean,
			},
		},
	}
}

func runCacheClean(c *cli.Context) error {
	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), exitBuildError)
	}

	opts := cfg.Options()
	if c.IsSet("cache-dir") {
		opts.CacheDir = c.String("cache-dir")
	}
	opts.Normalize()

	if err := cache.Clean(opts.CacheDir); err != nil {
		return cli.Exit(err.Error(), exitBuildError)
	}
	fmt.Printf("cleaned %s\n", opts.CacheDir)
	return nil
}
