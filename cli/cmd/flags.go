// Package cmd implements the bale CLI commands.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/bale/asset"
	"github.com/justapithecus/bale/bundler"
	"github.com/justapithecus/bale/cache"
	"github.com/justapithecus/bale/cli/config"
	"github.com/justapithecus/bale/hmr"
	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/metrics"
	"github.com/justapithecus/bale/types"
	"github.com/justapithecus/bale/watcher"
)

// commonFlags are shared by build and watch.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to bale.yaml",
			Value: config.DefaultPath,
		},
		&cli.StringFlag{
			Name:    "out-dir",
			Aliases: []string{"d"},
			Usage:   "Output directory",
		},
		&cli.StringFlag{
			Name:  "public-url",
			Usage: "URL prefix embedded in emitted references",
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for cache entries",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the processed-result cache",
		},
		&cli.BoolFlag{
			Name:  "minify",
			Usage: "Minify emitted bundles",
		},
		&cli.BoolFlag{
			Name:  "production",
			Usage: "Production build (default: NODE_ENV=production)",
		},
		&cli.IntFlag{
			Name:  "log-level",
			Usage: "0=silent, 1=errors, 2=info, 3=verbose",
			Value: 2,
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Worker farm size (default: logical CPU count)",
		},
	}
}

// buildEnv is everything a command needs beyond the bundler itself.
type buildEnv struct {
	bundler *bundler.Bundler
	options *types.Options
	logger  *log.Logger
	sugar   *log.SugaredLogger
	metrics *metrics.Collector
	hmrPort int
}

// assemble builds the bundler and its collaborators from config file plus
// flags. Flags override file values; watchMode decides watcher and
// notifier wiring.
func assemble(c *cli.Context, watchMode bool) (*buildEnv, error) {
	entry := c.Args().First()
	if entry == "" {
		return nil, fmt.Errorf("missing entry file argument")
	}

	cfg, err := config.LoadOptional(c.String("config"))
	if err != nil {
		return nil, err
	}

	opts := cfg.Options()
	if c.IsSet("out-dir") {
		opts.OutDir = c.String("out-dir")
	}
	if c.IsSet("public-url") {
		opts.PublicURL = c.String("public-url")
	}
	if c.IsSet("cache-dir") {
		opts.CacheDir = c.String("cache-dir")
	}
	if c.IsSet("no-cache") {
		disabled := !c.Bool("no-cache")
		opts.CacheSet = &disabled
	}
	if c.IsSet("minify") {
		v := c.Bool("minify")
		opts.MinifySet = &v
	}
	if c.IsSet("production") {
		v := c.Bool("production")
		opts.ProductionSet = &v
	}
	if c.IsSet("log-level") {
		opts.LogLevel = c.Int("log-level")
	}
	if c.IsSet("workers") {
		opts.Workers = c.Int("workers")
	}
	if c.IsSet("hmr-port") {
		opts.HMRPort = c.Int("hmr-port")
	}
	if c.Bool("no-hmr") {
		hmrOff := false
		opts.HMRSet = &hmrOff
	}
	opts.WatchSet = &watchMode
	opts.Normalize()

	logger := log.NewLogger(&log.BuildContext{
		Entry:      entry,
		OutDir:     opts.OutDir,
		Production: opts.Production,
	}, opts.LogLevel)

	registry := asset.NewRegistry()
	for ext, variant := range cfg.Extensions {
		if err := registry.RegisterExtension(ext, variant); err != nil {
			return nil, fmt.Errorf("extension %q: %w", ext, err)
		}
	}
	opts.Extensions = registry.Extensions()

	env := &buildEnv{
		options: opts,
		logger:  logger,
		sugar:   logger.Sugar(),
		metrics: metrics.NewCollector(),
	}

	bcfg := bundler.Config{
		Entry:     entry,
		Options:   opts,
		Logger:    logger,
		Registry:  registry,
		Collector: env.metrics,
	}

	if opts.Cache && cfg.Storage.Backend == "s3" {
		s3cache, err := cache.NewS3(c.Context, cache.S3Config{
			Bucket:       cfg.Storage.Bucket,
			Prefix:       cfg.Storage.Prefix,
			Region:       cfg.Storage.Region,
			Endpoint:     cfg.Storage.Endpoint,
			UsePathStyle: cfg.Storage.S3PathStyle,
		}, opts, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 cache: %w", err)
		}
		bcfg.Cache = s3cache
	}

	if watchMode {
		fsw, err := watcher.NewFS()
		if err != nil {
			return nil, fmt.Errorf("watcher: %w", err)
		}
		bcfg.Watcher = fsw

		var notifiers hmr.Multi
		if opts.HMR {
			server := hmr.NewServer(logger)
			port, err := server.Start(opts.HMRPort)
			if err != nil {
				return nil, fmt.Errorf("update server: %w", err)
			}
			env.hmrPort = port
			notifiers = append(notifiers, server)
		}
		if cfg.Notify.RedisURL != "" {
			retries := hmr.DefaultRetries
			if cfg.Notify.Retries != nil {
				retries = *cfg.Notify.Retries
			}
			rn, err := hmr.NewRedis(hmr.RedisConfig{
				URL:     cfg.Notify.RedisURL,
				Channel: cfg.Notify.Channel,
				Timeout: cfg.Notify.Timeout.Duration,
				Retries: retries,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("redis notifier: %w", err)
			}
			notifiers = append(notifiers, rn)
		}
		if len(notifiers) > 0 {
			bcfg.Notifier = notifiers
		}
	}

	b, err := bundler.New(bcfg)
	if err != nil {
		return nil, err
	}
	env.bundler = b
	return env, nil
}
