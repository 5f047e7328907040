// Package config handles YAML config file loading for the bale CLI.
package config

import (
	"time"

	"github.com/justapithecus/bale/types"
)

// Config represents a bale.yaml configuration file. All values are
// optional and act as defaults for CLI flags; flags always override
// config values.
type Config struct {
	OutDir      string `yaml:"out_dir"`
	PublicURL   string `yaml:"public_url"`
	CacheDir    string `yaml:"cache_dir"`
	Watch       *bool  `yaml:"watch"`
	Cache       *bool  `yaml:"cache"`
	KillWorkers *bool  `yaml:"kill_workers"`
	Minify      *bool  `yaml:"minify"`
	HMR         *bool  `yaml:"hmr"`
	HMRPort     int    `yaml:"hmr_port"`
	Production  *bool  `yaml:"production"`
	LogLevel    *int   `yaml:"log_level"`
	Workers     int    `yaml:"workers"`

	Storage    StorageConfig     `yaml:"storage"`
	Notify     NotifyConfig      `yaml:"notify"`
	Extensions map[string]string `yaml:"extensions"`
}

// StorageConfig selects the cache backend.
type StorageConfig struct {
	// Backend is "fs" (default) or "s3".
	Backend     string `yaml:"backend"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// NotifyConfig holds optional redis fan-out for update messages.
type NotifyConfig struct {
	RedisURL string   `yaml:"redis_url"`
	Channel  string   `yaml:"channel,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
	Retries  *int     `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Options converts the file-level config into the engine option set.
// Unset tri-state values stay unset so Normalize applies its defaults.
func (c *Config) Options() *types.Options {
	return &types.Options{
		OutDir:        c.OutDir,
		PublicURL:     c.PublicURL,
		CacheDir:      c.CacheDir,
		HMRPort:       c.HMRPort,
		Workers:       c.Workers,
		WatchSet:      c.Watch,
		CacheSet:      c.Cache,
		MinifySet:     c.Minify,
		HMRSet:        c.HMR,
		ProductionSet: c.Production,
		KillWorkers:   c.KillWorkers == nil || *c.KillWorkers,
		LogLevel:      logLevel(c.LogLevel),
	}
}

func logLevel(l *int) int {
	if l == nil {
		return 2
	}
	return *l
}
