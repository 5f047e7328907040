package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when --config is not given.
const DefaultPath = "bale.yaml"

// Load reads a YAML config file, expands environment variables, and
// unmarshals into a Config struct.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}

	expanded := ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOptional returns an empty config when path is the default and the
// file does not exist; an explicitly named missing file is an error.
func LoadOptional(path string) (*Config, error) {
	if path == DefaultPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return &Config{}, nil
		}
	}
	return Load(path)
}
