// Package config loads cache settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	cache "github.com/krisalay/ttl-cache"
)

// EnvPath names the environment variable consulted when Load gets an empty path.
const EnvPath = "TTLCACHE_CONFIG"

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// File is the on-disk configuration.
//
//	shards: 16
//	sweep_interval: 5m
//	disable_sweeper: false
//	log_level: info
//	metrics_addr: ":9090"
type File struct {
	// Source is the path the file was read from, empty for defaults.
	Source string `yaml:"-"`

	Shards         int           `yaml:"shards"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	DisableSweeper bool          `yaml:"disable_sweeper"`
	LogLevel       string        `yaml:"log_level"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() File {
	return File{
		Shards:        cache.DefaultShards,
		SweepInterval: cache.DefaultSweepInterval,
		LogLevel:      "info",
	}
}

// Load reads path, or the file named by $TTLCACHE_CONFIG when path is empty.
// With neither set, Default is returned. Keys missing from the file keep their defaults.
func Load(path string) (File, error) {
	if path == "" {
		path = os.Getenv(EnvPath)
	}
	if path == "" {
		return Default(), nil
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read config %s: %w", path, err)
	}

	f := Default()
	if err := yaml.Unmarshal(bytes, &f); err != nil {
		return File{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	f.Source = path

	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Validate rejects negative shard counts and intervals and unknown log levels.
func (f File) Validate() error {
	if f.Shards < 0 {
		return fmt.Errorf("%w: shards must not be negative, got %d", ErrInvalid, f.Shards)
	}
	if f.SweepInterval < 0 {
		return fmt.Errorf("%w: sweep_interval must not be negative, got %s (use disable_sweeper)", ErrInvalid, f.SweepInterval)
	}
	if _, err := zap.ParseAtomicLevel(f.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrInvalid, err)
	}
	return nil
}

// CacheConfig converts the file into a cache.Config. Logger and Metrics are
// left for the caller to fill in.
func (f File) CacheConfig() cache.Config {
	cfg := cache.Config{
		Shards:        f.Shards,
		SweepInterval: f.SweepInterval,
	}
	if f.DisableSweeper {
		cfg.SweepInterval = -1
	}
	return cfg
}
