// Package config loads the engine's tunables from a TOML file, following
// the same load-with-defaults shape the rest of the retrieved corpus uses
// for server configuration.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Config holds every knob the storage engine needs at startup.
type Config struct {
	// PoolSize is the number of frames held by the buffer pool.
	PoolSize int `toml:"pool_size"`
	// PageSize is the fixed size, in bytes, of every page.
	PageSize int `toml:"page_size"`
	// LeafMaxSize is the maximum number of entries a leaf page holds
	// before it must split.
	LeafMaxSize int `toml:"leaf_max_size"`
	// InternalMaxSize is the maximum number of entries an internal page
	// holds before it must split.
	InternalMaxSize int `toml:"internal_max_size"`
	// DataFile is the path to the single backing file the disk manager
	// reads and writes pages to.
	DataFile string `toml:"data_file"`
	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `toml:"log_level"`
}

// Default returns a Config usable with no configuration file at all.
func Default() *Config {
	return &Config{
		PoolSize:        64,
		PageSize:        4096,
		LeafMaxSize:     leafMaxSizeDefault,
		InternalMaxSize: internalMaxSizeDefault,
		DataFile:        "coredb.db",
		LogLevel:        "info",
	}
}

const (
	leafMaxSizeDefault     = 8
	internalMaxSizeDefault = 8
)

// Load reads a TOML file at path and overlays it on top of Default().
// A missing field keeps its default; a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
