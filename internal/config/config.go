// Package config handles application configuration management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Base directory for all skillsync data (~/.skillsync)
	BaseDir string

	// Remote API settings
	API APIConfig

	// Sync engine settings
	Sync SyncConfig
}

// APIConfig holds remote backend settings.
type APIConfig struct {
	// BaseURL of the REST backend (SKILLSYNC_API_URL env var)
	BaseURL string
	// Token for bearer auth (SKILLSYNC_API_TOKEN env var)
	Token string
	// Timeout for regular API calls
	Timeout time.Duration
	// RateLimit is requests per minute against the backend
	RateLimit int
}

// SyncConfig holds cache and change-queue tuning.
type SyncConfig struct {
	// Debounce is the per-key quiet period before a change flushes
	Debounce time.Duration
	// BatchSize is the max changes per batched remote call
	BatchSize int
	// MaxRetries before a failing change is dropped
	MaxRetries int
	// CacheTTL is how long fetched collections count as fresh
	CacheTTL time.Duration
	// ProbeInterval is how often the backend health endpoint is polled
	ProbeInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if url := os.Getenv("SKILLSYNC_API_URL"); url != "" {
		cfg.API.BaseURL = url
	}
	if token := os.Getenv("SKILLSYNC_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if dir := os.Getenv("SKILLSYNC_DATA_DIR"); dir != "" {
		cfg.BaseDir = dir
	}
	if v := os.Getenv("SKILLSYNC_DEBOUNCE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid SKILLSYNC_DEBOUNCE_MS %q", v)
		}
		cfg.Sync.Debounce = time.Duration(ms) * time.Millisecond
	}
	if v := os.Getenv("SKILLSYNC_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid SKILLSYNC_BATCH_SIZE %q", v)
		}
		cfg.Sync.BatchSize = n
	}

	if err := ensureDirectories(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ensureDirectories creates required directories if they don't exist.
func ensureDirectories(cfg *Config) error {
	if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(GetPaths(cfg).Logs, 0755)
}
