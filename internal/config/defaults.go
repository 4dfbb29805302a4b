package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BaseDir: DefaultBaseDir(),

		API: APIConfig{
			BaseURL:   "http://localhost:8080/api",
			Timeout:   30 * time.Second,
			RateLimit: 120,
		},

		Sync: SyncConfig{
			Debounce:      2 * time.Second,
			BatchSize:     20,
			MaxRetries:    3,
			CacheTTL:      5 * time.Minute,
			ProbeInterval: 30 * time.Second,
		},
	}
}
