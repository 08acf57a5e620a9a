// Package config loads client configuration from defaults, an optional
// config file, and TASKNEST_* environment variables, in increasing order of
// precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved client configuration.
type Config struct {
	BaseURL      string        // API server, e.g. https://app.tasknest.io
	DataDir      string        // Where tokens and client state live
	PollInterval time.Duration // Due-reminder polling interval
	HTTPTimeout  time.Duration // Per-request timeout
	LogLevel     string        // zerolog level name
}

// Load resolves the configuration. A missing config file is fine; a
// malformed one is not.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".tasknest"))
	}

	v.SetEnvPrefix("TASKNEST")
	v.AutomaticEnv()

	v.SetDefault("base_url", "http://localhost:5000")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("poll_interval", "60s")
	v.SetDefault("http_timeout", "15s")
	v.SetDefault("log_level", "info")

	for _, key := range []string{"BASE_URL", "DATA_DIR", "POLL_INTERVAL", "HTTP_TIMEOUT", "LOG_LEVEL"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		BaseURL:      v.GetString("base_url"),
		DataDir:      v.GetString("data_dir"),
		PollInterval: v.GetDuration("poll_interval"),
		HTTPTimeout:  v.GetDuration("http_timeout"),
		LogLevel:     v.GetString("log_level"),
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url must not be empty")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive, got %s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("http_timeout must be positive, got %s", cfg.HTTPTimeout)
	}

	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tasknest"
	}
	return filepath.Join(home, ".tasknest")
}
