// Package config loads client configuration from environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all client configuration.
type Config struct {
	// Backend base URL, without trailing slash.
	ServerURL string `env:"HIDDENSWEEP_SERVER_URL" envDefault:"http://localhost:3001"`

	// Per-request timeout for regular API calls. The scan stream is
	// exempt (only the connect phase is bounded).
	Timeout time.Duration `env:"HIDDENSWEEP_TIMEOUT" envDefault:"10s"`

	// Retry policy for retryable failures (5xx, connection errors).
	RetryAttempts int           `env:"HIDDENSWEEP_RETRY_ATTEMPTS" envDefault:"3"`
	RetryDelay    time.Duration `env:"HIDDENSWEEP_RETRY_DELAY" envDefault:"1s"`

	// Directory for durable client state (token, user snapshot).
	// Empty means the platform user config dir.
	StateDir string `env:"HIDDENSWEEP_STATE_DIR"`

	// Logging
	LogLevel  string `env:"HIDDENSWEEP_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"HIDDENSWEEP_LOG_FORMAT" envDefault:"console"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ServerURL = strings.TrimSuffix(cfg.ServerURL, "/")
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.RetryAttempts < 1 {
		return nil, fmt.Errorf("retry attempts must be at least 1, got %d", cfg.RetryAttempts)
	}

	return &cfg, nil
}
