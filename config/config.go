// Package config loads runtime configuration for the relay binaries from
// the environment. All variables carry the RELAY_ prefix, e.g.
// RELAY_DATABASE_URL, RELAY_QUEUE_NAME.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every variable read by Load.
const envPrefix = "RELAY"

// Config holds settings shared by the dispatcher and executor binaries.
// Each binary only uses the subset it needs; Validate checks the fields
// required for the requested role.
type Config struct {
	// DatabaseURL is the Postgres connection string for the relay store.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// QueueURL is the Redis connection URL backing the trigger queue. When
	// empty, binaries fall back to the in-memory queue, which is only
	// useful for local single-process runs.
	QueueURL string `envconfig:"QUEUE_URL"`

	// QueueName names the trigger queue.
	QueueName string `envconfig:"QUEUE_NAME" default:"workflow-triggers"`

	// ExecutionAPIURL is the base URL of the workflow execution engine.
	ExecutionAPIURL string `envconfig:"EXECUTION_API_URL"`

	// ServiceKey authenticates calls to the execution engine.
	ServiceKey string `envconfig:"SERVICE_KEY"`

	// DispatchWindow is the lookback applied when matching cron
	// occurrences. It should match the dispatcher's invocation cadence.
	DispatchWindow time.Duration `envconfig:"DISPATCH_WINDOW" default:"60s"`

	// MaxMessages caps the batch size per receive.
	MaxMessages int `envconfig:"MAX_MESSAGES" default:"10"`

	// WaitTime is the long-poll duration per receive.
	WaitTime time.Duration `envconfig:"WAIT_TIME" default:"20s"`

	// VisibilityTimeout is how long a received message stays leased before
	// it becomes eligible for redelivery.
	VisibilityTimeout time.Duration `envconfig:"VISIBILITY_TIMEOUT" default:"300s"`

	// ReceiveBackoff is the delay between retries after a failed receive.
	ReceiveBackoff time.Duration `envconfig:"RECEIVE_BACKOFF" default:"5s"`

	// SendRate paces dispatcher queue sends per second. Zero disables
	// pacing.
	SendRate float64 `envconfig:"SEND_RATE" default:"0"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// ValidateDispatcher checks the fields the dispatcher binary requires.
func (c *Config) ValidateDispatcher() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: RELAY_DATABASE_URL is required")
	}
	if c.DispatchWindow <= 0 {
		return fmt.Errorf("config: RELAY_DISPATCH_WINDOW must be positive")
	}
	return nil
}

// ValidateExecutor checks the fields the executor binary requires.
func (c *Config) ValidateExecutor() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: RELAY_DATABASE_URL is required")
	}
	if c.ExecutionAPIURL == "" {
		return fmt.Errorf("config: RELAY_EXECUTION_API_URL is required")
	}
	if c.MaxMessages <= 0 {
		return fmt.Errorf("config: RELAY_MAX_MESSAGES must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info for
// unrecognized values.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
