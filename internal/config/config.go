// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers file and environment overrides on top of New().
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/okian/matchflow/internal/domain/cost"
	"github.com/okian/matchflow/internal/domain/matching"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory run queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of solver workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of remembered request ids.
	DedupeSize int `koanf:"dedupe_size"`

	// JobTimeoutMS bounds a single run; 0 disables the deadline.
	JobTimeoutMS int `koanf:"job_timeout_ms"`

	// MaxRequestBytes caps accepted request bodies.
	MaxRequestBytes int64 `koanf:"max_request_bytes"`

	// Algorithm is the default matching algorithm:
	// successive-shortest-paths or cycle-canceling.
	Algorithm string `koanf:"algorithm"`

	// BalancingTargets are the default target shares per cost component,
	// used when a matching request carries no balancing of its own.
	BalancingTargets map[string]float64 `koanf:"balancing_targets"`

	// StoreDSN selects the PostgreSQL run store; empty keeps runs in memory.
	StoreDSN string `koanf:"store_dsn"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		QueueSize:       1_024,
		WorkerCount:     runtime.NumCPU(),
		DedupeSize:      100_000,
		JobTimeoutMS:    60_000,
		MaxRequestBytes: 32 << 20,
		Algorithm:       "successive-shortest-paths",
		BalancingTargets: map[string]float64{
			"subject_overlap":    0.65,
			"region_bonus":       0.05,
			"waiting_time_bonus": 0.2,
			"priority_bonus":     0.1,
		},
	}
}

// JobTimeout returns the per-run deadline; zero disables it.
func (c *Config) JobTimeout() time.Duration {
	return time.Duration(c.JobTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive, got %d", ErrInvalidConfig, c.DedupeSize)
	case c.JobTimeoutMS < 0:
		return fmt.Errorf("%w: job_timeout_ms must not be negative, got %d", ErrInvalidConfig, c.JobTimeoutMS)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.MaxRequestBytes <= 0:
		return fmt.Errorf("%w: max_request_bytes must be positive, got %d", ErrInvalidConfig, c.MaxRequestBytes)
	}
	if _, err := matching.ParseAlgorithm(c.Algorithm); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for name, share := range c.BalancingTargets {
		if _, err := cost.ParseComponent(name); err != nil {
			return fmt.Errorf("%w: balancing_targets: %w", ErrInvalidConfig, err)
		}
		if share < 0 {
			return fmt.Errorf("%w: balancing_targets: %s has negative share %v", ErrInvalidConfig, name, share)
		}
	}
	return nil
}
