package engine

import (
	"fmt"
	"time"
)

// Config holds configuration for the engine's background schedulers.
type Config struct {
	// ConsolidationInterval is how often the consolidation pass runs
	// (default: 1h).
	ConsolidationInterval time.Duration

	// SnapshotInterval is how often the store is snapshotted when a
	// snapshotter is wired (default: 15m).
	SnapshotInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for workers to drain
	// on shutdown (default: 30s).
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConsolidationInterval: time.Hour,
		SnapshotInterval:      15 * time.Minute,
		ShutdownTimeout:       30 * time.Second,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.ConsolidationInterval <= 0 {
		return fmt.Errorf("ConsolidationInterval must be > 0, got %v", c.ConsolidationInterval)
	}

	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("SnapshotInterval must be > 0, got %v", c.SnapshotInterval)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}

	return nil
}
