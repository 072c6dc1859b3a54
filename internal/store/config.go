package store

import "fmt"

// Config holds the tunables for the shard store.
type Config struct {
	// Capacity is the hard bound on stored shards. The consolidation
	// pass prunes the lowest-relevance shards when the bound is
	// exceeded (default: 10000).
	Capacity int

	// InitialAccessibility is the accessibility assigned at ingestion
	// (default: 0.5).
	InitialAccessibility float64

	// AccessBoost is added to accessibility on every query hit, capped
	// at 1.0 (default: 0.02).
	AccessBoost float64

	// LinkThreshold is the cosine similarity a candidate must exceed
	// for a discovered link (default: 0.7).
	LinkThreshold float64

	// MaxLinksPerShard bounds how many links a single discovery pass
	// creates for a new shard (default: 5).
	MaxLinksPerShard int

	// ClusterThreshold is the blended similarity a shard must exceed to
	// join an existing cluster (default: 0.7).
	ClusterThreshold float64

	// ClusterSampleSize is how many member embeddings are compared when
	// scoring a cluster (default: 3).
	ClusterSampleSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		InitialAccessibility: 0.5,
		AccessBoost:          0.02,
		LinkThreshold:        0.7,
		MaxLinksPerShard:     5,
		ClusterThreshold:     0.7,
		ClusterSampleSize:    3,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("Capacity must be >= 1, got %d", c.Capacity)
	}

	if c.InitialAccessibility < 0 || c.InitialAccessibility > 1 {
		return fmt.Errorf("InitialAccessibility must be in [0, 1], got %f", c.InitialAccessibility)
	}

	if c.AccessBoost < 0 || c.AccessBoost > 1 {
		return fmt.Errorf("AccessBoost must be in [0, 1], got %f", c.AccessBoost)
	}

	if c.LinkThreshold < 0 || c.LinkThreshold > 1 {
		return fmt.Errorf("LinkThreshold must be in [0, 1], got %f", c.LinkThreshold)
	}

	if c.MaxLinksPerShard < 0 {
		return fmt.Errorf("MaxLinksPerShard must be >= 0, got %d", c.MaxLinksPerShard)
	}

	if c.ClusterThreshold < 0 || c.ClusterThreshold > 1 {
		return fmt.Errorf("ClusterThreshold must be in [0, 1], got %f", c.ClusterThreshold)
	}

	if c.ClusterSampleSize < 1 {
		return fmt.Errorf("ClusterSampleSize must be >= 1, got %d", c.ClusterSampleSize)
	}

	return nil
}
