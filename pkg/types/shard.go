package types

import "time"

// Shard represents a single memory shard, the atomic unit of storage.
// Content, classification, tags and embedding are fixed at ingestion;
// only the quality signals (Accessibility, RetrievalCount, LastAccessed)
// and the Links set evolve afterwards.
type Shard struct {
	// Core identification fields
	ID        string    `json:"id"`        // Unique identifier (format: shard:origin:slug)
	Content   string    `json:"content"`   // Raw shard content
	Timestamp time.Time `json:"timestamp"` // Creation time

	// Classification (immutable after creation)
	Origin   Origin   `json:"origin"`   // Which producer created this shard
	Kind     Kind     `json:"kind"`     // Epistemic type
	Category Category `json:"category"` // Subject matter

	// Scores supplied by the caller at creation
	Intensity float64 `json:"intensity"` // Emotional/attentional weight (0.0-1.0)
	Coherence float64 `json:"coherence"` // Internal consistency (0.0-1.0)

	// Derived at ingestion (immutable)
	Tags      []string  `json:"tags,omitempty"`      // Lexicon-derived topical labels
	Embedding []float32 `json:"embedding,omitempty"` // Unit-normalized feature vector

	// Quality signals (mutable)
	Accessibility  float64   `json:"accessibility"`   // How easily this shard is retrieved (0.0-1.0)
	RetrievalCount int       `json:"retrieval_count"` // Number of query hits
	LastAccessed   time.Time `json:"last_accessed"`   // Timestamp of most recent query hit

	// Links holds the IDs of similarity-linked shards. Link sets are kept
	// symmetric: if A links B then B links A. Entries are removed only when
	// the linked shard is deleted.
	Links []string `json:"links,omitempty"`

	// Private shards are excluded from cross-producer context and from
	// default query results.
	Private bool `json:"private"`
}

// Cluster groups thematically related shards. A cluster is created the
// first time no existing cluster matches a new shard, and destroyed when
// its last member is deleted.
type Cluster struct {
	ID          string    `json:"id"`           // Unique identifier (format: cluster:slug)
	Theme       string    `json:"theme"`        // Free-form label, seeded from the founding shard's first tag
	Members     []string  `json:"members"`      // Shard IDs in join order
	Strength    float64   `json:"strength"`     // Grows as matching shards join (0.0-1.0)
	LastUpdated time.Time `json:"last_updated"` // Last membership change
}

// Stats summarizes the current state of the store.
type Stats struct {
	TotalShards        int              `json:"total_shards"`
	Capacity           int              `json:"capacity"`
	ByOrigin           map[Origin]int   `json:"by_origin"`
	ByKind             map[Kind]int     `json:"by_kind"`
	ByCategory         map[Category]int `json:"by_category"`
	AverageCoherence   float64          `json:"average_coherence"`
	AverageAccess      float64          `json:"average_accessibility"`
	ClusterCount       int              `json:"cluster_count"`
	TotalLinks         int              `json:"total_links"`
	OldestShard        time.Time        `json:"oldest_shard,omitempty"`
	NewestShard        time.Time        `json:"newest_shard,omitempty"`
	ConsolidationRuns  int              `json:"consolidation_runs"`
	LastConsolidation  time.Time        `json:"last_consolidation,omitempty"`
}
