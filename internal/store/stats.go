package store

import (
	"github.com/scrypster/shardmind/pkg/types"
)

// Stats summarizes the store: counts per classification axis, average
// quality signals, cluster and link totals, and the age range of the
// stored shards.
func (s *Store) Stats() types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := types.Stats{
		TotalShards:       len(s.records),
		Capacity:          s.config.Capacity,
		ByOrigin:          make(map[types.Origin]int),
		ByKind:            make(map[types.Kind]int),
		ByCategory:        make(map[types.Category]int),
		ClusterCount:      len(s.clusters),
		ConsolidationRuns: s.consolidationRuns,
		LastConsolidation: s.lastConsolidation,
	}

	var coherenceSum, accessSum float64
	linkEnds := 0
	for _, rec := range s.records {
		stats.ByOrigin[rec.origin]++
		stats.ByKind[rec.kind]++
		stats.ByCategory[rec.category]++
		coherenceSum += rec.coherence
		accessSum += rec.accessibility()
		linkEnds += len(rec.links)

		if stats.OldestShard.IsZero() || rec.timestamp.Before(stats.OldestShard) {
			stats.OldestShard = rec.timestamp
		}
		if rec.timestamp.After(stats.NewestShard) {
			stats.NewestShard = rec.timestamp
		}
	}

	if len(s.records) > 0 {
		stats.AverageCoherence = coherenceSum / float64(len(s.records))
		stats.AverageAccess = accessSum / float64(len(s.records))
	}
	// Links are symmetric, so each link contributes two set entries.
	stats.TotalLinks = linkEnds / 2

	return stats
}
