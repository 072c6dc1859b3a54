package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/scrypster/shardmind/pkg/types"
)

// Export returns a consistent copy of every shard and cluster, ordered
// by id, for the snapshot persistence collaborator.
func (s *Store) Export() ([]types.Shard, []types.Cluster) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	shards := make([]types.Shard, 0, len(s.records))
	for _, rec := range s.records {
		shards = append(shards, rec.snapshot())
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].ID < shards[j].ID })

	clusters := make([]types.Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		clusters = append(clusters, c.snapshot())
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	return shards, clusters
}

// Restore replaces the store's contents with a previously exported
// snapshot, rebuilding all indices and link sets. Links referencing
// shards missing from the snapshot are dropped rather than restored
// dangling. Restore must run before the store starts serving.
func (s *Store) Restore(shards []types.Shard, clusters []types.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]*record, len(shards))
	for i := range shards {
		sh := &shards[i]
		if _, dup := records[sh.ID]; dup {
			return fmt.Errorf("%w: duplicate shard id %s in snapshot", ErrInvalidInput, sh.ID)
		}

		rec := &record{
			id:        sh.ID,
			content:   sh.Content,
			timestamp: sh.Timestamp,
			origin:    sh.Origin,
			kind:      sh.Kind,
			category:  sh.Category,
			intensity: sh.Intensity,
			coherence: sh.Coherence,
			tagList:   append([]string(nil), sh.Tags...),
			embedding: append([]float32(nil), sh.Embedding...),
			private:   sh.Private,
			links:     make(idSet, len(sh.Links)),
		}
		rec.setAccessibility(clamp01(sh.Accessibility))
		rec.retrievals.Store(int64(sh.RetrievalCount))
		if !sh.LastAccessed.IsZero() {
			rec.lastAccessedNano.Store(sh.LastAccessed.UnixNano())
		}
		records[sh.ID] = rec
	}

	// Rebuild link sets, enforcing symmetry and referential integrity.
	for i := range shards {
		rec := records[shards[i].ID]
		for _, peerID := range shards[i].Links {
			peer, ok := records[peerID]
			if !ok || peerID == rec.id {
				continue
			}
			rec.links[peerID] = struct{}{}
			peer.links[rec.id] = struct{}{}
		}
	}

	restoredClusters := make(map[string]*cluster, len(clusters))
	for i := range clusters {
		c := &clusters[i]
		members := make([]string, 0, len(c.Members))
		memberSet := make(idSet, len(c.Members))
		tagCounts := make(map[string]int)
		for _, memberID := range c.Members {
			rec, ok := records[memberID]
			if !ok {
				continue
			}
			members = append(members, memberID)
			memberSet[memberID] = struct{}{}
			for _, tag := range rec.tagList {
				tagCounts[tag]++
			}
		}
		if len(members) == 0 {
			continue
		}
		restoredClusters[c.ID] = &cluster{
			id:          c.ID,
			theme:       c.Theme,
			members:     members,
			memberSet:   memberSet,
			tagCounts:   tagCounts,
			strength:    math.Min(math.Max(c.Strength, 0), 1),
			lastUpdated: c.LastUpdated,
		}
	}

	s.records = records
	s.byOrigin = make(map[types.Origin]idSet)
	s.byKind = make(map[types.Kind]idSet)
	s.byTag = make(map[string]idSet)
	for _, rec := range records {
		indexAdd(s.byOrigin, rec.origin, rec.id)
		indexAdd(s.byKind, rec.kind, rec.id)
		for _, tag := range rec.tagList {
			indexAdd(s.byTag, tag, rec.id)
		}
	}
	s.clusters = restoredClusters

	return nil
}
