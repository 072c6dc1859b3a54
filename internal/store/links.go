package store

import (
	"sort"

	"github.com/scrypster/shardmind/internal/embedding"
)

// linkCandidate pairs a candidate shard with its similarity to the new
// shard.
type linkCandidate struct {
	id         string
	similarity float64
}

// discoverLinksLocked finds existing shards similar to rec and creates
// bidirectional links. Candidates are limited to shards sharing at
// least one tag with rec, which bounds the scan without a full pass
// over the store. Links are made to at most MaxLinksPerShard candidates
// whose cosine similarity exceeds LinkThreshold, best first; equal
// similarities break ties by ascending shard id so discovery is
// deterministic for a given store state.
//
// Caller must hold the write lock.
func (s *Store) discoverLinksLocked(rec *record) {
	if s.config.MaxLinksPerShard == 0 || embedding.IsZero(rec.embedding) {
		return
	}

	seen := make(idSet)
	var candidates []linkCandidate
	for _, tag := range rec.tagList {
		for id := range s.byTag[tag] {
			if id == rec.id {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			peer := s.records[id]
			if peer == nil {
				logConsistencyDefect("tag index %q references missing shard %s", tag, id)
				continue
			}

			sim := embedding.CosineSimilarity(rec.embedding, peer.embedding)
			if sim > s.config.LinkThreshold {
				candidates = append(candidates, linkCandidate{id: id, similarity: sim})
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].id < candidates[j].id
	})

	if len(candidates) > s.config.MaxLinksPerShard {
		candidates = candidates[:s.config.MaxLinksPerShard]
	}

	for _, c := range candidates {
		peer := s.records[c.id]
		rec.links[c.id] = struct{}{}
		peer.links[rec.id] = struct{}{}
	}
}
