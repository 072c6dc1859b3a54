package store

import (
	"context"
	"sort"
	"time"

	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/pkg/types"
)

// Filter describes a query. Every specified criterion must match
// (conjunctive semantics); zero values mean "no constraint". Filter
// values outside the closed sets are not an error, they simply match
// nothing.
type Filter struct {
	// Origin restricts results to one producer.
	Origin types.Origin

	// Kind restricts results to one epistemic type.
	Kind types.Kind

	// Category restricts results to one subject matter.
	Category types.Category

	// Tags requires every listed tag to be present (AND semantics).
	Tags []string

	// MinIntensity is the inclusive lower bound on intensity.
	MinIntensity float64

	// MaxAge excludes shards created more than this long ago. Zero
	// means no age bound.
	MaxAge time.Duration

	// IncludePrivate includes private shards. Off by default.
	IncludePrivate bool

	// Text, when non-empty, adds a semantic criterion: only shards
	// whose embedding similarity to Text reaches MinSimilarity match.
	Text string

	// MinSimilarity is the inclusive cosine similarity bound used with
	// Text.
	MinSimilarity float64

	// Limit truncates the ranked result list. Zero means no limit.
	Limit int
}

// Query returns the shards matching f, ranked by relevance descending
// with ties broken by descending timestamp. Every returned shard has
// its retrieval count incremented, its last-access time refreshed, and
// its accessibility boosted. An empty result is an empty slice, never
// an error.
func (s *Store) Query(ctx context.Context, f Filter) []types.Shard {
	// The query embedding is computed before taking the read lock;
	// embedders may do I/O.
	var queryVec embedding.Vector
	if f.Text != "" {
		queryVec = s.embedder.Embed(ctx, f.Text)
	}

	now := time.Now()

	s.mu.RLock()
	matches := s.collectLocked(f, queryVec, now)

	type ranked struct {
		rec   *record
		score float64
	}
	results := make([]ranked, 0, len(matches))
	for _, rec := range matches {
		results = append(results, ranked{rec: rec, score: s.relevanceLocked(rec, now)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].rec.timestamp.After(results[j].rec.timestamp)
	})

	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}

	out := make([]types.Shard, 0, len(results))
	for _, r := range results {
		// Retrieval side effects use atomics, so they are safe under
		// the read lock and visible to concurrent readers.
		r.rec.retrievals.Add(1)
		r.rec.lastAccessedNano.Store(now.UnixNano())
		r.rec.boostAccessibility(s.config.AccessBoost)
		out = append(out, r.rec.snapshot())
	}
	s.mu.RUnlock()

	return out
}

// collectLocked gathers the records matching f. Candidate narrowing
// intersects the origin, kind and tag index sets before any per-record
// checks; only when no indexed criterion is present does it scan the
// whole store. Caller must hold at least the read lock.
func (s *Store) collectLocked(f Filter, queryVec embedding.Vector, now time.Time) []*record {
	candidates, narrowed := s.narrowLocked(f)
	if narrowed && len(candidates) == 0 {
		return nil
	}

	var matches []*record
	check := func(rec *record) {
		if !s.matchesLocked(rec, f, queryVec, now) {
			return
		}
		matches = append(matches, rec)
	}

	if narrowed {
		for id := range candidates {
			if rec, ok := s.records[id]; ok {
				check(rec)
			} else {
				logConsistencyDefect("index references missing shard %s", id)
			}
		}
	} else {
		for _, rec := range s.records {
			check(rec)
		}
	}
	return matches
}

// narrowLocked intersects the applicable index sets. The second return
// reports whether any indexed criterion applied; when false the caller
// must fall back to a full scan.
func (s *Store) narrowLocked(f Filter) (idSet, bool) {
	var sets []idSet
	if f.Origin != "" {
		sets = append(sets, s.byOrigin[f.Origin])
	}
	if f.Kind != "" {
		sets = append(sets, s.byKind[f.Kind])
	}
	for _, tag := range f.Tags {
		sets = append(sets, s.byTag[tag])
	}
	if len(sets) == 0 {
		return nil, false
	}

	// Intersect starting from the smallest set.
	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })
	if len(sets[0]) == 0 {
		return nil, true
	}

	result := make(idSet, len(sets[0]))
	for id := range sets[0] {
		result[id] = struct{}{}
	}
	for _, set := range sets[1:] {
		for id := range result {
			if _, ok := set[id]; !ok {
				delete(result, id)
			}
		}
	}
	return result, true
}

func (s *Store) matchesLocked(rec *record, f Filter, queryVec embedding.Vector, now time.Time) bool {
	if rec.private && !f.IncludePrivate {
		return false
	}
	if f.Origin != "" && rec.origin != f.Origin {
		return false
	}
	if f.Kind != "" && rec.kind != f.Kind {
		return false
	}
	if f.Category != "" && rec.category != f.Category {
		return false
	}
	if rec.intensity < f.MinIntensity {
		return false
	}
	if f.MaxAge > 0 && now.Sub(rec.timestamp) > f.MaxAge {
		return false
	}
	for _, tag := range f.Tags {
		if !hasTag(rec.tagList, tag) {
			return false
		}
	}
	if f.Text != "" {
		sim := embedding.CosineSimilarity(queryVec, rec.embedding)
		if sim < f.MinSimilarity {
			return false
		}
	}
	return true
}

func hasTag(tagList []string, tag string) bool {
	for _, t := range tagList {
		if t == tag {
			return true
		}
	}
	return false
}
