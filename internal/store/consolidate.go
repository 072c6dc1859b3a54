package store

import (
	"math"
	"sort"
	"time"

	"github.com/scrypster/shardmind/pkg/types"
)

const (
	// strengthenThreshold and weakenThreshold bound the consolidation
	// score bands that adjust accessibility.
	strengthenThreshold = 0.7
	weakenThreshold     = 0.3

	// accessibilityStep is the per-pass accessibility adjustment.
	accessibilityStep = 0.1

	// accessibilityFloor is the minimum accessibility a weakened shard
	// can reach; shards are never made fully unreachable by decay.
	accessibilityFloor = 0.1

	// coherenceNudge is the small coherence raise granted to strongly
	// consolidated shards.
	coherenceNudge = 0.02

	// creationDecayRate and accessDecayRate are the per-day decay
	// constants in the consolidation score.
	creationDecayRate = 0.1
	accessDecayRate   = 0.2
)

// ConsolidationReport summarizes one consolidation pass.
type ConsolidationReport struct {
	Scored       int           `json:"scored"`
	Strengthened int           `json:"strengthened"`
	Weakened     int           `json:"weakened"`
	PrunedCount  int           `json:"pruned_count"`
	Duration     time.Duration `json:"duration"`

	// Pruned carries full snapshots of the evicted shards so callers
	// can archive them before they are gone.
	Pruned []types.Shard `json:"-"`
}

// ConsolidationScore rates how firmly a shard is established:
//
//	score = 0.3*intensity + 0.3*min(retrievals*0.1, 1)
//	      + 0.2*min(links*0.2, 1) + 0.1*exp(-daysSinceCreation*0.1)
//	      + 0.1*exp(-daysSinceAccess*0.2)
//
// High scores strengthen accessibility; low scores weaken it.
func ConsolidationScore(sh *types.Shard, now time.Time) float64 {
	daysSinceCreation := now.Sub(sh.Timestamp).Hours() / 24.0
	if daysSinceCreation < 0 {
		daysSinceCreation = 0
	}
	lastAccess := sh.LastAccessed
	if lastAccess.IsZero() {
		lastAccess = sh.Timestamp
	}
	daysSinceAccess := now.Sub(lastAccess).Hours() / 24.0
	if daysSinceAccess < 0 {
		daysSinceAccess = 0
	}

	retrieval := min(float64(sh.RetrievalCount)*retrievalSaturation, 1.0)
	linkage := min(float64(len(sh.Links))*0.2, 1.0)

	return 0.3*sh.Intensity +
		0.3*retrieval +
		0.2*linkage +
		0.1*math.Exp(-daysSinceCreation*creationDecayRate) +
		0.1*math.Exp(-daysSinceAccess*accessDecayRate)
}

// RunConsolidation executes one full consolidation pass under the
// write lock: every shard is scored, accessibility (and, for strong
// shards, coherence) is adjusted, and if the store exceeds capacity the
// lowest-relevance shards are pruned until the bound holds. Subscribers
// are notified after the pass completes.
func (s *Store) RunConsolidation(now time.Time) ConsolidationReport {
	start := time.Now()
	var report ConsolidationReport

	s.mu.Lock()

	for _, rec := range s.records {
		snap := rec.snapshot()
		score := ConsolidationScore(&snap, now)
		report.Scored++

		switch {
		case score > strengthenThreshold:
			rec.boostAccessibility(accessibilityStep)
			rec.coherence = min(rec.coherence+coherenceNudge, 1.0)
			report.Strengthened++
		case score < weakenThreshold:
			rec.setAccessibility(math.Max(rec.accessibility()-accessibilityStep, accessibilityFloor))
			report.Weakened++
		}
	}

	if len(s.records) > s.config.Capacity {
		report.Pruned = s.pruneLocked(len(s.records)-s.config.Capacity, now)
		report.PrunedCount = len(report.Pruned)
	}

	s.consolidationRuns++
	s.lastConsolidation = now

	s.mu.Unlock()

	report.Duration = time.Since(start)
	s.publish(Event{Type: EventConsolidationCompleted, Time: now, Consolidation: &report})

	return report
}

// pruneLocked deletes the n lowest-relevance shards and returns their
// snapshots in eviction order. Caller must hold the write lock.
func (s *Store) pruneLocked(n int, now time.Time) []types.Shard {
	type scored struct {
		rec   *record
		score float64
	}

	all := make([]scored, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, scored{rec: rec, score: s.relevanceLocked(rec, now)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score < all[j].score
		}
		// Oldest first among equals.
		return all[i].rec.timestamp.Before(all[j].rec.timestamp)
	})

	if n > len(all) {
		n = len(all)
	}

	pruned := make([]types.Shard, 0, n)
	for _, victim := range all[:n] {
		pruned = append(pruned, victim.rec.snapshot())
		s.deleteLocked(victim.rec.id)
	}
	return pruned
}
