package store

import (
	"math"
	"time"

	"github.com/scrypster/shardmind/pkg/types"
)

const (
	// relevanceDecayRate is the per-day exponential decay applied to
	// the recency component of the relevance score.
	relevanceDecayRate = 0.001

	// retrievalSaturation converts a retrieval count into a [0, 1]
	// component: each hit is worth 0.1 until ten hits saturate it.
	retrievalSaturation = 0.1
)

// RelevanceScore is the single ranking key for query results:
//
//	relevance = 0.3*recency + 0.2*intensity + 0.2*coherence
//	          + 0.15*min(retrievalCount*0.1, 1.0) + 0.15*accessibility
//
// where recency = exp(-daysSinceCreation * 0.001). The result is in
// [0.0, 1.0] because every component is.
func RelevanceScore(sh *types.Shard, now time.Time) float64 {
	days := now.Sub(sh.Timestamp).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	recency := math.Exp(-days * relevanceDecayRate)
	retrieval := min(float64(sh.RetrievalCount)*retrievalSaturation, 1.0)

	return 0.3*recency +
		0.2*sh.Intensity +
		0.2*sh.Coherence +
		0.15*retrieval +
		0.15*sh.Accessibility
}

// relevanceLocked scores an internal record without building a full
// snapshot. Caller must hold at least the read lock.
func (s *Store) relevanceLocked(rec *record, now time.Time) float64 {
	days := now.Sub(rec.timestamp).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	recency := math.Exp(-days * relevanceDecayRate)
	retrieval := min(float64(rec.retrievals.Load())*retrievalSaturation, 1.0)

	return 0.3*recency +
		0.2*rec.intensity +
		0.2*rec.coherence +
		0.15*retrieval +
		0.15*rec.accessibility()
}
