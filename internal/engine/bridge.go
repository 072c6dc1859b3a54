package engine

import (
	"context"

	"github.com/scrypster/shardmind/internal/store"
	"github.com/scrypster/shardmind/pkg/types"
)

const (
	// crossContextSimilarity is looser than link discovery: context
	// injection tolerates weaker matches than permanent links.
	crossContextSimilarity = 0.5

	// crossContextMinAccessibility keeps poorly consolidated shards out
	// of cross-producer context.
	crossContextMinAccessibility = 0.5
)

// CrossContext returns shards from the *other* thought producer that
// are semantically relevant to text, for context injection. Private
// shards are never included, regardless of origin, and only shards
// with accessibility above 0.5 qualify. Non-producer origins get no
// cross context.
func (e *Engine) CrossContext(ctx context.Context, text string, askingOrigin types.Origin, limit int) []types.Shard {
	other := types.OtherProducer(askingOrigin)
	if other == "" {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	// Fetch without a limit so the accessibility post-filter does not
	// starve the result; truncate afterwards.
	results := e.shards.Query(ctx, store.Filter{
		Origin:         other,
		Text:           text,
		MinSimilarity:  crossContextSimilarity,
		IncludePrivate: false,
	})

	out := make([]types.Shard, 0, limit)
	for _, sh := range results {
		if sh.Accessibility <= crossContextMinAccessibility {
			continue
		}
		out = append(out, sh)
		if len(out) == limit {
			break
		}
	}
	return out
}
