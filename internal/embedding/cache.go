package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoizes an inner Embedder with an LRU cache keyed on
// the input text. Embedders are deterministic by contract, so cached
// vectors never go stale.
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, Vector]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
// Non-positive sizes default to 4096 entries.
func NewCachedEmbedder(inner Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = 4096
	}
	// lru.New only fails on size <= 0, which is guarded above.
	cache, _ := lru.New[string, Vector](size)
	return &CachedEmbedder{inner: inner, cache: cache}
}

// Embed returns the cached vector for text, computing and caching it on
// a miss.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) Vector {
	if vec, ok := e.cache.Get(text); ok {
		return vec
	}
	vec := e.inner.Embed(ctx, text)
	e.cache.Add(text, vec)
	return vec
}

// Dims returns the inner embedder's dimension.
func (e *CachedEmbedder) Dims() int { return e.inner.Dims() }
