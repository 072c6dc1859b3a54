package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// FeatureHashEmbedder maps text into a fixed-dimension vector using the
// hashing trick: each token is hashed into one of Dims buckets with a
// hash-derived sign, token counts accumulate in the buckets, and the
// result is unit-normalized.
//
// This carries no real semantic power, but it is deterministic, cheap,
// and gives high cosine similarity to texts sharing vocabulary, which is
// all the link and cluster heuristics require. It is the default
// Embedder; a model-backed provider can replace it transparently.
type FeatureHashEmbedder struct {
	dims int
}

// NewFeatureHashEmbedder creates a feature-hash embedder with the given
// dimension. Non-positive dims fall back to the system Dimension.
func NewFeatureHashEmbedder(dims int) *FeatureHashEmbedder {
	if dims <= 0 {
		dims = Dimension
	}
	return &FeatureHashEmbedder{dims: dims}
}

// Embed hashes the tokens of text into a unit vector. Empty input, or
// input with no extractable tokens, yields the zero vector.
func (e *FeatureHashEmbedder) Embed(_ context.Context, text string) Vector {
	vec := make(Vector, e.dims)

	for _, token := range Tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()

		bucket := int(sum % uint64(e.dims))
		// One spare hash bit decides the sign, which keeps unrelated
		// tokens from systematically inflating shared buckets.
		if (sum>>63)&1 == 1 {
			vec[bucket] -= 1
		} else {
			vec[bucket] += 1
		}
	}

	return normalize(vec)
}

// Dims returns the embedding dimension.
func (e *FeatureHashEmbedder) Dims() int { return e.dims }

// Tokenize lowercases text and splits it on non-alphanumeric runes,
// dropping tokens shorter than two runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
