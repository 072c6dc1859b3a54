// Package embedding provides a pluggable interface for text embedding
// providers. The default provider is a deterministic feature hash that
// needs no external service; a remote HTTP provider can be substituted
// without changing any consumer.
package embedding

import (
	"context"
	"math"
)

// Dimension is the fixed embedding size used across the system.
const Dimension = 384

// Vector is a float32 embedding vector.
type Vector = []float32

// Embedder generates embedding vectors from text.
//
// Implementations must be deterministic for identical input and must
// return a unit-normalized vector. On any internal failure they return
// the zero vector rather than an error; the zero vector has zero
// similarity to everything, so degraded embeddings simply drop out of
// similarity-based features.
type Embedder interface {
	Embed(ctx context.Context, text string) Vector
	Dims() int
}

// CosineSimilarity computes cosine similarity between two vectors.
// Mismatched or zero-norm vectors yield 0.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// IsZero reports whether vec carries no signal.
func IsZero(vec Vector) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// normalize scales vec to unit length in place. The zero vector is
// returned unchanged.
func normalize(vec Vector) Vector {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
