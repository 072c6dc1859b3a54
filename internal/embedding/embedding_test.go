package embedding

import (
	"context"
	"math"
	"testing"
)

func TestFeatureHashEmbedder_Deterministic(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)
	a := e.Embed(context.Background(), "the ocean remembers every wave")
	b := e.Embed(context.Background(), "the ocean remembers every wave")

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestFeatureHashEmbedder_UnitNorm(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)
	vec := e.Embed(context.Background(), "music and memory and time")

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 0.001 {
		t.Errorf("embedding should be unit-normalized, got norm %f", math.Sqrt(norm))
	}
}

func TestFeatureHashEmbedder_EmptyInput(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)

	for _, text := range []string{"", "   ", "a !"} {
		vec := e.Embed(context.Background(), text)
		if len(vec) != Dimension {
			t.Errorf("zero vector should still have %d dims, got %d", Dimension, len(vec))
		}
		if !IsZero(vec) {
			t.Errorf("input %q with no tokens should embed to the zero vector", text)
		}
	}
}

func TestFeatureHashEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)
	ctx := context.Background()

	base := e.Embed(ctx, "dreaming about the ocean at night")
	near := e.Embed(ctx, "dreaming about the ocean in the morning")
	far := e.Embed(ctx, "quarterly revenue projections spreadsheet")

	if CosineSimilarity(base, near) <= CosineSimilarity(base, far) {
		t.Errorf("shared vocabulary should score higher: near=%f far=%f",
			CosineSimilarity(base, near), CosineSimilarity(base, far))
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)
	ctx := context.Background()

	a := e.Embed(ctx, "the rain fell on the trees")
	b := e.Embed(ctx, "rain and wind in the forest")

	if math.Abs(CosineSimilarity(a, b)-CosineSimilarity(b, a)) > 1e-9 {
		t.Errorf("cosine similarity must be symmetric")
	}
}

func TestCosineSimilarity_Identity(t *testing.T) {
	e := NewFeatureHashEmbedder(Dimension)
	vec := e.Embed(context.Background(), "identical text")

	if math.Abs(CosineSimilarity(vec, vec)-1.0) > 0.001 {
		t.Errorf("self-similarity should be 1.0, got %f", CosineSimilarity(vec, vec))
	}
}

func TestCosineSimilarity_ZeroAndMismatched(t *testing.T) {
	a := make(Vector, Dimension)
	b := NewFeatureHashEmbedder(Dimension).Embed(context.Background(), "something")

	if CosineSimilarity(a, b) != 0 {
		t.Errorf("zero vector should have zero similarity to everything")
	}
	if CosineSimilarity(b[:10], b) != 0 {
		t.Errorf("mismatched dimensions should yield 0")
	}
	if CosineSimilarity(nil, nil) != 0 {
		t.Errorf("empty vectors should yield 0")
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The rain, falling softly. I wonder?")
	expected := []string{"the", "rain", "falling", "softly", "wonder"}

	if len(tokens) != len(expected) {
		t.Fatalf("expected %d tokens, got %d: %v", len(expected), len(tokens), tokens)
	}
	for i, tok := range expected {
		if tokens[i] != tok {
			t.Errorf("token %d: expected %q, got %q", i, tok, tokens[i])
		}
	}
}

func TestTokenize_DropsShortTokens(t *testing.T) {
	tokens := Tokenize("a b cd")
	if len(tokens) != 1 || tokens[0] != "cd" {
		t.Errorf("single-rune tokens should be dropped, got %v", tokens)
	}
}
