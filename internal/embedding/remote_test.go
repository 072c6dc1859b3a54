package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteEmbedder_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Model != "test-model" || req.Prompt != "some text" {
			t.Errorf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(remoteResponse{Embedding: []float32{3, 4, 0, 0}})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(srv.URL, "test-model", 4)
	vec := e.Embed(context.Background(), "some text")

	// The remote result is normalized: (3,4) has norm 5.
	if math.Abs(float64(vec[0])-0.6) > 0.001 || math.Abs(float64(vec[1])-0.8) > 0.001 {
		t.Errorf("expected normalized vector, got %v", vec)
	}
}

func TestRemoteEmbedder_ServerErrorDegradesToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(srv.URL, "test-model", 8)
	vec := e.Embed(context.Background(), "anything")

	if len(vec) != 8 || !IsZero(vec) {
		t.Errorf("failures should degrade to the zero vector, got %v", vec)
	}
}

func TestRemoteEmbedder_DimensionMismatchDegradesToZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(remoteResponse{Embedding: []float32{1, 2}})
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(srv.URL, "test-model", 4)
	vec := e.Embed(context.Background(), "anything")

	if !IsZero(vec) {
		t.Errorf("dimension mismatch should degrade to the zero vector, got %v", vec)
	}
}

func TestRemoteEmbedder_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewRemoteEmbedder(srv.URL, "test-model", 4)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		e.Embed(ctx, "anything")
	}

	// The breaker trips after three consecutive failures; subsequent
	// calls fail fast without reaching the server.
	if calls != 3 {
		t.Errorf("expected 3 upstream calls before the circuit opened, got %d", calls)
	}
}

func TestRemoteEmbedder_UnreachableHost(t *testing.T) {
	e := NewRemoteEmbedder("http://127.0.0.1:1", "test-model", 4)
	vec := e.Embed(context.Background(), "anything")

	if len(vec) != 4 || !IsZero(vec) {
		t.Errorf("unreachable service should degrade to the zero vector")
	}
}
