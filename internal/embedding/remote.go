package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// RemoteEmbedder calls an Ollama-compatible embedding endpoint. All
// requests pass through a circuit breaker; when the endpoint fails or
// the circuit is open, Embed degrades to the zero vector so ingestion
// is never blocked by embedding trouble.
type RemoteEmbedder struct {
	baseURL string
	model   string
	dims    int
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

type remoteRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type remoteResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewRemoteEmbedder creates an embedder backed by an HTTP embedding
// service. dims must match the model's output dimension; non-positive
// values fall back to the system Dimension.
func NewRemoteEmbedder(baseURL, model string, dims int) *RemoteEmbedder {
	if dims <= 0 {
		dims = Dimension
	}

	settings := gobreaker.Settings{
		Name:    "embedding",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("embedding: circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &RemoteEmbedder{
		baseURL: baseURL,
		model:   model,
		dims:    dims,
		client:  &http.Client{Timeout: 30 * time.Second},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Embed requests an embedding from the remote service. Any failure
// (transport error, non-200 status, dimension mismatch, open circuit)
// returns the zero vector.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) Vector {
	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.fetch(ctx, text)
	})
	if err != nil {
		log.Printf("embedding: remote embed failed, degrading to zero vector: %v", err)
		return make(Vector, e.dims)
	}

	vec := result.(Vector)
	if len(vec) != e.dims {
		log.Printf("embedding: remote returned %d dims, want %d; degrading to zero vector", len(vec), e.dims)
		return make(Vector, e.dims)
	}
	return normalize(vec)
}

// Dims returns the embedding dimension.
func (e *RemoteEmbedder) Dims() int { return e.dims }

func (e *RemoteEmbedder) fetch(ctx context.Context, text string) (Vector, error) {
	body, _ := json.Marshal(remoteRequest{Model: e.model, Prompt: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service error %d: %s", resp.StatusCode, string(b))
	}

	var result remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Embedding, nil
}
