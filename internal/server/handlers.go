package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scrypster/shardmind/internal/engine"
	"github.com/scrypster/shardmind/internal/store"
	"github.com/scrypster/shardmind/pkg/types"
)

// APIHandlers contains HTTP handlers for the REST API.
type APIHandlers struct {
	engine *engine.Engine
}

// NewAPIHandlers creates a new APIHandlers instance.
func NewAPIHandlers(eng *engine.Engine) *APIHandlers {
	return &APIHandlers{engine: eng}
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Shards int    `json:"shards"`
}

// CreateShardRequest is the ingestion request body.
type CreateShardRequest struct {
	Content   string  `json:"content"`
	Origin    string  `json:"origin"`
	Kind      string  `json:"kind"`
	Category  string  `json:"category"`
	Intensity float64 `json:"intensity"`
	Coherence float64 `json:"coherence"`
	Private   bool    `json:"private"`
}

// Health handles GET /healthz.
func (h *APIHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Healthy() {
		respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		return
	}
	respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Shards: h.engine.Stats().TotalShards,
	})
}

// CreateShard handles POST /api/shards - ingests a new shard.
func (h *APIHandlers) CreateShard(w http.ResponseWriter, r *http.Request) {
	var req CreateShardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	shard, err := h.engine.Create(r.Context(), store.CreateRequest{
		Content:   req.Content,
		Origin:    types.Origin(req.Origin),
		Kind:      types.Kind(req.Kind),
		Category:  types.Category(req.Category),
		Intensity: req.Intensity,
		Coherence: req.Coherence,
		Private:   req.Private,
	})
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, "invalid shard", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to create shard", err)
		return
	}

	respondJSON(w, http.StatusCreated, shard)
}

// GetShard handles GET /api/shards/{id}.
func (h *APIHandlers) GetShard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	shard, err := h.engine.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "shard not found", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to get shard", err)
		return
	}
	respondJSON(w, http.StatusOK, shard)
}

// DeleteShard handles DELETE /api/shards/{id}. Deletion is idempotent,
// so an unknown id still answers 204.
func (h *APIHandlers) DeleteShard(w http.ResponseWriter, r *http.Request) {
	h.engine.Delete(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

// Query handles GET /api/query - filtered, ranked retrieval.
//
// Supported query parameters: origin, kind, category, tags (comma
// separated, AND semantics), min_intensity, max_age (Go duration),
// include_private, text, min_similarity, limit.
func (h *APIHandlers) Query(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid query", err)
		return
	}

	results := h.engine.Query(r.Context(), f)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// CrossContext handles GET /api/context - cross-producer context
// retrieval. Parameters: text, origin (the asking producer), limit.
func (h *APIHandlers) CrossContext(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	origin := types.Origin(r.URL.Query().Get("origin"))
	if text == "" || origin == "" {
		respondError(w, http.StatusBadRequest, "text and origin are required", nil)
		return
	}

	limit := 5
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	results := h.engine.CrossContext(r.Context(), text, origin, limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// ArchiveSearch handles GET /api/archive/search - similarity lookup
// over shards pruned into the archive. Parameters: text, limit.
// Answers 503 when no searchable archive is configured.
func (h *APIHandlers) ArchiveSearch(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		respondError(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	results, err := h.engine.ArchiveSearch(r.Context(), text, limit)
	if err != nil {
		if errors.Is(err, engine.ErrArchiveUnavailable) {
			respondError(w, http.StatusServiceUnavailable, "archive search unavailable", err)
			return
		}
		respondError(w, http.StatusInternalServerError, "archive search failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
		"count":   len(results),
	})
}

// Stats handles GET /api/stats.
func (h *APIHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.Stats())
}

// Clusters handles GET /api/clusters.
func (h *APIHandlers) Clusters(w http.ResponseWriter, r *http.Request) {
	clusters := h.engine.Clusters()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"clusters": clusters,
		"count":    len(clusters),
	})
}

func filterFromQuery(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{
		Origin:   types.Origin(q.Get("origin")),
		Kind:     types.Kind(q.Get("kind")),
		Category: types.Category(q.Get("category")),
		Text:     q.Get("text"),
	}

	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				f.Tags = append(f.Tags, tag)
			}
		}
	}

	if v := q.Get("min_intensity"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("min_intensity: %w", err)
		}
		f.MinIntensity = parsed
	}

	if v := q.Get("max_age"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return f, fmt.Errorf("max_age: %w", err)
		}
		f.MaxAge = parsed
	}

	if v := q.Get("include_private"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("include_private: %w", err)
		}
		f.IncludePrivate = parsed
	}

	if v := q.Get("min_similarity"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("min_similarity: %w", err)
		}
		f.MinSimilarity = parsed
	}

	if v := q.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("limit: %w", err)
		}
		f.Limit = parsed
	}

	return f, nil
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; log and move on.
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, statusCode, resp)
}
