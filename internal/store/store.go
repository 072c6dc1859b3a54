// Package store implements the canonical in-memory shard store: the
// primary id -> shard map, the secondary indices (origin, kind, tag),
// similarity links, theme clusters, the query engine, and the
// consolidation pass.
//
// Concurrency follows a single-writer discipline: Create, Delete,
// Restore and RunConsolidation serialize on the write lock; queries and
// stats run concurrently under the read lock. The per-shard quality
// signals touched by query hits (retrieval count, last access,
// accessibility) are atomics so that read-with-side-effect retrieval
// does not need the write lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/internal/tags"
	"github.com/scrypster/shardmind/pkg/types"
)

var (
	// ErrNotFound indicates that the requested shard was not found.
	ErrNotFound = errors.New("shard not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// idSet is a secondary index bucket.
type idSet map[string]struct{}

// record is the internal mutable representation of a shard. The
// immutable fields are plain; the link set is guarded by the store
// lock; the quality signals are atomics so query hits can update them
// under the read lock.
type record struct {
	id        string
	content   string
	timestamp time.Time
	origin    types.Origin
	kind      types.Kind
	category  types.Category
	intensity float64
	coherence float64 // mutated only by consolidation, under the write lock
	tagList   []string
	embedding embedding.Vector
	private   bool

	links idSet

	accessibilityBits atomic.Uint64 // float64 bits
	retrievals        atomic.Int64
	lastAccessedNano  atomic.Int64
}

func (r *record) accessibility() float64 {
	return math.Float64frombits(r.accessibilityBits.Load())
}

func (r *record) setAccessibility(v float64) {
	r.accessibilityBits.Store(math.Float64bits(v))
}

// boostAccessibility raises accessibility by step, capped at 1.0, with
// a CAS loop so concurrent query hits never lose an update.
func (r *record) boostAccessibility(step float64) {
	for {
		old := r.accessibilityBits.Load()
		v := math.Min(math.Float64frombits(old)+step, 1.0)
		if r.accessibilityBits.CompareAndSwap(old, math.Float64bits(v)) {
			return
		}
	}
}

func (r *record) lastAccessed() time.Time {
	nano := r.lastAccessedNano.Load()
	if nano == 0 {
		return r.timestamp
	}
	return time.Unix(0, nano)
}

// snapshot copies the record into the exported shard type. Callers must
// hold at least the read lock (the link set is not atomic).
func (r *record) snapshot() types.Shard {
	links := make([]string, 0, len(r.links))
	for id := range r.links {
		links = append(links, id)
	}
	sort.Strings(links)

	return types.Shard{
		ID:             r.id,
		Content:        r.content,
		Timestamp:      r.timestamp,
		Origin:         r.origin,
		Kind:           r.kind,
		Category:       r.category,
		Intensity:      r.intensity,
		Coherence:      r.coherence,
		Tags:           append([]string(nil), r.tagList...),
		Embedding:      append(embedding.Vector(nil), r.embedding...),
		Accessibility:  r.accessibility(),
		RetrievalCount: int(r.retrievals.Load()),
		LastAccessed:   r.lastAccessed(),
		Links:          links,
		Private:        r.private,
	}
}

// Store is the unified semantic memory store.
type Store struct {
	mu sync.RWMutex

	config   Config
	embedder embedding.Embedder

	records  map[string]*record
	byOrigin map[types.Origin]idSet
	byKind   map[types.Kind]idSet
	byTag    map[string]idSet
	clusters map[string]*cluster

	consolidationRuns int
	lastConsolidation time.Time

	subMu       sync.RWMutex
	subscribers []Handler
}

// New creates a Store with the given embedder and configuration.
func New(embedder embedding.Embedder, config Config) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidInput)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		config:   config,
		embedder: embedder,
		records:  make(map[string]*record),
		byOrigin: make(map[types.Origin]idSet),
		byKind:   make(map[types.Kind]idSet),
		byTag:    make(map[string]idSet),
		clusters: make(map[string]*cluster),
	}, nil
}

// CreateRequest carries the caller-supplied fields for a new shard.
// Intensity and coherence come from external scoring and are clamped
// to [0, 1].
type CreateRequest struct {
	Content   string
	Origin    types.Origin
	Kind      types.Kind
	Category  types.Category
	Intensity float64
	Coherence float64
	Private   bool
}

// Create ingests a new shard: it embeds and tags the content, inserts
// the shard into the primary map and all indices, discovers similarity
// links, assigns a theme cluster, and notifies subscribers. The
// returned shard reflects the state at the end of ingestion.
func (s *Store) Create(ctx context.Context, req CreateRequest) (types.Shard, error) {
	if strings.TrimSpace(req.Content) == "" {
		return types.Shard{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if !types.IsValidOrigin(req.Origin) {
		return types.Shard{}, fmt.Errorf("%w: unknown origin %q", ErrInvalidInput, req.Origin)
	}
	if !types.IsValidKind(req.Kind) {
		return types.Shard{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidInput, req.Kind)
	}
	if !types.IsValidCategory(req.Category) {
		return types.Shard{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, req.Category)
	}

	// Embedding and tag extraction are pure over the content, so they
	// run outside the write lock.
	vec := s.embedder.Embed(ctx, req.Content)
	tagList := tags.Extract(req.Content, string(req.Origin))

	rec := &record{
		id:        GenerateShardID(req.Origin),
		content:   req.Content,
		timestamp: time.Now(),
		origin:    req.Origin,
		kind:      req.Kind,
		category:  req.Category,
		intensity: clamp01(req.Intensity),
		coherence: clamp01(req.Coherence),
		tagList:   tagList,
		embedding: vec,
		private:   req.Private,
		links:     make(idSet),
	}
	rec.setAccessibility(s.config.InitialAccessibility)

	s.mu.Lock()
	s.insertLocked(rec)
	s.discoverLinksLocked(rec)
	s.assignClusterLocked(rec, rec.timestamp)
	snap := rec.snapshot()
	s.mu.Unlock()

	s.publish(Event{Type: EventShardCreated, ShardID: snap.ID, Shard: &snap, Time: snap.Timestamp})

	return snap, nil
}

// Get returns the shard with the given id, or ErrNotFound.
func (s *Store) Get(id string) (types.Shard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return types.Shard{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.snapshot(), nil
}

// Delete removes the shard with the given id from the primary map, all
// indices, its cluster (destroying the cluster if it empties), and from
// every peer's link set. Deleting a nonexistent id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	deleted := s.deleteLocked(id)
	s.mu.Unlock()

	if deleted {
		s.publish(Event{Type: EventShardDeleted, ShardID: id, Time: time.Now()})
	}
}

// Size returns the number of shards currently stored.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Embed runs text through the store's embedding pipeline. Collaborators
// that rank against store vectors (the archive search path) must use
// this so both sides share one vector space.
func (s *Store) Embed(ctx context.Context, text string) embedding.Vector {
	return s.embedder.Embed(ctx, text)
}

// Healthy reports whether the store is initialized and consistent
// enough to serve: the primary map exists and size is non-negative.
func (s *Store) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records != nil
}

// insertLocked adds rec to the primary map and all secondary indices.
func (s *Store) insertLocked(rec *record) {
	s.records[rec.id] = rec
	indexAdd(s.byOrigin, rec.origin, rec.id)
	indexAdd(s.byKind, rec.kind, rec.id)
	for _, tag := range rec.tagList {
		indexAdd(s.byTag, tag, rec.id)
	}
}

// deleteLocked removes the shard and scrubs every derived structure.
// The cleanup order does not matter because everything happens inside
// one exclusive section; no reader can observe a half-deleted shard.
func (s *Store) deleteLocked(id string) bool {
	rec, ok := s.records[id]
	if !ok {
		return false
	}

	delete(s.records, id)
	indexRemove(s.byOrigin, rec.origin, id)
	indexRemove(s.byKind, rec.kind, id)
	for _, tag := range rec.tagList {
		indexRemove(s.byTag, tag, id)
	}

	// Cascading link removal keeps every remaining link set free of
	// dangling ids.
	for peerID := range rec.links {
		if peer, ok := s.records[peerID]; ok {
			delete(peer.links, id)
		}
	}

	s.removeFromClusterLocked(id)
	return true
}

func indexAdd[K comparable](index map[K]idSet, key K, id string) {
	set, ok := index[key]
	if !ok {
		set = make(idSet)
		index[key] = set
	}
	set[id] = struct{}{}
}

func indexRemove[K comparable](index map[K]idSet, key K, id string) {
	if set, ok := index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// GenerateShardID generates a unique shard ID in the format
// shard:origin:slug.
func GenerateShardID(origin types.Origin) string {
	slug := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("shard:%s:%s", origin, slug)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// logConsistencyDefect reports an invariant violation. These are
// prevented by construction; hitting one is a defect, not a runtime
// condition to recover from.
func logConsistencyDefect(format string, args ...interface{}) {
	log.Printf("ERROR: store consistency defect: "+format, args...)
}
