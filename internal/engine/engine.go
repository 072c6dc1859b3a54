// Package engine provides the lifecycle orchestrator for the shard
// store: it owns the periodic consolidation scheduler, optional
// snapshot persistence, archival of pruned shards, and the
// cross-producer context bridge.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/internal/store"
	"github.com/scrypster/shardmind/pkg/types"
)

// Snapshotter persists and restores full store snapshots. It is the
// "external persistence collaborator": the store itself never touches
// disk.
type Snapshotter interface {
	Save(ctx context.Context, shards []types.Shard, clusters []types.Cluster) error
	Load(ctx context.Context) (shards []types.Shard, clusters []types.Cluster, err error)
	Close() error
}

// Archiver receives shards evicted by capacity pruning before they are
// gone, so consolidation never silently loses material.
type Archiver interface {
	Archive(ctx context.Context, shards []types.Shard) error
}

// ArchiveSearcher is an Archiver that can also rank its archived shards
// by embedding similarity.
type ArchiveSearcher interface {
	Archiver
	SearchSimilar(ctx context.Context, vec embedding.Vector, limit int) ([]types.Shard, error)
}

// ErrArchiveUnavailable is returned by ArchiveSearch when no archiver
// is wired or the wired archiver cannot search.
var ErrArchiveUnavailable = errors.New("archive search unavailable")

// Engine coordinates the shard store and its background jobs.
// Lifecycle: New -> Start -> serve -> Shutdown.
type Engine struct {
	config      Config
	shards      *store.Store
	snapshotter Snapshotter
	archiver    Archiver

	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// consolidating guards against overlapping passes: a tick that
	// fires while a pass is still running is skipped.
	consolidating sync.Mutex
}

// New creates an Engine around the given store. snapshotter and
// archiver are optional; pass nil to disable persistence or archival.
func New(shards *store.Store, config Config, snapshotter Snapshotter, archiver Archiver) (*Engine, error) {
	if shards == nil {
		return nil, fmt.Errorf("shard store is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:      config,
		shards:      shards,
		snapshotter: snapshotter,
		archiver:    archiver,
	}, nil
}

// Start restores the latest snapshot (when a snapshotter is wired) and
// launches the consolidation and snapshot schedulers. It must be called
// before the engine serves traffic.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}

	log.Println("Starting shardmind engine...")

	if e.snapshotter != nil {
		shards, clusters, err := e.snapshotter.Load(ctx)
		if err != nil {
			log.Printf("Warning: snapshot restore failed, starting empty: %v", err)
		} else if len(shards) > 0 {
			if err := e.shards.Restore(shards, clusters); err != nil {
				log.Printf("Warning: snapshot restore rejected, starting empty: %v", err)
			} else {
				log.Printf("Restored %d shards and %d clusters from snapshot", len(shards), len(clusters))
			}
		}
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.wg.Add(1)
	go e.consolidationLoop(workerCtx)

	if e.snapshotter != nil {
		e.wg.Add(1)
		go e.snapshotLoop(workerCtx)
	}

	e.started = true
	log.Println("Engine started successfully")
	return nil
}

// Shutdown stops the background schedulers, takes a final snapshot,
// and closes the snapshotter. It blocks until the workers drain or ctx
// expires.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine not started")
	}
	e.shuttingDown = true
	cancel := e.cancel
	e.mu.Unlock()

	log.Println("Shutting down engine...")
	cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("WARNING: engine shutdown timed out: %v", ctx.Err())
	}

	if e.snapshotter != nil {
		if err := e.snapshot(ctx); err != nil {
			log.Printf("WARNING: final snapshot failed: %v", err)
		}
		if err := e.snapshotter.Close(); err != nil {
			log.Printf("WARNING: snapshotter close failed: %v", err)
		}
	}

	e.mu.Lock()
	e.started = false
	e.shuttingDown = false
	e.mu.Unlock()

	log.Println("Engine shut down successfully")
	return nil
}

// Create ingests a new shard. See store.Store.Create.
func (e *Engine) Create(ctx context.Context, req store.CreateRequest) (types.Shard, error) {
	if !e.running() {
		return types.Shard{}, fmt.Errorf("engine not started")
	}
	return e.shards.Create(ctx, req)
}

// Get retrieves a shard by id.
func (e *Engine) Get(id string) (types.Shard, error) {
	return e.shards.Get(id)
}

// Delete removes a shard. Deleting an unknown id is a no-op.
func (e *Engine) Delete(id string) {
	e.shards.Delete(id)
}

// Query runs a filtered, ranked query against the store.
func (e *Engine) Query(ctx context.Context, f store.Filter) []types.Shard {
	return e.shards.Query(ctx, f)
}

// Stats returns store statistics.
func (e *Engine) Stats() types.Stats {
	return e.shards.Stats()
}

// Clusters returns all theme clusters.
func (e *Engine) Clusters() []types.Cluster {
	return e.shards.Clusters()
}

// ArchiveSearch ranks previously pruned shards against text. The query
// is embedded through the store's own pipeline so archive vectors and
// query vectors share a space. Returns ErrArchiveUnavailable when the
// engine has no searchable archive.
func (e *Engine) ArchiveSearch(ctx context.Context, text string, limit int) ([]types.Shard, error) {
	if e.archiver == nil {
		return nil, ErrArchiveUnavailable
	}
	searcher, ok := e.archiver.(ArchiveSearcher)
	if !ok {
		return nil, ErrArchiveUnavailable
	}
	vec := e.shards.Embed(ctx, text)
	return searcher.SearchSimilar(ctx, vec, limit)
}

// Subscribe registers a handler for store events.
func (e *Engine) Subscribe(handler store.Handler) {
	e.shards.Subscribe(handler)
}

// Healthy reports whether the engine is started and the store is
// serviceable.
func (e *Engine) Healthy() bool {
	return e.running() && e.shards.Healthy()
}

// Consolidate runs one consolidation pass immediately and archives any
// pruned shards. Overlapping passes are prevented; a pass requested
// while another runs waits its turn.
func (e *Engine) Consolidate(ctx context.Context) store.ConsolidationReport {
	e.consolidating.Lock()
	defer e.consolidating.Unlock()

	report := e.shards.RunConsolidation(time.Now())
	if len(report.Pruned) > 0 {
		log.Printf("Consolidation pruned %d shards (capacity bound)", len(report.Pruned))
		if e.archiver != nil {
			if err := e.archiver.Archive(ctx, report.Pruned); err != nil {
				log.Printf("ERROR: failed to archive %d pruned shards: %v", len(report.Pruned), err)
			}
		}
	}
	return report
}

func (e *Engine) consolidationLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.ConsolidationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// TryLock implements skip-if-still-running: a slow pass
			// absorbs the ticks it overlaps instead of queueing them.
			if !e.consolidating.TryLock() {
				log.Println("Consolidation still running, skipping tick")
				continue
			}
			report := e.shards.RunConsolidation(time.Now())
			if len(report.Pruned) > 0 && e.archiver != nil {
				if err := e.archiver.Archive(ctx, report.Pruned); err != nil {
					log.Printf("ERROR: failed to archive %d pruned shards: %v", len(report.Pruned), err)
				}
			}
			e.consolidating.Unlock()
			log.Printf("Consolidation pass: scored=%d strengthened=%d weakened=%d pruned=%d in %s",
				report.Scored, report.Strengthened, report.Weakened, report.PrunedCount, report.Duration)
		}
	}
}

func (e *Engine) snapshotLoop(ctx context.Context) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.snapshot(ctx); err != nil {
				log.Printf("ERROR: periodic snapshot failed: %v", err)
			}
		}
	}
}

func (e *Engine) snapshot(ctx context.Context) error {
	shards, clusters := e.shards.Export()
	return e.snapshotter.Save(ctx, shards, clusters)
}

func (e *Engine) running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started && !e.shuttingDown
}
