package notify

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scrypster/shardmind/internal/store"
)

func TestEventWriterWritesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	err := w.Write(SpoolEvent{
		Type:    store.EventShardCreated,
		ShardID: "shard:producer-a:abc123def456",
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "events"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}

	name := entries[0].Name()
	if !strings.HasSuffix(name, ".event") {
		t.Errorf("unexpected file name: %s", name)
	}
	if strings.ContainsAny(name[strings.IndexByte(name, '-')+1:], "/:") {
		t.Errorf("shard id should be sanitized in the file name: %s", name)
	}

	data, err := os.ReadFile(filepath.Join(dir, "events", name))
	if err != nil {
		t.Fatal(err)
	}
	var evt SpoolEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.Fatalf("event file should be valid JSON: %v", err)
	}
	if evt.Type != store.EventShardCreated || evt.ShardID != "shard:producer-a:abc123def456" {
		t.Errorf("unexpected event payload: %+v", evt)
	}
	if evt.Time == 0 {
		t.Errorf("event should carry a timestamp")
	}
}

func TestEventWriterRejectsInvalidEvents(t *testing.T) {
	w := NewEventWriter(t.TempDir())

	if err := w.Write(SpoolEvent{Type: "made_up_type"}); err == nil {
		t.Errorf("unknown event types should be rejected")
	}
	if err := w.Write(SpoolEvent{Type: store.EventShardCreated}); err == nil {
		t.Errorf("shard events without a shard id should be rejected")
	}
}

func TestEventWriterConsolidationEvent(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	err := w.Write(SpoolEvent{
		Type:          store.EventConsolidationCompleted,
		Consolidation: &ConsolidationSummary{Scored: 12, Pruned: 2},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "events"))
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "-store.event") {
		t.Errorf("store-level events should use the store placeholder, got %v", entries)
	}
}

func TestFromStoreCarriesConsolidationCounts(t *testing.T) {
	evt := FromStore(store.Event{
		Type: store.EventConsolidationCompleted,
		Time: time.Now(),
		Consolidation: &store.ConsolidationReport{
			Scored:       20,
			Strengthened: 3,
			Weakened:     5,
			PrunedCount:  4,
		},
	})

	if evt.Type != store.EventConsolidationCompleted {
		t.Errorf("unexpected type: %s", evt.Type)
	}
	if evt.Consolidation == nil {
		t.Fatal("consolidation events should carry the pass summary")
	}
	sum := *evt.Consolidation
	if sum.Scored != 20 || sum.Strengthened != 3 || sum.Weakened != 5 || sum.Pruned != 4 {
		t.Errorf("unexpected summary: %+v", sum)
	}
	if evt.Time == 0 {
		t.Errorf("spool event should carry a timestamp")
	}
}

func TestWatcherDrainsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)
	err := w.Write(SpoolEvent{Type: store.EventShardCreated, ShardID: "shard:user:aaa000000000"})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []string
	watcher := NewSpoolWatcher(dir, EventHandler{
		ShardCreated: func(shardID string) {
			mu.Lock()
			got = append(got, shardID)
			mu.Unlock()
		},
	})
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "shard:user:aaa000000000" {
		t.Errorf("existing events should be drained on start, got %v", got)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "events"))
	if len(entries) != 0 {
		t.Errorf("consumed event files should be removed, %d remain", len(entries))
	}
}

func TestWatcherSeesNewFiles(t *testing.T) {
	dir := t.TempDir()

	received := make(chan string, 1)
	watcher := NewSpoolWatcher(dir, EventHandler{
		ShardDeleted: func(shardID string) {
			received <- shardID
		},
	})
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	w := NewEventWriter(dir)
	if err := w.Write(SpoolEvent{Type: store.EventShardDeleted, ShardID: "shard:user:bbb000000000"}); err != nil {
		t.Fatal(err)
	}

	select {
	case id := <-received:
		if id != "shard:user:bbb000000000" {
			t.Errorf("unexpected shard id: %s", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the watcher to deliver the event")
	}
}

func TestWatcherDispatchesConsolidationSummary(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)
	err := w.Write(SpoolEvent{
		Type:          store.EventConsolidationCompleted,
		Consolidation: &ConsolidationSummary{Scored: 9, Strengthened: 2, Pruned: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var got []ConsolidationSummary
	watcher := NewSpoolWatcher(dir, EventHandler{
		Consolidated: func(sum ConsolidationSummary) {
			mu.Lock()
			got = append(got, sum)
			mu.Unlock()
		},
	})
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Scored != 9 || got[0].Strengthened != 2 || got[0].Pruned != 1 {
		t.Errorf("consolidation summary should survive the spool, got %v", got)
	}
}

func TestWatcherDiscardsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	eventsDir := filepath.Join(dir, "events")
	if err := os.MkdirAll(eventsDir, 0o700); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"1-garbage.event": "not json at all",
		"2-unknown.event": `{"type":"made_up_type","time":2}`,
		"3-no-id.event":   `{"type":"shard_created","time":3}`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(eventsDir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	dispatched := 0
	watcher := NewSpoolWatcher(dir, EventHandler{
		ShardCreated: func(string) {
			mu.Lock()
			dispatched++
			mu.Unlock()
		},
	})
	if err := watcher.Start(); err != nil {
		t.Fatal(err)
	}
	defer watcher.Stop()

	mu.Lock()
	if dispatched != 0 {
		t.Errorf("invalid events should not dispatch, got %d", dispatched)
	}
	mu.Unlock()

	entries, _ := os.ReadDir(eventsDir)
	if len(entries) != 0 {
		t.Errorf("invalid event files should still be removed, %d remain", len(entries))
	}
}
