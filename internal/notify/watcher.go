package notify

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/scrypster/shardmind/internal/store"
)

// EventHandler receives decoded spool events, one func per event type.
// Nil funcs skip their type.
type EventHandler struct {
	ShardCreated func(shardID string)
	ShardDeleted func(shardID string)
	Consolidated func(sum ConsolidationSummary)
}

// SpoolWatcher consumes the event spool, dispatching each file to the
// handler for its event type. Processed files are removed, so run at
// most one consumer per spool directory.
type SpoolWatcher struct {
	dir     string
	handler EventHandler
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewSpoolWatcher creates a watcher for {dataPath}/events/.
func NewSpoolWatcher(dataPath string, handler EventHandler) *SpoolWatcher {
	return &SpoolWatcher{
		dir:     filepath.Join(dataPath, "events"),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start begins watching. Events already spooled are consumed first, in
// write order, then new files are dispatched as they appear. Call
// Stop() to clean up.
func (sw *SpoolWatcher) Start() error {
	if err := os.MkdirAll(sw.dir, 0o700); err != nil {
		return err
	}

	sw.drainExisting()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(sw.dir); err != nil {
		_ = w.Close()
		return err
	}
	sw.watcher = w

	go sw.loop()
	log.Printf("notify: watching %s for store events", sw.dir)
	return nil
}

// Stop shuts down the watcher.
func (sw *SpoolWatcher) Stop() {
	if sw.watcher != nil {
		_ = sw.watcher.Close()
	}
	<-sw.done
}

func (sw *SpoolWatcher) loop() {
	defer close(sw.done)
	for {
		select {
		case evt, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".event") {
				sw.consume(evt.Name)
			}
		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

// drainExisting consumes files left from before this watcher started.
// Spool names are prefixed with the write timestamp, so the directory
// listing's name order is write order.
func (sw *SpoolWatcher) drainExisting() {
	entries, err := os.ReadDir(sw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".event") {
			sw.consume(filepath.Join(sw.dir, entry.Name()))
		}
	}
}

func (sw *SpoolWatcher) consume(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}
	_ = os.Remove(path)

	var evt SpoolEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Printf("notify: discarding malformed event file %s: %v", filepath.Base(path), err)
		return
	}
	sw.dispatch(evt)
}

// dispatch validates the event against its type and routes it to the
// matching handler func.
func (sw *SpoolWatcher) dispatch(evt SpoolEvent) {
	switch evt.Type {
	case store.EventShardCreated:
		if evt.ShardID == "" {
			log.Printf("notify: discarding %s event without a shard id", evt.Type)
			return
		}
		if sw.handler.ShardCreated != nil {
			sw.handler.ShardCreated(evt.ShardID)
		}
	case store.EventShardDeleted:
		if evt.ShardID == "" {
			log.Printf("notify: discarding %s event without a shard id", evt.Type)
			return
		}
		if sw.handler.ShardDeleted != nil {
			sw.handler.ShardDeleted(evt.ShardID)
		}
	case store.EventConsolidationCompleted:
		if sw.handler.Consolidated != nil {
			var sum ConsolidationSummary
			if evt.Consolidation != nil {
				sum = *evt.Consolidation
			}
			sw.handler.Consolidated(sum)
		}
	default:
		log.Printf("notify: discarding event of unknown type %q", evt.Type)
	}
}
