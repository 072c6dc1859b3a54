// Package notify spools store events to the filesystem so external
// broadcast layers (webhook relays, dashboards) in other processes can
// consume them. Each event becomes one small JSON file; consumers
// delete files as they process them, which gives at-least-once
// delivery without any shared queue infrastructure.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/shardmind/internal/store"
)

// ConsolidationSummary carries the counts of a consolidation pass
// through the spool. Pruned shard snapshots stay out of it; the
// archive is the place for those.
type ConsolidationSummary struct {
	Scored       int `json:"scored"`
	Strengthened int `json:"strengthened"`
	Weakened     int `json:"weakened"`
	Pruned       int `json:"pruned"`
}

// SpoolEvent is the payload written to an event file.
type SpoolEvent struct {
	Type    store.EventType `json:"type"`
	ShardID string          `json:"shard_id,omitempty"`
	Time    int64           `json:"time"`

	// Consolidation is set for consolidation events.
	Consolidation *ConsolidationSummary `json:"consolidation,omitempty"`
}

// FromStore maps a store event to its spool shape. Shard payloads are
// reduced to the id; consolidation events carry the pass summary.
func FromStore(evt store.Event) SpoolEvent {
	se := SpoolEvent{
		Type:    evt.Type,
		ShardID: evt.ShardID,
		Time:    time.Now().UnixNano(),
	}
	if evt.Consolidation != nil {
		se.Consolidation = &ConsolidationSummary{
			Scored:       evt.Consolidation.Scored,
			Strengthened: evt.Consolidation.Strengthened,
			Weakened:     evt.Consolidation.Weakened,
			Pruned:       evt.Consolidation.PrunedCount,
		}
	}
	return se
}

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, "events")}
}

// Write spools one event. Safe to call concurrently. Errors are
// returned but not fatal; a full disk must not block ingestion.
func (w *EventWriter) Write(evt SpoolEvent) error {
	switch evt.Type {
	case store.EventShardCreated, store.EventShardDeleted:
		if evt.ShardID == "" {
			return fmt.Errorf("notify: %s event requires a shard id", evt.Type)
		}
	case store.EventConsolidationCompleted:
	default:
		return fmt.Errorf("notify: unknown event type %q", evt.Type)
	}
	if evt.Time == 0 {
		evt.Time = time.Now().UnixNano()
	}

	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	data, _ := json.Marshal(evt)
	filename := fmt.Sprintf("%d-%s.event", evt.Time, sanitizeID(evt.ShardID))
	path := filepath.Join(w.dir, filename)
	return os.WriteFile(path, data, 0o600)
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	if id == "" {
		return "store"
	}
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
