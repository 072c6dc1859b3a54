package store

import (
	"time"

	"github.com/scrypster/shardmind/pkg/types"
)

// EventType identifies a store notification.
type EventType string

const (
	// EventShardCreated fires after a shard has been fully ingested
	// (indexed, linked, clustered).
	EventShardCreated EventType = "shard_created"

	// EventShardDeleted fires after a shard and all references to it
	// have been removed.
	EventShardDeleted EventType = "shard_deleted"

	// EventConsolidationCompleted fires after every consolidation pass.
	EventConsolidationCompleted EventType = "consolidation_completed"
)

// Event is the payload delivered to subscribers.
type Event struct {
	Type    EventType `json:"type"`
	ShardID string    `json:"shard_id,omitempty"`
	Time    time.Time `json:"time"`

	// Shard is set for EventShardCreated.
	Shard *types.Shard `json:"shard,omitempty"`

	// Consolidation is set for EventConsolidationCompleted.
	Consolidation *ConsolidationReport `json:"consolidation,omitempty"`
}

// Handler receives store events. Handlers run synchronously on the
// emitting goroutine, outside the store lock; long-running delivery
// belongs in the handler's own goroutine.
type Handler func(Event)

// Subscribe registers a handler for all store events. Subscriptions
// cannot be removed; register once at wiring time.
func (s *Store) Subscribe(handler Handler) {
	if handler == nil {
		return
	}
	s.subMu.Lock()
	s.subscribers = append(s.subscribers, handler)
	s.subMu.Unlock()
}

func (s *Store) publish(evt Event) {
	s.subMu.RLock()
	handlers := s.subscribers
	s.subMu.RUnlock()

	for _, handler := range handlers {
		handler(evt)
	}
}
