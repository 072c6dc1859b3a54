package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/scrypster/shardmind/internal/store"
	"github.com/scrypster/shardmind/pkg/types"
)

// eventFrame is the wire shape pushed to websocket subscribers. Shard
// payloads are reduced to metadata; content and embeddings never cross
// the feed, and creations of private shards are not announced.
type eventFrame struct {
	Type    store.EventType `json:"type"`
	ShardID string          `json:"shard_id,omitempty"`
	Time    time.Time       `json:"time"`

	Origin types.Origin `json:"origin,omitempty"`
	Kind   types.Kind   `json:"kind,omitempty"`
	Tags   []string     `json:"tags,omitempty"`

	Consolidation *store.ConsolidationReport `json:"consolidation,omitempty"`
}

// frameForEvent reduces a store event to its broadcast shape. The
// second return is false when the event must not go out at all.
func frameForEvent(evt store.Event) (eventFrame, bool) {
	if evt.Shard != nil && evt.Shard.Private {
		return eventFrame{}, false
	}
	frame := eventFrame{
		Type:          evt.Type,
		ShardID:       evt.ShardID,
		Time:          evt.Time,
		Consolidation: evt.Consolidation,
	}
	if evt.Shard != nil {
		frame.Origin = evt.Shard.Origin
		frame.Kind = evt.Shard.Kind
		frame.Tags = evt.Shard.Tags
	}
	return frame, true
}

// wsSubscriber allows for both live connections and test doubles.
type wsSubscriber interface {
	sendChannel() chan []byte
	wants(store.EventType) bool
	close()
}

// WebSocketHub fans store events out to websocket subscribers. A
// subscriber may narrow its feed to a subset of event types via the
// events query parameter on upgrade.
type WebSocketHub struct {
	subscribers map[wsSubscriber]bool
	events      chan store.Event
	register    chan wsSubscriber
	unregister  chan wsSubscriber
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewWebSocketHub creates a new websocket hub.
func NewWebSocketHub() *WebSocketHub {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocketHub{
		subscribers: make(map[wsSubscriber]bool),
		events:      make(chan store.Event, 256),
		register:    make(chan wsSubscriber),
		unregister:  make(chan wsSubscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's event processing loop.
func (h *WebSocketHub) Run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Printf("WebSocket subscriber connected (total: %d)", count)

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.sendChannel())
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			log.Printf("WebSocket subscriber disconnected (total: %d)", count)

		case evt := <-h.events:
			frame, ok := frameForEvent(evt)
			if !ok {
				continue
			}
			data, err := json.Marshal(frame)
			if err != nil {
				log.Printf("ERROR: failed to marshal event frame: %v", err)
				continue
			}

			// Full Lock because a stalled subscriber is deleted inline.
			h.mu.Lock()
			for sub := range h.subscribers {
				if !sub.wants(evt.Type) {
					continue
				}
				select {
				case sub.sendChannel() <- data:
				default:
					close(sub.sendChannel())
					delete(h.subscribers, sub)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("WebSocket hub stopping...")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *WebSocketHub) Stop() {
	h.cancel()

	h.mu.Lock()
	for sub := range h.subscribers {
		close(sub.sendChannel())
		sub.close()
	}
	h.subscribers = make(map[wsSubscriber]bool)
	h.mu.Unlock()
}

// Broadcast queues a store event for fan-out. Events are dropped when
// the hub cannot keep up; the spool is the lossless channel.
func (h *WebSocketHub) Broadcast(evt store.Event) {
	select {
	case h.events <- evt:
	default:
		log.Println("WARNING: websocket event channel full, dropping event")
	}
}

// Register adds a subscriber to the hub.
func (h *WebSocketHub) Register(sub wsSubscriber) {
	h.register <- sub
}

// Unregister removes a subscriber from the hub.
func (h *WebSocketHub) Unregister(sub wsSubscriber) {
	h.unregister <- sub
}

// parseEventFilter turns the comma separated events parameter into a
// type set. Empty means the full feed.
func parseEventFilter(raw string) (map[store.EventType]bool, error) {
	if raw == "" {
		return nil, nil
	}
	known := map[store.EventType]bool{
		store.EventShardCreated:           true,
		store.EventShardDeleted:           true,
		store.EventConsolidationCompleted: true,
	}
	filter := make(map[store.EventType]bool)
	for _, part := range strings.Split(raw, ",") {
		et := store.EventType(strings.TrimSpace(part))
		if !known[et] {
			return nil, fmt.Errorf("unknown event type %q", et)
		}
		filter[et] = true
	}
	return filter, nil
}

// wsConn is a live websocket subscription.
type wsConn struct {
	hub    *WebSocketHub
	conn   *websocket.Conn
	send   chan []byte
	filter map[store.EventType]bool
}

func (c *wsConn) sendChannel() chan []byte {
	return c.send
}

func (c *wsConn) wants(t store.EventType) bool {
	return c.filter == nil || c.filter[t]
}

func (c *wsConn) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

// ServeHTTP handles websocket upgrade requests. The service binds to
// loopback by default, so cross-origin upgrades are allowed here and
// access control stays with the auth middleware.
func (h *WebSocketHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r.URL.Query().Get("events"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid events filter", err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}

	sub := &wsConn{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		filter: filter,
	}

	h.Register(sub)

	go sub.writePump()
	go sub.readPump()
}

// writePump sends queued frames to the websocket connection.
func (c *wsConn) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for frame := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()

		if err != nil {
			log.Printf("ERROR: websocket write failed: %v", err)
			return
		}
	}
}

// readPump drains inbound messages to detect disconnections; the feed
// is one-way.
func (c *wsConn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, _, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}
	}
}

// MockClient is a test double subscriber. An empty Types slice
// subscribes to every event type.
type MockClient struct {
	SendChan chan []byte
	Types    []store.EventType
}

func (m *MockClient) sendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) wants(t store.EventType) bool {
	if len(m.Types) == 0 {
		return true
	}
	for _, et := range m.Types {
		if et == t {
			return true
		}
	}
	return false
}

func (m *MockClient) close() {}
