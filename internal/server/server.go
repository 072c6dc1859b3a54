// Package server provides the optional HTTP surface over the shard
// engine: ingestion, query, cross-producer context, stats, health, and
// a websocket feed of store events. The core remains a library-level
// contract; this adapter exists for out-of-process producers and
// dashboards.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/scrypster/shardmind/internal/config"
	"github.com/scrypster/shardmind/internal/engine"
	"github.com/scrypster/shardmind/internal/store"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Server wraps the HTTP listener and the websocket hub.
type Server struct {
	httpServer *http.Server
	wsHub      *WebSocketHub
	addr       string
}

// Start builds the route table, wires the websocket hub to store
// events, and begins serving. It returns once the listener is bound;
// the actual address is available via Addr (useful for tests binding
// port 0).
func Start(cfg *config.Config, eng *engine.Engine) (*Server, error) {
	mux := http.NewServeMux()

	wsHub := NewWebSocketHub()
	go wsHub.Run()

	// Every store event fans out to connected websocket clients.
	eng.Subscribe(func(evt store.Event) {
		wsHub.Broadcast(evt)
	})

	// Rate limiter (10 req/sec, burst of 20).
	rateLimiter := NewRateLimiter(10.0, 20)

	api := NewAPIHandlers(eng)

	mux.HandleFunc("GET /healthz", api.Health)
	mux.Handle("POST /api/shards", protect(http.HandlerFunc(api.CreateShard), cfg, rateLimiter))
	mux.Handle("GET /api/shards/{id}", protect(http.HandlerFunc(api.GetShard), cfg, rateLimiter))
	mux.Handle("DELETE /api/shards/{id}", protect(http.HandlerFunc(api.DeleteShard), cfg, rateLimiter))
	mux.Handle("GET /api/query", protect(http.HandlerFunc(api.Query), cfg, rateLimiter))
	mux.Handle("GET /api/context", protect(http.HandlerFunc(api.CrossContext), cfg, rateLimiter))
	mux.Handle("GET /api/archive/search", protect(http.HandlerFunc(api.ArchiveSearch), cfg, rateLimiter))
	mux.Handle("GET /api/stats", protect(http.HandlerFunc(api.Stats), cfg, rateLimiter))
	mux.Handle("GET /api/clusters", protect(http.HandlerFunc(api.Clusters), cfg, rateLimiter))
	mux.Handle("GET /ws", wsHub)

	handler := securityHeadersMiddleware(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	srv := &Server{
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		wsHub: wsHub,
		addr:  listener.Addr().String(),
	}

	go func() {
		if err := srv.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("ERROR: HTTP server failed: %v", err)
		}
	}()

	log.Printf("HTTP server listening on %s", srv.addr)
	return srv, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Shutdown stops the HTTP server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// protect chains the auth and rate-limit middleware around h.
func protect(h http.Handler, cfg *config.Config, rl *RateLimiter) http.Handler {
	return RequireAuth(RateLimitMiddleware(h, rl), cfg)
}
