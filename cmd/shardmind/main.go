package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/scrypster/shardmind/internal/config"
	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/internal/engine"
	"github.com/scrypster/shardmind/internal/notify"
	"github.com/scrypster/shardmind/internal/server"
	"github.com/scrypster/shardmind/internal/storage/postgres"
	"github.com/scrypster/shardmind/internal/storage/sqlite"
	"github.com/scrypster/shardmind/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (environment variables override)")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadConfigFile(*configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Build the embedding pipeline
	embedder := buildEmbedder(cfg)

	storeCfg := store.DefaultConfig()
	storeCfg.Capacity = cfg.Store.Capacity
	shards, err := store.New(embedder, storeCfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	// Snapshot persistence
	var snapshotter engine.Snapshotter
	if cfg.Store.SnapshotEnabled {
		if err := os.MkdirAll(cfg.Store.DataPath, 0o700); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
		snapshotter, err = sqlite.NewSnapshotter(filepath.Join(cfg.Store.DataPath, "shardmind.db"))
		if err != nil {
			log.Fatalf("Failed to initialize snapshot store: %v", err)
		}
	}

	// Optional archive for pruned shards
	var archiver engine.Archiver
	if cfg.Store.ArchiveDSN != "" {
		archive, err := postgres.NewArchive(cfg.Store.ArchiveDSN)
		if err != nil {
			log.Printf("Warning: archive unavailable, pruned shards will be discarded: %v", err)
		} else {
			defer archive.Close()
			archiver = archive
		}
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.ConsolidationInterval = cfg.Engine.ConsolidationInterval
	engineCfg.SnapshotInterval = cfg.Engine.SnapshotInterval
	eng, err := engine.New(shards, engineCfg, snapshotter, archiver)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	// Event spool for external consumers
	if cfg.Notify.SpoolEnabled {
		writer := notify.NewEventWriter(cfg.Store.DataPath)
		eng.Subscribe(func(evt store.Event) {
			if err := writer.Write(notify.FromStore(evt)); err != nil {
				log.Printf("Warning: failed to spool event: %v", err)
			}
		})
	}

	srv, err := server.Start(cfg, eng)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
	log.Printf("shardmind listening on http://%s", srv.Addr())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), engineCfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	if err := eng.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down engine: %v", err)
	}
}

// buildEmbedder assembles the embedding pipeline from configuration:
// the configured provider wrapped in an LRU cache when enabled.
func buildEmbedder(cfg *config.Config) embedding.Embedder {
	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "remote":
		embedder = embedding.NewRemoteEmbedder(cfg.Embedding.RemoteURL, cfg.Embedding.Model, embedding.Dimension)
	default:
		embedder = embedding.NewFeatureHashEmbedder(embedding.Dimension)
	}
	if cfg.Embedding.CacheSize > 0 {
		embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)
	}
	return embedder
}
