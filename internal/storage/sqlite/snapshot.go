// Package sqlite provides the SQLite-backed snapshot collaborator: a
// periodic full dump of the in-memory store that survives process
// restarts. The store itself never touches disk; durability is exactly
// the freshness of the last snapshot.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scrypster/shardmind/pkg/types"
)

// Schema contains the SQL statements for the snapshot database. Shards
// and clusters are stored as JSON documents: the snapshot is a dump
// format, not a queryable mirror, so one column per field buys nothing.
const Schema = `
CREATE TABLE IF NOT EXISTS shards (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS clusters (
    id TEXT PRIMARY KEY,
    data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Snapshotter implements engine.Snapshotter using SQLite.
type Snapshotter struct {
	db *sql.DB
}

// NewSnapshotter opens (or creates) the snapshot database at dsn and
// prepares the schema. WAL mode keeps the writer from blocking any
// concurrent readers of the file.
func NewSnapshotter(dsn string) (*Snapshotter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open snapshot db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &Snapshotter{db: db}, nil
}

// Save replaces the snapshot with the given shards and clusters in one
// transaction, so a crash mid-save leaves the previous snapshot intact.
func (s *Snapshotter) Save(ctx context.Context, shards []types.Shard, clusters []types.Cluster) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM shards"); err != nil {
		return fmt.Errorf("sqlite: failed to clear shards: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM clusters"); err != nil {
		return fmt.Errorf("sqlite: failed to clear clusters: %w", err)
	}

	shardStmt, err := tx.PrepareContext(ctx, "INSERT INTO shards (id, data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare shard insert: %w", err)
	}
	defer shardStmt.Close()

	for i := range shards {
		data, err := json.Marshal(&shards[i])
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal shard %s: %w", shards[i].ID, err)
		}
		if _, err := shardStmt.ExecContext(ctx, shards[i].ID, string(data)); err != nil {
			return fmt.Errorf("sqlite: failed to insert shard %s: %w", shards[i].ID, err)
		}
	}

	clusterStmt, err := tx.PrepareContext(ctx, "INSERT INTO clusters (id, data) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare cluster insert: %w", err)
	}
	defer clusterStmt.Close()

	for i := range clusters {
		data, err := json.Marshal(&clusters[i])
		if err != nil {
			return fmt.Errorf("sqlite: failed to marshal cluster %s: %w", clusters[i].ID, err)
		}
		if _, err := clusterStmt.ExecContext(ctx, clusters[i].ID, string(data)); err != nil {
			return fmt.Errorf("sqlite: failed to insert cluster %s: %w", clusters[i].ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO snapshot_meta (key, value) VALUES ('saved_at', datetime('now')) ON CONFLICT(key) DO UPDATE SET value = excluded.value"); err != nil {
		return fmt.Errorf("sqlite: failed to record snapshot time: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit snapshot: %w", err)
	}
	return nil
}

// Load reads back the most recent snapshot. An empty database returns
// empty slices, not an error.
func (s *Snapshotter) Load(ctx context.Context) ([]types.Shard, []types.Cluster, error) {
	shards, err := loadDocs[types.Shard](ctx, s.db, "SELECT data FROM shards ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: failed to load shards: %w", err)
	}

	clusters, err := loadDocs[types.Cluster](ctx, s.db, "SELECT data FROM clusters ORDER BY id")
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: failed to load clusters: %w", err)
	}

	return shards, clusters, nil
}

// Close closes the underlying database.
func (s *Snapshotter) Close() error {
	return s.db.Close()
}

func loadDocs[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc T
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
