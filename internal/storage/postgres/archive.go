// Package postgres provides the pruned-shard archive. Shards evicted
// by the consolidation pass are written here with their embeddings, so
// capacity pruning bounds the hot store without destroying material.
// When the pgvector extension is available the embedding is also
// stored as a vector column for cosine-distance queries over the
// archive.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/shardmind/internal/embedding"
	"github.com/scrypster/shardmind/pkg/types"
)

// Schema contains the SQL statements for the archive table. The
// embedding_vec column is added separately because it requires the
// pgvector extension.
const Schema = `
CREATE TABLE IF NOT EXISTS archived_shards (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    origin TEXT NOT NULL,
    kind TEXT NOT NULL,
    category TEXT NOT NULL,
    intensity REAL NOT NULL,
    coherence REAL NOT NULL,
    accessibility REAL NOT NULL,
    retrieval_count INTEGER NOT NULL DEFAULT 0,
    tags JSONB,
    private BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP NOT NULL,
    last_accessed TIMESTAMP,
    archived_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_archived_shards_origin ON archived_shards(origin);
CREATE INDEX IF NOT EXISTS idx_archived_shards_archived_at ON archived_shards(archived_at);
`

// vectorColumn adds the pgvector column; executed only when the
// extension is present.
const vectorColumn = `
ALTER TABLE archived_shards ADD COLUMN IF NOT EXISTS embedding_vec vector(%d)
`

// Archive implements engine.Archiver using PostgreSQL.
type Archive struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewArchive connects to PostgreSQL with the given DSN and prepares the
// archive schema. The pgvector extension is probed and, when present,
// the vector column is created with the system embedding dimension.
func NewArchive(dsn string) (*Archive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open archive db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: failed to ping archive db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: failed to create archive schema: %w", err)
	}

	a := &Archive{db: db}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension unavailable, archiving without vector column: %v", err)
	} else if _, err := db.Exec(fmt.Sprintf(vectorColumn, embedding.Dimension)); err != nil {
		log.Printf("postgres: failed to add vector column, archiving without it: %v", err)
	} else {
		a.pgvectorAvailable = true
	}

	return a, nil
}

// Archive upserts the given shards into the archive. Re-archiving an
// id (a restored shard pruned again) overwrites the previous row.
func (a *Archive) Archive(ctx context.Context, shards []types.Shard) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin archive tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range shards {
		if err := a.insertShard(ctx, tx, &shards[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: failed to commit archive tx: %w", err)
	}
	return nil
}

func (a *Archive) insertShard(ctx context.Context, tx *sql.Tx, sh *types.Shard) error {
	tagsJSON, err := json.Marshal(sh.Tags)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal tags for %s: %w", sh.ID, err)
	}

	var lastAccessed interface{}
	if !sh.LastAccessed.IsZero() {
		lastAccessed = sh.LastAccessed
	}

	if a.pgvectorAvailable && len(sh.Embedding) == embedding.Dimension {
		query := `
			INSERT INTO archived_shards
				(id, content, origin, kind, category, intensity, coherence,
				 accessibility, retrieval_count, tags, private, created_at,
				 last_accessed, embedding_vec, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, CURRENT_TIMESTAMP)
			ON CONFLICT (id) DO UPDATE SET
				accessibility = excluded.accessibility,
				retrieval_count = excluded.retrieval_count,
				last_accessed = excluded.last_accessed,
				embedding_vec = excluded.embedding_vec,
				archived_at = CURRENT_TIMESTAMP
		`
		_, err = tx.ExecContext(ctx, query,
			sh.ID, sh.Content, sh.Origin, sh.Kind, sh.Category,
			sh.Intensity, sh.Coherence, sh.Accessibility, sh.RetrievalCount,
			string(tagsJSON), sh.Private, sh.Timestamp, lastAccessed,
			pgvector.NewVector(sh.Embedding))
	} else {
		query := `
			INSERT INTO archived_shards
				(id, content, origin, kind, category, intensity, coherence,
				 accessibility, retrieval_count, tags, private, created_at,
				 last_accessed, archived_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP)
			ON CONFLICT (id) DO UPDATE SET
				accessibility = excluded.accessibility,
				retrieval_count = excluded.retrieval_count,
				last_accessed = excluded.last_accessed,
				archived_at = CURRENT_TIMESTAMP
		`
		_, err = tx.ExecContext(ctx, query,
			sh.ID, sh.Content, sh.Origin, sh.Kind, sh.Category,
			sh.Intensity, sh.Coherence, sh.Accessibility, sh.RetrievalCount,
			string(tagsJSON), sh.Private, sh.Timestamp, lastAccessed)
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to archive shard %s: %w", sh.ID, err)
	}
	return nil
}

// SearchSimilar queries the archive by embedding similarity. It is only
// available when pgvector is present; otherwise it returns an error.
func (a *Archive) SearchSimilar(ctx context.Context, vec embedding.Vector, limit int) ([]types.Shard, error) {
	if !a.pgvectorAvailable {
		return nil, fmt.Errorf("postgres: similarity search requires pgvector")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, content, origin, kind, category, intensity, coherence,
		       accessibility, retrieval_count, tags, private, created_at, last_accessed
		FROM archived_shards
		WHERE embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> $1
		LIMIT $2
	`, pgvector.NewVector(vec), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: archive similarity query failed: %w", err)
	}
	defer rows.Close()

	var out []types.Shard
	for rows.Next() {
		var sh types.Shard
		var tagsJSON []byte
		var lastAccessed sql.NullTime
		if err := rows.Scan(&sh.ID, &sh.Content, &sh.Origin, &sh.Kind, &sh.Category,
			&sh.Intensity, &sh.Coherence, &sh.Accessibility, &sh.RetrievalCount,
			&tagsJSON, &sh.Private, &sh.Timestamp, &lastAccessed); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan archived shard: %w", err)
		}
		if len(tagsJSON) > 0 {
			if err := json.Unmarshal(tagsJSON, &sh.Tags); err != nil {
				return nil, fmt.Errorf("postgres: failed to unmarshal tags for %s: %w", sh.ID, err)
			}
		}
		if lastAccessed.Valid {
			sh.LastAccessed = lastAccessed.Time
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}
