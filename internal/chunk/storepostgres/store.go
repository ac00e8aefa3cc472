// Package storepostgres persists chunks (without their vectors) in
// PostgreSQL, satisfying ports.ChunkStore for deployments that keep
// structural chunk data relational and delegate vector search to a
// dedicated store such as storeqdrant.
package storepostgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists chunks in a single "chunks" table.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and ensures the chunks table and its indexes
// exist.
func New(ctx context.Context, connString string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("storepostgres: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS chunks (
			chunk_id            TEXT PRIMARY KEY,
			repo_id             TEXT NOT NULL,
			snapshot_id         TEXT NOT NULL,
			project_id          TEXT,
			module_path         TEXT,
			file_path           TEXT NOT NULL,
			kind                TEXT NOT NULL,
			fqn                 TEXT NOT NULL,
			start_line          INTEGER,
			end_line            INTEGER,
			content_hash        TEXT,
			parent_id           TEXT,
			language            TEXT,
			symbol_visibility   TEXT,
			symbol_id           TEXT,
			symbol_owner_id     TEXT,
			content             TEXT,
			summary             TEXT,
			importance          DOUBLE PRECISION,
			attrs               JSONB,
			version             INTEGER,
			last_indexed_commit TEXT,
			is_deleted          BOOLEAN NOT NULL DEFAULT false
		)
	`)
	if err != nil {
		return fmt.Errorf("storepostgres: create chunks table: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_chunks_repo_snapshot ON chunks(repo_id, snapshot_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_fqn ON chunks(fqn)`,
	}
	for _, idx := range indexes {
		if _, err := s.pool.Exec(ctx, idx); err != nil {
			return fmt.Errorf("storepostgres: create index: %w", err)
		}
	}
	return nil
}

// SaveChunks upserts chunks, keyed by chunk_id. embeddings are accepted
// to satisfy ports.ChunkStore but are not persisted here; pair this store
// with storeqdrant when vector search is needed.
func (s *Store) SaveChunks(ctx context.Context, chunks []*chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		attrsJSON, err := json.Marshal(c.Attrs)
		if err != nil {
			return fmt.Errorf("storepostgres: marshal attrs for %s: %w", c.ChunkID, err)
		}
		batch.Queue(`
			INSERT INTO chunks
				(chunk_id, repo_id, snapshot_id, project_id, module_path, file_path,
				 kind, fqn, start_line, end_line, content_hash, parent_id, language,
				 symbol_visibility, symbol_id, symbol_owner_id, content, summary,
				 importance, attrs, version, last_indexed_commit, is_deleted)
			VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				 $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
			ON CONFLICT (chunk_id) DO UPDATE SET
				repo_id = EXCLUDED.repo_id,
				snapshot_id = EXCLUDED.snapshot_id,
				project_id = EXCLUDED.project_id,
				module_path = EXCLUDED.module_path,
				file_path = EXCLUDED.file_path,
				kind = EXCLUDED.kind,
				fqn = EXCLUDED.fqn,
				start_line = EXCLUDED.start_line,
				end_line = EXCLUDED.end_line,
				content_hash = EXCLUDED.content_hash,
				parent_id = EXCLUDED.parent_id,
				language = EXCLUDED.language,
				symbol_visibility = EXCLUDED.symbol_visibility,
				symbol_id = EXCLUDED.symbol_id,
				symbol_owner_id = EXCLUDED.symbol_owner_id,
				content = EXCLUDED.content,
				summary = EXCLUDED.summary,
				importance = EXCLUDED.importance,
				attrs = EXCLUDED.attrs,
				version = EXCLUDED.version,
				last_indexed_commit = EXCLUDED.last_indexed_commit,
				is_deleted = EXCLUDED.is_deleted
		`,
			c.ChunkID, c.RepoID, c.SnapshotID, c.ProjectID, c.ModulePath, c.FilePath,
			string(c.Kind), c.FQN, c.StartLine, c.EndLine, c.ContentHash, c.ParentID, c.Language,
			string(c.SymbolVisibility), c.SymbolID, c.SymbolOwnerID, c.Content, c.Summary,
			c.Importance, attrsJSON, c.Version, c.LastIndexedCommit, c.IsDeleted,
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("storepostgres: upsert chunk: %w", err)
		}
	}
	return nil
}

// DeleteSnapshot removes every chunk belonging to a repo/snapshot pair.
func (s *Store) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE repo_id = $1 AND snapshot_id = $2`, repoID, snapshotID)
	if err != nil {
		return fmt.Errorf("storepostgres: delete snapshot %s/%s: %w", repoID, snapshotID, err)
	}
	return nil
}

// Search is a structural fallback: with no vector column here, it returns
// the repo's non-deleted chunks ordered by importance, highest first. Real semantic ranking
// belongs to a paired vector store.
func (s *Store) Search(ctx context.Context, repoID string, queryVector []float32, topK int) ([]*chunk.Chunk, error) {
	var limit any
	if topK > 0 {
		limit = topK
	} // topK <= 0 means no limit: NULL LIMIT returns every chunk, used by the
	// incremental refresher to load a repo's full previous chunk set.
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, repo_id, snapshot_id, project_id, module_path, file_path,
		       kind, fqn, start_line, end_line, content_hash, parent_id, language,
		       symbol_visibility, symbol_id, symbol_owner_id, content, summary,
		       importance, attrs, version, last_indexed_commit, is_deleted
		FROM chunks
		WHERE repo_id = $1 AND NOT is_deleted
		ORDER BY importance DESC
		LIMIT $2
	`, repoID, limit)
	if err != nil {
		return nil, fmt.Errorf("storepostgres: search: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// GetByID fetches a single chunk by its primary key.
func (s *Store) GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT chunk_id, repo_id, snapshot_id, project_id, module_path, file_path,
		       kind, fqn, start_line, end_line, content_hash, parent_id, language,
		       symbol_visibility, symbol_id, symbol_owner_id, content, summary,
		       importance, attrs, version, last_indexed_commit, is_deleted
		FROM chunks
		WHERE chunk_id = $1
	`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("storepostgres: get %s: %w", chunkID, err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("storepostgres: chunk %s not found", chunkID)
	}
	return chunks[0], nil
}

func scanChunks(rows pgx.Rows) ([]*chunk.Chunk, error) {
	var out []*chunk.Chunk
	for rows.Next() {
		var c chunk.Chunk
		var kind, visibility string
		var attrsJSON []byte

		err := rows.Scan(
			&c.ChunkID, &c.RepoID, &c.SnapshotID, &c.ProjectID, &c.ModulePath, &c.FilePath,
			&kind, &c.FQN, &c.StartLine, &c.EndLine, &c.ContentHash, &c.ParentID, &c.Language,
			&visibility, &c.SymbolID, &c.SymbolOwnerID, &c.Content, &c.Summary,
			&c.Importance, &attrsJSON, &c.Version, &c.LastIndexedCommit, &c.IsDeleted,
		)
		if err != nil {
			return nil, fmt.Errorf("storepostgres: scan chunk: %w", err)
		}
		c.Kind = chunk.Kind(kind)
		c.SymbolVisibility = chunk.Visibility(visibility)
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &c.Attrs); err != nil {
				return nil, fmt.Errorf("storepostgres: unmarshal attrs for %s: %w", c.ChunkID, err)
			}
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
