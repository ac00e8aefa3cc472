// Package storejson persists chunks and their embeddings as one JSON
// file per repo/snapshot pair on local disk: debuggable, no external
// service dependency, suited to local indexing runs and tests.
package storejson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/security"
)

// record is the on-disk shape for one repo/snapshot's chunk set.
type record struct {
	Chunks     []*chunk.Chunk `json:"chunks"`
	Embeddings [][]float32    `json:"embeddings,omitempty"`
}

// Store persists chunks under one JSON file per repo/snapshot.
type Store struct {
	mu      sync.RWMutex
	baseDir string
}

// New creates a store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create chunk store directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) snapshotPath(repoID, snapshotID string) (string, error) {
	name := fmt.Sprintf("%s__%s.json", sanitize(repoID), sanitize(snapshotID))
	return security.SafeJoin(s.baseDir, name)
}

// SaveChunks groups chunks by (RepoID, SnapshotID) and writes one record
// file per group, overwriting any prior contents. embeddings, if
// non-empty, must be the same length and order as chunks.
func (s *Store) SaveChunks(ctx context.Context, chunks []*chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	type group struct {
		chunks     []*chunk.Chunk
		embeddings [][]float32
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	for i, c := range chunks {
		key := c.RepoID + "__" + c.SnapshotID
		g, ok := groups[key]
		if !ok {
			g = &group{}
			groups[key] = g
			order = append(order, key)
		}
		g.chunks = append(g.chunks, c)
		if i < len(embeddings) {
			g.embeddings = append(g.embeddings, embeddings[i])
		}
	}

	for _, key := range order {
		g := groups[key]
		path, err := s.snapshotPath(g.chunks[0].RepoID, g.chunks[0].SnapshotID)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(record{Chunks: g.chunks, Embeddings: g.embeddings}, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal chunks: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write chunks: %w", err)
		}
	}
	return nil
}

// DeleteSnapshot removes a snapshot's file, treating a missing file as
// success.
func (s *Store) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.snapshotPath(repoID, snapshotID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// Search loads every snapshot file stored for repoID and returns their
// chunks in stored order, ignoring queryVector: similarity ranking needs a real vector index and
// belongs to storeqdrant, not this local debugging store.
func (s *Store) Search(ctx context.Context, repoID string, queryVector []float32, topK int) ([]*chunk.Chunk, error) {
	rec, err := s.loadRepo(repoID)
	if err != nil {
		return nil, err
	}
	if topK > 0 && topK < len(rec) {
		rec = rec[:topK]
	}
	return rec, nil
}

// GetByID scans every snapshot file under baseDir for a chunk with the
// given id. Fine for local/debug use; not meant for large chunk counts.
func (s *Store) GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list chunk store directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		for _, c := range rec.Chunks {
			if c.ChunkID == chunkID {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("chunk %s not found", chunkID)
}

// loadRepo concatenates chunks from every snapshot file belonging to
// repoID, since this store keys files by (repo, snapshot) rather than
// indexing across snapshots.
func (s *Store) loadRepo(repoID string) ([]*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list chunk store directory: %w", err)
	}
	prefix := sanitize(repoID) + "__"
	var out []*chunk.Chunk
	for _, entry := range entries {
		if entry.IsDir() || len(entry.Name()) < len(prefix) || entry.Name()[:len(prefix)] != prefix {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", entry.Name(), err)
		}
		out = append(out, rec.Chunks...)
	}
	return out, nil
}

func sanitize(id string) string {
	return filepath.Base(filepath.Clean(id))
}
