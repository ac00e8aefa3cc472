// Package storejson persists RepoMap snapshots as one JSON file per
// repo/snapshot pair on local disk: debuggable, no external service
// dependency, suited to local indexing runs.
package storejson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/codegraph/indexer/internal/repomap"
	"github.com/codegraph/indexer/internal/security"
)

// Store persists repomap.Snapshots under one JSON file per repo/snapshot.
type Store struct {
	mu      sync.RWMutex
	baseDir string
}

// New creates a store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create repomap store directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

func (s *Store) snapshotPath(repoID, snapshotID string) (string, error) {
	name := fmt.Sprintf("%s__%s.json", sanitize(repoID), sanitize(snapshotID))
	return security.SafeJoin(s.baseDir, name)
}

// SaveSnapshot writes snap to its JSON file, overwriting any prior
// snapshot with the same repo/snapshot id.
func (s *Store) SaveSnapshot(ctx context.Context, snap *repomap.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.snapshotPath(snap.RepoID, snap.SnapshotID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal repomap snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write repomap snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads a previously saved snapshot, returning
// repomap.ErrSnapshotNotFound when none exists.
func (s *Store) GetSnapshot(ctx context.Context, repoID, snapshotID string) (*repomap.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.snapshotPath(repoID, snapshotID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repomap.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("read repomap snapshot: %w", err)
	}
	var snap repomap.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal repomap snapshot: %w", err)
	}
	return &snap, nil
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
		return fmt.Errorf("delete repomap snapshot: %w", err)
	}
	return nil
}

func sanitize(id string) string {
	return filepath.Base(filepath.Clean(id))
}
