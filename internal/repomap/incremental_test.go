package repomap

import (
	"context"
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	snapshots map[string]*Snapshot
}

func newMemStore() *memStore { return &memStore{snapshots: make(map[string]*Snapshot)} }

func (m *memStore) GetSnapshot(ctx context.Context, repoID, snapshotID string) (*Snapshot, error) {
	if s, ok := m.snapshots[repoID+":"+snapshotID]; ok {
		return s, nil
	}
	return nil, ErrSnapshotNotFound
}

func (m *memStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	m.snapshots[snap.RepoID+":"+snap.SnapshotID] = snap
	return nil
}

func TestIncrementalUpdaterFullRebuildWhenNoPriorSnapshot(t *testing.T) {
	store := newMemStore()
	updater := NewIncrementalUpdater(store, DefaultBuildConfig(), "")

	snap, err := updater.Update(context.Background(), "repo1", "snap1", chunk.RefreshResult{}, sampleChunks(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Nodes)
}

func TestIncrementalUpdaterFullRebuildAboveChangeRatio(t *testing.T) {
	store := newMemStore()
	config := DefaultBuildConfig()
	updater := NewIncrementalUpdater(store, config, "")

	first, err := updater.Update(context.Background(), "repo1", "snap1", chunk.RefreshResult{}, sampleChunks(), nil)
	require.NoError(t, err)
	store.snapshots["repo1:snap2"] = first

	refresh := chunk.RefreshResult{Added: []*chunk.Chunk{{ChunkID: "new", Kind: chunk.KindFunction, FilePath: "src/api/other.go"}}}
	for range make([]int, len(first.Nodes)) {
		refresh.Added = append(refresh.Added, &chunk.Chunk{ChunkID: "filler", Kind: chunk.KindFunction, FilePath: "src/api/other.go"})
	}

	snap, err := updater.Update(context.Background(), "repo1", "snap2", refresh, sampleChunks(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Nodes)
}

func TestIncrementalUpdaterPropagatesDriftScore(t *testing.T) {
	store := newMemStore()
	updater := NewIncrementalUpdater(store, DefaultBuildConfig(), "")

	first, err := updater.Update(context.Background(), "repo1", "snap1", chunk.RefreshResult{}, sampleChunks(), nil)
	require.NoError(t, err)
	store.snapshots["repo1:snap2"] = first

	drifted := &chunk.Chunk{
		ChunkID: "c-func", Kind: chunk.KindFunction, FilePath: "src/api/server.go",
		StartLine: 25, EndLine: 50, OriginalStartLine: 15, OriginalEndLine: 40,
	}
	refresh := chunk.RefreshResult{Updated: []*chunk.Chunk{drifted}, Drifted: []*chunk.Chunk{drifted}}

	snap, err := updater.Update(context.Background(), "repo1", "snap2", refresh, sampleChunks(), nil)
	require.NoError(t, err)

	var found *Node
	for _, n := range snap.Nodes {
		for _, cid := range n.ChunkIDs {
			if cid == "c-func" {
				found = n
			}
		}
	}
	require.NotNil(t, found, "expected a node mapped to the drifted chunk")
	assert.Greater(t, found.Metrics.DriftScore, 0.0)
}

func TestIncrementalUpdaterKeepsUnaffectedNodes(t *testing.T) {
	store := newMemStore()
	updater := NewIncrementalUpdater(store, DefaultBuildConfig(), "")

	untouchedChunk := &chunk.Chunk{ChunkID: "c-other", Kind: chunk.KindFile, FilePath: "src/util/helpers.go", StartLine: 1, EndLine: 20}
	allChunks := append(sampleChunks(), untouchedChunk)

	first, err := updater.Update(context.Background(), "repo1", "snap1", chunk.RefreshResult{}, allChunks, nil)
	require.NoError(t, err)
	store.snapshots["repo1:snap2"] = first

	refresh := chunk.RefreshResult{Updated: []*chunk.Chunk{{ChunkID: "c-func", Kind: chunk.KindFunction, FilePath: "src/api/server.go"}}}

	snap, err := updater.Update(context.Background(), "repo1", "snap2", refresh, allChunks, nil)
	require.NoError(t, err)

	var foundUnrelated bool
	for _, n := range snap.Nodes {
		if n.Kind == KindFile && n.Path == "src/util/helpers.go" {
			foundUnrelated = true
		}
	}
	assert.True(t, foundUnrelated)
}
