package storejson

import (
	"context"
	"testing"

	"github.com/codegraph/indexer/internal/repomap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndGetSnapshotRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	snap := &repomap.Snapshot{
		RepoID: "repo1", SnapshotID: "snap1", RootNodeID: "repomap:repo1:snap1:repo:repo1",
		SchemaVersion: repomap.SchemaVersion,
		Nodes: []*repomap.Node{
			{ID: "repomap:repo1:snap1:repo:repo1", Kind: repomap.KindRepo, Name: "repo1"},
		},
	}

	require.NoError(t, store.SaveSnapshot(ctx, snap))

	loaded, err := store.GetSnapshot(ctx, "repo1", "snap1")
	require.NoError(t, err)
	assert.Equal(t, snap.RootNodeID, loaded.RootNodeID)
	assert.Len(t, loaded.Nodes, 1)
}

func TestGetSnapshotMissingReturnsNotFound(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetSnapshot(context.Background(), "repo1", "missing")
	assert.ErrorIs(t, err, repomap.ErrSnapshotNotFound)
}

func TestDeleteSnapshotRemovesFile(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	snap := &repomap.Snapshot{RepoID: "repo1", SnapshotID: "snap1"}
	require.NoError(t, store.SaveSnapshot(ctx, snap))
	require.NoError(t, store.DeleteSnapshot(ctx, "repo1", "snap1"))

	_, err = store.GetSnapshot(ctx, "repo1", "snap1")
	assert.ErrorIs(t, err, repomap.ErrSnapshotNotFound)
}

func TestDeleteSnapshotMissingIsNoOp(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.DeleteSnapshot(context.Background(), "repo1", "missing"))
}
