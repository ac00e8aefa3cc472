package storejson

import (
	"context"
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleChunks() []*chunk.Chunk {
	return []*chunk.Chunk{
		{ChunkID: "c-file", RepoID: "repo1", SnapshotID: "snap1", Kind: chunk.KindFile, FilePath: "src/api/server.go", FQN: "src/api/server.go"},
		{ChunkID: "c-func", RepoID: "repo1", SnapshotID: "snap1", Kind: chunk.KindFunction, FilePath: "src/api/server.go", FQN: "src/api/server.Serve"},
	}
}

func TestSaveChunksThenSearchRoundTrips(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	chunks := sampleChunks()
	embeddings := [][]float32{{0.1, 0.2}, {0.3, 0.4}}
	require.NoError(t, store.SaveChunks(ctx, chunks, embeddings))

	found, err := store.Search(ctx, "repo1", nil, 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestGetByIDFindsChunkAcrossSnapshots(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, sampleChunks(), nil))

	found, err := store.GetByID(ctx, "c-func")
	require.NoError(t, err)
	assert.Equal(t, "src/api/server.Serve", found.FQN)
}

func TestGetByIDMissingReturnsError(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = store.GetByID(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestDeleteSnapshotRemovesChunks(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, sampleChunks(), nil))
	require.NoError(t, store.DeleteSnapshot(ctx, "repo1", "snap1"))

	found, err := store.Search(ctx, "repo1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestSearchRespectsTopK(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.SaveChunks(ctx, sampleChunks(), nil))

	found, err := store.Search(ctx, "repo1", nil, 1)
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
