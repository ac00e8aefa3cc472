package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/repomap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraphStore struct{ saved *graph.Document }

func (f *fakeGraphStore) SaveGraph(ctx context.Context, doc *graph.Document) error {
	f.saved = doc
	return nil
}
func (f *fakeGraphStore) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	return nil
}
func (f *fakeGraphStore) QueryContainsChildren(ctx context.Context, id string) ([]string, error) {
	return nil, nil
}
func (f *fakeGraphStore) QueryCalledBy(ctx context.Context, id string) ([]string, error) {
	return nil, nil
}

type fakeChunkStore struct {
	saved      []*chunk.Chunk
	embeddings [][]float32
	previous   []*chunk.Chunk
}

func (f *fakeChunkStore) SaveChunks(ctx context.Context, chunks []*chunk.Chunk, embeddings [][]float32) error {
	f.saved = chunks
	f.embeddings = embeddings
	return nil
}
func (f *fakeChunkStore) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	return nil
}
func (f *fakeChunkStore) Search(ctx context.Context, repoID string, queryVector []float32, topK int) ([]*chunk.Chunk, error) {
	return f.previous, nil
}
func (f *fakeChunkStore) GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error) {
	return nil, nil
}

type fakeRepoMapStore struct{ saved *repomap.Snapshot }

func (f *fakeRepoMapStore) SaveSnapshot(ctx context.Context, snap *repomap.Snapshot) error {
	f.saved = snap
	return nil
}
func (f *fakeRepoMapStore) GetSnapshot(ctx context.Context, repoID, snapshotID string) (*repomap.Snapshot, error) {
	return nil, repomap.ErrSnapshotNotFound
}
func (f *fakeRepoMapStore) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int { return 3 }

func writeSampleRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "def helper():\n    return 1\n\n\nclass Widget:\n    def render(self):\n        return helper()\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte(content), 0o644))
	return dir
}

func TestOrchestratorIndexFullProducesChunksAndGraph(t *testing.T) {
	repoPath := writeSampleRepo(t)
	gs := &fakeGraphStore{}
	cs := &fakeChunkStore{}
	rs := &fakeRepoMapStore{}

	o := New(DefaultConfig(), gs, cs, rs, fakeEmbedder{}, nil)
	result, err := o.IndexFull(context.Background(), "repo1", "snap1", repoPath, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.FilesProcessed)
	assert.Greater(t, result.ChunksCreated, 0)
	assert.Greater(t, result.GraphNodes, 0)
	assert.NotNil(t, gs.saved)
	assert.NotNil(t, cs.saved)
	assert.Len(t, cs.embeddings, len(cs.saved))
	assert.NotNil(t, rs.saved)
}

func TestOrchestratorIndexFullNoFilesReturnsSentinel(t *testing.T) {
	o := New(DefaultConfig(), nil, nil, nil, nil, nil)
	_, err := o.IndexFull(context.Background(), "repo1", "snap1", t.TempDir(), nil, nil)
	assert.ErrorIs(t, err, ErrNoSourceFiles)
}

func TestOrchestratorSkipsEmbeddingWhenDisabled(t *testing.T) {
	repoPath := writeSampleRepo(t)
	cs := &fakeChunkStore{}
	config := DefaultConfig()
	config.EnableEmbedding = false

	o := New(config, &fakeGraphStore{}, cs, &fakeRepoMapStore{}, fakeEmbedder{}, nil)
	_, err := o.IndexFull(context.Background(), "repo1", "snap1", repoPath, nil, nil)
	require.NoError(t, err)

	assert.Nil(t, cs.embeddings)
}

func TestOrchestratorIndexIncrementalDiffsAgainstPreviousChunks(t *testing.T) {
	repoPath := writeSampleRepo(t)
	gs := &fakeGraphStore{}
	cs := &fakeChunkStore{}
	rs := &fakeRepoMapStore{}

	o := New(DefaultConfig(), gs, cs, rs, fakeEmbedder{}, nil)
	result, refresh, err := o.IndexIncremental(context.Background(), "repo1", "snap1", repoPath, "commit1", nil, nil)
	require.NoError(t, err)

	// No previous chunks: every chunk is an addition.
	assert.Equal(t, result.ChunksCreated, len(refresh.Added))
	assert.Empty(t, refresh.Updated)
	assert.NotNil(t, gs.saved)
	assert.NotNil(t, cs.saved)
	assert.NotNil(t, rs.saved)
}

func TestOrchestratorIndexIncrementalUnchangedProducesNoWrites(t *testing.T) {
	repoPath := writeSampleRepo(t)
	gs := &fakeGraphStore{}
	cs := &fakeChunkStore{}
	rs := &fakeRepoMapStore{}

	o := New(DefaultConfig(), gs, cs, rs, fakeEmbedder{}, nil)
	first, _, err := o.IndexIncremental(context.Background(), "repo1", "snap1", repoPath, "commit1", nil, nil)
	require.NoError(t, err)
	_ = first

	// Seed the store's previous chunks from what the first pass built.
	cs.previous = cs.saved
	cs.saved = nil

	_, refresh, err := o.IndexIncremental(context.Background(), "repo1", "snap1", repoPath, "commit1", nil, nil)
	require.NoError(t, err)

	assert.Empty(t, refresh.Added)
	assert.Empty(t, refresh.Updated)
	assert.Empty(t, refresh.Deleted)
	assert.Nil(t, cs.saved, "no chunks changed, nothing should be re-saved")
}
