package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshUnchangedChunkStaysUnchanged(t *testing.T) {
	prev := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5, Version: 1}
	next := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5}

	r := NewRefresher(0, nil)
	result := r.Refresh([]*Chunk{prev}, []*Chunk{next}, "commit1", nil)

	assert.Empty(t, result.Updated)
	assert.Empty(t, result.Added)
	assert.Empty(t, result.Deleted)
	assert.Equal(t, 1, next.Version)
}

func TestRefreshModifiedContentBumpsVersionAndResetsSpan(t *testing.T) {
	prev := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5, OriginalStartLine: 1, OriginalEndLine: 5, Version: 1}
	next := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h2", StartLine: 1, EndLine: 8}

	r := NewRefresher(0, nil)
	result := r.Refresh([]*Chunk{prev}, []*Chunk{next}, "commit2", nil)

	require.Len(t, result.Updated, 1)
	assert.Equal(t, 2, next.Version)
	assert.Equal(t, 1, next.OriginalStartLine)
	assert.Equal(t, 8, next.OriginalEndLine)
}

func TestRefreshDriftBeyondThresholdIsFlagged(t *testing.T) {
	prev := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5, OriginalStartLine: 1, OriginalEndLine: 5, Version: 1}
	next := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.A", Kind: KindFunction,
		ContentHash: "h1", StartLine: 50, EndLine: 54}

	var drifted *Chunk
	hooks := &Hooks{OnChunkDrifted: func(c *Chunk) { drifted = c }}

	r := NewRefresher(5, nil)
	result := r.Refresh([]*Chunk{prev}, []*Chunk{next}, "commit2", hooks)

	require.Len(t, result.Drifted, 1)
	assert.Same(t, next, drifted)
}

func TestRefreshRenameMatchesByHashAndFile(t *testing.T) {
	prev := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.Old", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5, Version: 3}
	next := &Chunk{ChunkID: "c2", FilePath: "a.go", FQN: "pkg.New", Kind: KindFunction,
		ContentHash: "h1", StartLine: 1, EndLine: 5}

	var renamedFrom string
	hooks := &Hooks{OnChunkRenamed: func(oldID string, newChunk *Chunk) { renamedFrom = oldID }}

	r := NewRefresher(0, nil)
	result := r.Refresh([]*Chunk{prev}, []*Chunk{next}, "commit3", hooks)

	require.Len(t, result.Renamed, 1)
	assert.Equal(t, "c1", result.Renamed[0].OldID)
	assert.Equal(t, "c1", renamedFrom)
	assert.Equal(t, 4, next.Version)
	require.Len(t, result.Deleted, 1)
	assert.True(t, result.Deleted[0].IsDeleted)
}

func TestRefreshAddedAndDeletedWithNoMatch(t *testing.T) {
	prev := &Chunk{ChunkID: "c1", FilePath: "a.go", FQN: "pkg.Gone", Kind: KindFunction, ContentHash: "h1"}
	next := &Chunk{ChunkID: "c2", FilePath: "b.go", FQN: "pkg.New", Kind: KindFunction, ContentHash: "h2"}

	r := NewRefresher(0, nil)
	result := r.Refresh([]*Chunk{prev}, []*Chunk{next}, "commit4", nil)

	require.Len(t, result.Added, 1)
	assert.Equal(t, "c2", result.Added[0].ChunkID)
	require.Len(t, result.Deleted, 1)
	assert.Equal(t, "c1", result.Deleted[0].ChunkID)
	assert.True(t, result.Deleted[0].IsDeleted)
}
