package repomap

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	calls    int32
	fail     bool
	response func(prompt string) string
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.fail {
		return "", fmt.Errorf("llm unavailable")
	}
	if f.response != nil {
		return f.response(prompt), nil
	}
	return "a function that does the thing. it is used elsewhere.", nil
}

type fakeChunkSource struct {
	byID map[string]*chunk.Chunk
}

func (f *fakeChunkSource) GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error) {
	return f.byID[chunkID], nil
}

func TestLeafSummarizerCachesByContentHash(t *testing.T) {
	llm := &fakeLLM{}
	cache := NewInMemorySummaryCache()
	chunks := &fakeChunkSource{byID: map[string]*chunk.Chunk{
		"c1": {ChunkID: "c1", Content: "func f() {}", ContentHash: "hash1"},
	}}
	leaf := NewLeafSummarizer(llm, cache, chunks, 100)
	n := &Node{ID: "n1", Kind: KindFunction, Name: "f", ChunkIDs: []string{"c1"}}

	first, err := leaf.Summarize(context.Background(), n)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := leaf.Summarize(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), llm.calls) // second call served from cache
}

func TestLeafSummarizerReturnsEmptyWithoutChunk(t *testing.T) {
	leaf := NewLeafSummarizer(&fakeLLM{}, NewInMemorySummaryCache(), &fakeChunkSource{byID: map[string]*chunk.Chunk{}}, 100)
	n := &Node{ID: "n1", Kind: KindFunction}
	text, err := leaf.Summarize(context.Background(), n)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestLeafSummarizerPropagatesLLMFailure(t *testing.T) {
	chunks := &fakeChunkSource{byID: map[string]*chunk.Chunk{"c1": {ChunkID: "c1", Content: "x", ContentHash: "h"}}}
	leaf := NewLeafSummarizer(&fakeLLM{fail: true}, NewInMemorySummaryCache(), chunks, 100)
	n := &Node{ID: "n1", Kind: KindFunction, ChunkIDs: []string{"c1"}}
	_, err := leaf.Summarize(context.Background(), n)
	assert.Error(t, err)
}

func TestHierarchicalSummarizerFallsBackOnLLMFailure(t *testing.T) {
	chunks := &fakeChunkSource{byID: map[string]*chunk.Chunk{"c1": {ChunkID: "c1", Content: "x", ContentHash: "h"}}}
	leaf := NewLeafSummarizer(&fakeLLM{fail: true}, NewInMemorySummaryCache(), chunks, 100)
	hier := NewHierarchicalSummarizer(leaf, &fakeLLM{fail: true}, nil, 2)

	n := &Node{ID: "n1", Kind: KindFunction, Name: "f", ChunkIDs: []string{"c1"}}
	nodes := []*Node{n}
	summaries := hier.SummarizeTree(context.Background(), nodes, map[string]bool{"n1": true})

	require.Contains(t, summaries, "n1")
	assert.Contains(t, summaries["n1"].Detailed, "no summary available")
}

func TestHierarchicalSummarizerAggregatesChildrenBottomUp(t *testing.T) {
	chunks := &fakeChunkSource{byID: map[string]*chunk.Chunk{
		"c1": {ChunkID: "c1", Content: "func a() {}", ContentHash: "h1"},
		"c2": {ChunkID: "c2", Content: "func b() {}", ContentHash: "h2"},
	}}
	llm := &fakeLLM{response: func(prompt string) string {
		if strings.Contains(prompt, "key components") {
			return "Overview: a file with two helpers\nDetailed: this file defines two small helper functions used by the server."
		}
		return "does a small thing."
	}}
	leaf := NewLeafSummarizer(llm, NewInMemorySummaryCache(), chunks, 100)
	hier := NewHierarchicalSummarizer(leaf, llm, nil, 4)

	file := &Node{ID: "file", Kind: KindFile, Name: "server.go", Depth: 0, ChildIDs: []string{"fn1", "fn2"}}
	fn1 := &Node{ID: "fn1", Kind: KindFunction, Name: "a", Depth: 1, ParentID: "file", ChunkIDs: []string{"c1"}, Metrics: Metrics{Importance: 0.9}}
	fn2 := &Node{ID: "fn2", Kind: KindFunction, Name: "b", Depth: 1, ParentID: "file", ChunkIDs: []string{"c2"}, Metrics: Metrics{Importance: 0.5}}
	nodes := []*Node{file, fn1, fn2}

	targets := map[string]bool{"file": true, "fn1": true, "fn2": true}
	summaries := hier.SummarizeTree(context.Background(), nodes, targets)

	require.Contains(t, summaries, "fn1")
	require.Contains(t, summaries, "fn2")
	require.Contains(t, summaries, "file")
	assert.Equal(t, 2, summaries["file"].AggregatedFrom)
	assert.Contains(t, summaries["file"].Overview, "two helpers")
}

func TestHierarchicalSummarizerSkipsNodesOutsideTargets(t *testing.T) {
	hier := NewHierarchicalSummarizer(NewLeafSummarizer(&fakeLLM{}, NewInMemorySummaryCache(), &fakeChunkSource{byID: map[string]*chunk.Chunk{}}, 100), &fakeLLM{}, nil, 2)
	nodes := []*Node{{ID: "a", Kind: KindFunction}, {ID: "b", Kind: KindFunction}}
	summaries := hier.SummarizeTree(context.Background(), nodes, map[string]bool{"a": true})
	assert.Contains(t, summaries, "a")
	assert.NotContains(t, summaries, "b")
}

func TestApplySummariesWritesNodeFields(t *testing.T) {
	n := &Node{ID: "n1"}
	ApplySummaries([]*Node{n}, map[string]TwoLevelSummary{"n1": {Overview: "short", Detailed: "long form"}})
	assert.Equal(t, "short", n.SummaryTitle)
	assert.Equal(t, "long form", n.SummaryBody)
	assert.Equal(t, "long form", n.SummaryText)
}

func TestSelectSummaryTargetsIncludesTopPercentAndEntrypoints(t *testing.T) {
	config := DefaultBuildConfig()
	config.SummaryTopPercent = 0.2
	config.SummaryAlwaysEntrypoints = true

	nodes := []*Node{
		{ID: "a", Metrics: Metrics{Importance: 0.9}},
		{ID: "b", Metrics: Metrics{Importance: 0.1}, IsEntrypoint: true},
		{ID: "c", Metrics: Metrics{Importance: 0.2}},
		{ID: "d", Metrics: Metrics{Importance: 0.05}},
		{ID: "e", Metrics: Metrics{Importance: 0.01}},
	}
	targets := selectSummaryTargets(nodes, config)
	assert.True(t, targets["a"]) // top 20% of 5 nodes = top 1, by importance
	assert.True(t, targets["b"]) // entrypoint, regardless of rank
	assert.False(t, targets["e"])
}

func TestWithAncestorsIncludesParentChain(t *testing.T) {
	root := &Node{ID: "root"}
	dir := &Node{ID: "dir", ParentID: "root"}
	file := &Node{ID: "file", ParentID: "dir"}
	fn := &Node{ID: "fn", ParentID: "file"}
	nodes := []*Node{root, dir, file, fn}

	targets := withAncestors(nodes, map[string]bool{"fn": true})
	assert.True(t, targets["fn"])
	assert.True(t, targets["file"])
	assert.True(t, targets["dir"])
	assert.True(t, targets["root"])
}
