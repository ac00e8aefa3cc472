package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "metrics.jsonl")

	logger, err := NewLogger(logPath)
	require.NoError(t, err)
	defer logger.Close()

	logger.LogIndexRun(&pipeline.Result{
		RepoID: "r3", SnapshotID: "s1", FilesProcessed: 10, ChunksCreated: 45,
	}, 250*time.Millisecond)

	logger.LogIncrementalRefresh("r3", "abc123", &chunk.RefreshResult{
		Added: []*chunk.Chunk{{}}, Drifted: []*chunk.Chunk{{}, {}},
	}, 10*time.Millisecond)

	logger.LogRepoMapBuild("r3", 120, false, 50*time.Millisecond)

	logger.LogError("refresh", "connection timeout")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	content := string(data)

	assert.Contains(t, content, `"event":"index_run"`)
	assert.Contains(t, content, `"repo_id":"r3"`)
	assert.Contains(t, content, `"chunks_created":45`)

	assert.Contains(t, content, `"event":"incremental_refresh"`)
	assert.Contains(t, content, `"drifted":2`)

	assert.Contains(t, content, `"event":"repomap_build"`)
	assert.Contains(t, content, `"node_count":120`)

	assert.Contains(t, content, `"event":"error"`)
	assert.Contains(t, content, `"operation":"refresh"`)

	lines := strings.Split(strings.TrimSpace(content), "\n")
	assert.Len(t, lines, 4)
}

func TestMetricsLoggerConcurrent(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "metrics.jsonl")

	logger, err := NewLogger(logPath)
	require.NoError(t, err)
	defer logger.Close()

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			logger.LogIndexRun(&pipeline.Result{RepoID: "r", FilesProcessed: n}, time.Duration(n)*time.Millisecond)
			done <- true
		}(i)
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 10)
}
