package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzerAnalyze(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "metrics.jsonl")

	now := time.Now().UTC()
	recentTS := now.Add(-1 * time.Hour).Format(time.RFC3339)
	oldTS := now.Add(-25 * time.Hour).Format(time.RFC3339)

	logData := `{"ts":"` + recentTS + `","event":"index_run","repo_id":"r1","files_processed":10,"chunks_created":40,"error_count":0,"duration_ms":1200}
{"ts":"` + recentTS + `","event":"index_run","repo_id":"r1","files_processed":5,"chunks_created":20,"error_count":1,"duration_ms":800}
{"ts":"` + recentTS + `","event":"incremental_refresh","repo_id":"r1","drifted":2}
{"ts":"` + oldTS + `","event":"index_run","repo_id":"r2","files_processed":99,"chunks_created":99,"error_count":0,"duration_ms":9999}
`
	err := os.WriteFile(logPath, []byte(logData), 0644)
	require.NoError(t, err)

	analyzer := NewAnalyzer(logPath)
	summary, err := analyzer.Analyze(24 * time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TotalRuns)
	assert.Equal(t, 15, summary.TotalFilesProcessed)
	assert.Equal(t, 60, summary.TotalChunksCreated)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, int64(1000), summary.AvgRunDurationMs)
	assert.Equal(t, 2, summary.RunsByRepo["r1"])
	assert.Equal(t, 1, summary.RefreshCount)
	assert.Equal(t, 2, summary.TotalDrifted)

	require.NotEmpty(t, summary.TopRepos)
	assert.Equal(t, "r1", summary.TopRepos[0].RepoID)
}

func TestAnalyzerFailedRuns(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "metrics.jsonl")

	now := time.Now().UTC()
	recentTS := now.Add(-1 * time.Hour).Format(time.RFC3339)

	logData := `{"ts":"` + recentTS + `","event":"index_run","repo_id":"healthy","error_count":0}
{"ts":"` + recentTS + `","event":"index_run","repo_id":"broken","error_count":2}
`
	err := os.WriteFile(logPath, []byte(logData), 0644)
	require.NoError(t, err)

	analyzer := NewAnalyzer(logPath)
	failed, err := analyzer.FailedRuns(24 * time.Hour)
	require.NoError(t, err)

	require.Len(t, failed, 1)
	assert.Equal(t, "broken", failed[0])
}

func TestAnalyzerEmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "empty.jsonl")
	err := os.WriteFile(logPath, []byte(""), 0644)
	require.NoError(t, err)

	analyzer := NewAnalyzer(logPath)
	summary, err := analyzer.Analyze(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalRuns)
}

func TestAnalyzerFileNotFound(t *testing.T) {
	analyzer := NewAnalyzer("/nonexistent/path/metrics.jsonl")
	_, err := analyzer.Analyze(24 * time.Hour)
	assert.Error(t, err)
}
