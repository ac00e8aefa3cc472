// Package metrics provides JSONL event logging and analysis for indexing
// runs.
package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/pipeline"
)

// Logger writes metrics events to a JSONL file.
type Logger struct {
	file *os.File
	mu   sync.Mutex
}

// NewLogger creates a metrics logger appending to path.
func NewLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &Logger{file: file}, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

func (l *Logger) log(event string, data map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := map[string]interface{}{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	for k, v := range data {
		e[k] = v
	}

	line, _ := json.Marshal(e)
	l.file.Write(line)
	l.file.Write([]byte("\n"))
}

// LogIndexRun logs the outcome of one full-index run.
func (l *Logger) LogIndexRun(result *pipeline.Result, duration time.Duration) {
	l.log("index_run", map[string]interface{}{
		"repo_id":         result.RepoID,
		"snapshot_id":     result.SnapshotID,
		"files_processed": result.FilesProcessed,
		"files_skipped":   result.FilesSkipped,
		"chunks_created":  result.ChunksCreated,
		"chunks_indexed":  result.ChunksIndexed,
		"graph_nodes":     result.GraphNodes,
		"graph_edges":     result.GraphEdges,
		"repomap_nodes":   result.RepoMapNodes,
		"error_count":     len(result.Errors),
		"duration_ms":     duration.Milliseconds(),
	})
}

// LogIncrementalRefresh logs the outcome of one incremental refresh.
func (l *Logger) LogIncrementalRefresh(repoID, commit string, result *chunk.RefreshResult, duration time.Duration) {
	l.log("incremental_refresh", map[string]interface{}{
		"repo_id":     repoID,
		"commit":      commit,
		"added":       len(result.Added),
		"updated":     len(result.Updated),
		"deleted":     len(result.Deleted),
		"renamed":     len(result.Renamed),
		"drifted":     len(result.Drifted),
		"duration_ms": duration.Milliseconds(),
	})
}

// LogRepoMapBuild logs the outcome of one RepoMap build or rebuild.
func (l *Logger) LogRepoMapBuild(repoID string, nodeCount int, fullRebuild bool, duration time.Duration) {
	l.log("repomap_build", map[string]interface{}{
		"repo_id":      repoID,
		"node_count":   nodeCount,
		"full_rebuild": fullRebuild,
		"duration_ms":  duration.Milliseconds(),
	})
}

// LogError logs an operational error encountered outside a run's own
// error accumulation (e.g. a watch-loop failure).
func (l *Logger) LogError(operation, message string) {
	l.log("error", map[string]interface{}{
		"operation": operation,
		"message":   message,
	})
}
