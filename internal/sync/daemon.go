// Package sync provides background synchronization for code indexing.
package sync

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/metrics"
	"github.com/codegraph/indexer/internal/pipeline"
)

// RepoWatch is one repository registered with the daemon.
type RepoWatch struct {
	RepoID string
	Path   string
	Config *config.RepoConfig
}

// Daemon watches registered repositories and, on every detected HEAD
// change, re-runs the incremental refresher (falling back to a full
// index on a repo's first sighting).
type Daemon struct {
	repos      []RepoWatch
	interval   time.Duration
	orch       *pipeline.Orchestrator
	logger     *slog.Logger
	metrics    *metrics.Logger
	includes   []string
	excludes   []string
	headHash   map[string]string // repo id -> last known HEAD hash
	snapshotOf map[string]string // repo id -> snapshot id currently tracked
}

// NewDaemon creates a sync daemon driving orch on the given poll interval.
// metricsLogger may be nil, which disables run logging.
func NewDaemon(repos []RepoWatch, interval time.Duration, orch *pipeline.Orchestrator, includes, excludes []string, metricsLogger *metrics.Logger, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		repos:      repos,
		interval:   interval,
		orch:       orch,
		includes:   includes,
		excludes:   excludes,
		metrics:    metricsLogger,
		logger:     logger,
		headHash:   make(map[string]string),
		snapshotOf: make(map[string]string),
	}
}

// Run polls every registered repo until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting sync daemon", "interval", d.interval, "repos", len(d.repos))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.syncAll(ctx)
		}
	}
}

func (d *Daemon) syncAll(ctx context.Context) {
	for _, repo := range d.repos {
		if err := d.syncRepo(ctx, repo); err != nil {
			d.logger.Error("sync failed", "repo", repo.RepoID, "error", err)
			if d.metrics != nil {
				d.metrics.LogError("sync", err.Error())
			}
		}
	}
}

func (d *Daemon) syncRepo(ctx context.Context, repo RepoWatch) error {
	d.logger.Debug("checking repo", "id", repo.RepoID)

	currentHead, err := d.getGitHead(repo.Path)
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	cachedHead, seen := d.headHash[repo.RepoID]
	if seen && currentHead == cachedHead {
		d.logger.Debug("repo unchanged", "id", repo.RepoID)
		return nil
	}

	start := time.Now()
	includes, excludes := d.repoPatterns(repo)

	if !seen {
		d.logger.Info("repo seen for the first time, running full index", "id", repo.RepoID)
		snapshotID := currentHead
		result, err := d.orch.IndexFull(ctx, repo.RepoID, snapshotID, repo.Path, includes, excludes)
		if err != nil {
			return fmt.Errorf("full index failed: %w", err)
		}
		if d.metrics != nil {
			d.metrics.LogIndexRun(result, time.Since(start))
		}
		d.snapshotOf[repo.RepoID] = snapshotID
		d.headHash[repo.RepoID] = currentHead
		return nil
	}

	d.logger.Info("repo changed, refreshing", "id", repo.RepoID,
		"old_head", truncateHash(cachedHead), "new_head", truncateHash(currentHead))

	snapshotID := d.snapshotOf[repo.RepoID]
	result, refresh, err := d.orch.IndexIncremental(ctx, repo.RepoID, snapshotID, repo.Path, currentHead, includes, excludes)
	if err != nil {
		return fmt.Errorf("incremental refresh failed: %w", err)
	}
	if d.metrics != nil {
		d.metrics.LogIncrementalRefresh(repo.RepoID, currentHead, refresh, time.Since(start))
	}

	d.logger.Info("sync complete", "repo", repo.RepoID,
		"added", len(refresh.Added), "updated", len(refresh.Updated),
		"deleted", len(refresh.Deleted), "files", result.FilesProcessed)

	d.headHash[repo.RepoID] = currentHead
	return nil
}

// repoPatterns resolves the include/exclude globs to index repo with,
// preferring its own registered config over the daemon-wide defaults.
func (d *Daemon) repoPatterns(repo RepoWatch) (includes, excludes []string) {
	includes, excludes = d.includes, d.excludes
	if repo.Config == nil {
		return includes, excludes
	}
	if len(repo.Config.Include) > 0 {
		includes = repo.Config.Include
	}
	if len(repo.Config.Exclude) > 0 {
		excludes = repo.Config.Exclude
	}
	return includes, excludes
}

// getGitHead returns the current HEAD commit hash.
func (d *Daemon) getGitHead(repoPath string) (string, error) {
	cmd := exec.Command("git", "-C", repoPath, "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err == nil {
		return strings.TrimSpace(string(output)), nil
	}

	headPath := filepath.Join(repoPath, ".git", "HEAD")
	headData, err := os.ReadFile(headPath)
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(string(headData))

	if strings.HasPrefix(content, "ref: ") {
		refPath := strings.TrimPrefix(content, "ref: ")
		refFile := filepath.Join(repoPath, ".git", refPath)
		refData, err := os.ReadFile(refFile)
		if err != nil {
			h := sha256.Sum256([]byte(content))
			return fmt.Sprintf("%x", h[:8]), nil
		}
		return strings.TrimSpace(string(refData)), nil
	}

	return content, nil
}

func truncateHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
