// cmd/codegraph-index/watch.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/metrics"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/sync"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch repositories and sync the index on change",
	Long:  `Runs a background daemon that polls registered repositories' git HEAD and re-indexes on change.`,
	RunE:  runWatch,
}

var (
	watchRepos    string
	watchInterval string
)

func init() {
	watchCmd.Flags().StringVar(&watchRepos, "repos", "", "Comma-separated repo names under ~/repos to watch")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "60s", "Poll interval (e.g., 30s, 5m)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchRepos == "" {
		return fmt.Errorf("--repos is required")
	}

	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	globalCfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		globalCfg = config.DefaultConfig()
	}

	ctx := context.Background()

	graphStore, closeGraph, err := connectGraphStore(ctx, globalCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	defer closeGraph()

	chunkStore, closeChunks, err := connectChunkStore(ctx, globalCfg)
	if err != nil {
		return err
	}
	defer closeChunks()

	repoStore, err := connectRepoMapStore(globalCfg)
	if err != nil {
		return fmt.Errorf("open repo map store: %w", err)
	}

	embedder, err := newEmbedder(globalCfg)
	if err != nil {
		return err
	}

	metricsLogger, err := metrics.NewLogger(metricsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: metrics logging disabled: %v\n", err)
		metricsLogger = nil
	} else {
		defer metricsLogger.Close()
	}

	orch := pipeline.New(pipelineConfig(globalCfg), graphStore, chunkStore, repoStore, embedder, logger)
	if rankCache := connectPageRankCache(globalCfg); rankCache != nil {
		orch = orch.WithPageRankCache(rankCache)
	}
	if llmProvider := newLLMProvider(globalCfg); llmProvider != nil {
		orch = orch.WithLLMProvider(llmProvider)
	}

	homeDir, _ := os.UserHomeDir()
	repoNames := strings.Split(watchRepos, ",")
	var repos []sync.RepoWatch

	for _, name := range repoNames {
		name = strings.TrimSpace(name)
		repoPath := filepath.Join(homeDir, "repos", name)

		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			logger.Warn("repo path not found", "repo", name, "path", repoPath)
			continue
		}

		repoCfg, err := config.LoadRepoConfig(repoPath)
		if err != nil {
			repoCfg = &config.RepoConfig{
				Name:    name,
				Include: []string{"**/*.py", "**/*.js", "**/*.ts", "**/*.go"},
				Exclude: []string{"**/node_modules/**", "**/venv/**", "**/.git/**"},
			}
			logger.Warn("using default repo config", "repo", name)
		}

		repos = append(repos, sync.RepoWatch{
			RepoID: repoCfg.Name,
			Path:   repoPath,
			Config: repoCfg,
		})
	}

	if len(repos) == 0 {
		return fmt.Errorf("no valid repos found")
	}

	daemon := sync.NewDaemon(repos, interval, orch, nil, nil, metricsLogger, logger)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	return daemon.Run(runCtx)
}
