// cmd/codegraph-index/index.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [repo-path]",
	Short: "Run a full index of a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var indexSnapshotID string

func init() {
	indexCmd.Flags().StringVar(&indexSnapshotID, "snapshot", "", "Snapshot id (defaults to the repo's current git HEAD)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	repoPath, err := resolveRepoPath(args[0])
	if err != nil {
		return err
	}

	globalCfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		return fmt.Errorf("load global config: %w", err)
	}

	repoCfg, err := config.LoadRepoConfig(repoPath)
	if err != nil {
		return fmt.Errorf("load repo config: %w\nRun 'codegraph-index init %s' first", err, repoPath)
	}

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

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

	snapshotID := indexSnapshotID
	if snapshotID == "" {
		snapshotID = currentGitHead(repoPath)
	}

	orch := pipeline.New(pipelineConfig(globalCfg), graphStore, chunkStore, repoStore, embedder, logger)
	if rankCache := connectPageRankCache(globalCfg); rankCache != nil {
		orch = orch.WithPageRankCache(rankCache)
	}
	if llmProvider := newLLMProvider(globalCfg); llmProvider != nil {
		orch = orch.WithLLMProvider(llmProvider)
	}

	fmt.Printf("Indexing %s (%s)...\n", repoCfg.Name, repoPath)
	result, err := orch.IndexFull(ctx, repoCfg.Name, snapshotID, repoPath, repoCfg.Include, repoCfg.Exclude)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	printResult(result)
	return nil
}

func resolveRepoPath(repoArg string) (string, error) {
	repoPath := repoArg
	if !filepath.IsAbs(repoPath) {
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("repository not found: %s (unable to check ~/repos)", repoPath)
			}
			repoPath = filepath.Join(homeDir, "repos", repoArg)
		}
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return "", fmt.Errorf("repository not found: %s", absPath)
	}
	return absPath, nil
}

func printResult(result *pipeline.Result) {
	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files processed: %d\n", result.FilesProcessed)
	fmt.Printf("  Chunks created:  %d\n", result.ChunksCreated)
	fmt.Printf("  Chunks indexed:  %d\n", result.ChunksIndexed)
	fmt.Printf("  Graph nodes:     %d\n", result.GraphNodes)
	fmt.Printf("  Graph edges:     %d\n", result.GraphEdges)
	fmt.Printf("  Repo map nodes:  %d\n", result.RepoMapNodes)

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %v\n", e)
		}
	}
}
