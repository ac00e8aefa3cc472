// cmd/codegraph-index/status.go
package main

import (
	"context"
	"fmt"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/repomap"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [repo-id]",
	Short: "Show what's currently indexed for a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var statusSnapshotID string

func init() {
	statusCmd.Flags().StringVar(&statusSnapshotID, "snapshot", "", "Snapshot id whose repo map to report (the repo map is not reported when unset)")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	repoID := args[0]

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		fmt.Println("No global config found, using defaults")
		cfg = config.DefaultConfig()
	}

	ctx := context.Background()

	chunkStore, closeChunks, err := connectChunkStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChunks()

	chunks, err := chunkStore.Search(ctx, repoID, nil, 0)
	if err != nil {
		return fmt.Errorf("load chunks: %w", err)
	}

	fmt.Println("Index Status:")
	fmt.Printf("  Repo:   %s\n", repoID)
	fmt.Printf("  Chunks: %d\n", len(chunks))

	if statusSnapshotID == "" {
		return nil
	}

	repoStore, err := connectRepoMapStore(cfg)
	if err != nil {
		return fmt.Errorf("open repo map store: %w", err)
	}

	snap, err := repoStore.GetSnapshot(ctx, repoID, statusSnapshotID)
	if err != nil {
		if err == repomap.ErrSnapshotNotFound {
			fmt.Println("  Repo map: no snapshot found")
			return nil
		}
		return fmt.Errorf("load repo map: %w", err)
	}

	fmt.Printf("  Repo map nodes: %d\n", len(snap.Nodes))
	return nil
}
