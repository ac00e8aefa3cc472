// cmd/codegraph-index/repomap.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/repomap"
	"github.com/spf13/cobra"
)

var repoMapCmd = &cobra.Command{
	Use:   "repomap [repo-id] [snapshot-id]",
	Short: "Print a repo map snapshot",
	Long:  `Loads a previously built repo map snapshot and prints it as a tree or as JSON.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runRepoMap,
}

var repoMapJSON bool

func init() {
	repoMapCmd.Flags().BoolVar(&repoMapJSON, "json", false, "Output the full snapshot as JSON instead of a tree")
	rootCmd.AddCommand(repoMapCmd)
}

func runRepoMap(cmd *cobra.Command, args []string) error {
	repoID, snapshotID := args[0], args[1]

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		cfg = config.DefaultConfig()
	}

	repoStore, err := connectRepoMapStore(cfg)
	if err != nil {
		return fmt.Errorf("open repo map store: %w", err)
	}

	snap, err := repoStore.GetSnapshot(context.Background(), repoID, snapshotID)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	if repoMapJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	printTree(snap, snap.RootNodeID, 0)
	return nil
}

func printTree(snap *repomap.Snapshot, id string, depth int) {
	node := snap.GetNode(id)
	if node == nil {
		return
	}

	importance := ""
	if node.Metrics.Importance > 0 {
		importance = fmt.Sprintf(" [%.2f]", node.Metrics.Importance)
	}
	fmt.Printf("%s%s %s%s\n", strings.Repeat("  ", depth), node.Kind, node.Name, importance)

	for _, child := range snap.GetChildren(id) {
		printTree(snap, child.ID, depth+1)
	}
}

