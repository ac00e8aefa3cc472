// cmd/codegraph-index/metrics.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/codegraph/indexer/internal/metrics"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Analyze indexing run metrics",
	Long:  `Analyze indexing and refresh run metrics from the JSONL event log.`,
	RunE:  runMetrics,
}

var (
	metricsSince  string
	metricsFailed bool
	metricsJSON   bool
)

func init() {
	metricsCmd.Flags().StringVar(&metricsSince, "last", "7d", "Time period (e.g., 1h, 24h, 7d, 30d)")
	metricsCmd.Flags().BoolVar(&metricsFailed, "failed", false, "Show only repos whose latest run recorded errors")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	duration, err := parseDuration(metricsSince)
	if err != nil {
		return fmt.Errorf("invalid time period: %w", err)
	}

	path := metricsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Println("No metrics data found. Run 'codegraph-index index' or 'watch' to generate metrics.")
		return nil
	}

	analyzer := metrics.NewAnalyzer(path)

	if metricsFailed {
		repos, err := analyzer.FailedRuns(duration)
		if err != nil {
			return err
		}
		if metricsJSON {
			data, _ := json.MarshalIndent(repos, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		fmt.Printf("Repos with failed runs (last %s):\n\n", metricsSince)
		if len(repos) == 0 {
			fmt.Println("  None.")
		}
		for _, r := range repos {
			fmt.Printf("  - %s\n", r)
		}
		return nil
	}

	summary, err := analyzer.Analyze(duration)
	if err != nil {
		return err
	}

	if metricsJSON {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Metrics Summary (last %s):\n\n", metricsSince)
	fmt.Printf("  Total runs:           %d\n", summary.TotalRuns)
	fmt.Printf("  Files processed:      %d\n", summary.TotalFilesProcessed)
	fmt.Printf("  Chunks created:       %d\n", summary.TotalChunksCreated)
	fmt.Printf("  Avg run duration:     %dms\n", summary.AvgRunDurationMs)
	fmt.Printf("  Errors:               %d\n", summary.ErrorCount)
	fmt.Printf("  Incremental refreshes: %d\n", summary.RefreshCount)
	fmt.Printf("  Chunks drifted:       %d\n", summary.TotalDrifted)
	fmt.Println()

	if len(summary.TopRepos) > 0 {
		fmt.Println("  Top repos by run count:")
		for _, r := range summary.TopRepos {
			fmt.Printf("    - %s (%d runs)\n", r.RepoID, r.Count)
		}
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if len(s) > 0 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err == nil {
			return time.Duration(d) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
