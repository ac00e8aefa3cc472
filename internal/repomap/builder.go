package repomap

import (
	"context"
	"fmt"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/graph"
)

// SchemaVersion tags every snapshot this builder produces.
const SchemaVersion = "1"

// PageRankCache persists one repo's PageRank scores between builds so a
// later run can warm-start its power iteration instead of beginning from
// a uniform distribution. internal/cache.RedisCache implements this.
type PageRankCache interface {
	GetPreviousPageRank(ctx context.Context, repoID string) (map[string]float64, error)
	SetPreviousPageRank(ctx context.Context, repoID string, scores map[string]float64) error
}

// Builder runs the full RepoMap construction pipeline: tree assembly,
// entrypoint/test detection, PageRank scoring, heuristic importance,
// optional git history enrichment, and optional LLM summarization.
type Builder struct {
	config    BuildConfig
	repoPath  string // optional; enables git history enrichment when set
	rankCache PageRankCache

	llm          LLMProvider
	chunkSource  ChunkSource
	summaryCache SummaryCache
}

// NewBuilder creates a builder with the given config. An empty repoPath
// disables git history enrichment. Summarization defaults to an
// in-memory cache and stays disabled until WithSummarizer attaches an
// LLMProvider.
func NewBuilder(config BuildConfig, repoPath string) *Builder {
	return &Builder{config: config, repoPath: repoPath, summaryCache: NewInMemorySummaryCache()}
}

// WithPageRankCache attaches a cache the builder uses to warm-start
// PageRank from the previous run's scores and to save the scores it
// produces for the next one. A nil cache (the default) falls back to an
// uniform-start, uncached PageRank run every build.
func (b *Builder) WithPageRankCache(cache PageRankCache) *Builder {
	b.rankCache = cache
	return b
}

// WithSummarizer attaches the collaborators a build needs to generate
// node summaries: an LLM to call and a chunk source to read each node's
// underlying text from. Passing a nil llm disables summarization
// regardless of BuildConfig.SummaryEnabled.
func (b *Builder) WithSummarizer(llmProvider LLMProvider, chunkSource ChunkSource) *Builder {
	b.llm = llmProvider
	b.chunkSource = chunkSource
	return b
}

// WithSummaryCache overrides the default in-memory summary cache with a
// shared one (e.g. internal/cache.RedisCache) so a summary survives past
// the process that generated it.
func (b *Builder) WithSummaryCache(cache SummaryCache) *Builder {
	b.summaryCache = cache
	return b
}

// Build constructs a full RepoMap snapshot from a chunk list and an
// optional graph document (nil skips PageRank scoring).
func (b *Builder) Build(repoID, snapshotID string, chunks []*chunk.Chunk, graphDoc *graph.Document) (*Snapshot, error) {
	treeBuilder := NewTreeBuilder(repoID, snapshotID)
	nodes := treeBuilder.Build(chunks)

	DetectEntrypoints(nodes)
	DetectTests(nodes)

	if b.config.PageRankEnabled && graphDoc != nil {
		b.scoreGraph(repoID, nodes, graphDoc)
	}

	if b.repoPath != "" {
		analyzer, err := NewGitHistoryAnalyzer(b.repoPath)
		if err == nil {
			_ = analyzer.ComputeChangeFreq(nodes, 6)
		}
	}

	b.scoreHeuristics(nodes)
	b.summarize(context.Background(), nodes)

	rootID := ""
	for _, n := range nodes {
		if n.Kind == KindRepo {
			rootID = n.ID
			break
		}
	}

	return &Snapshot{
		RepoID: repoID, SnapshotID: snapshotID, RootNodeID: rootID,
		Nodes: nodes, SchemaVersion: SchemaVersion,
	}, nil
}

func (b *Builder) scoreGraph(repoID string, nodes []*Node, graphDoc *graph.Document) {
	engine := NewPageRankEngine(b.config)

	var seed map[string]float64
	if b.rankCache != nil {
		if prev, err := b.rankCache.GetPreviousPageRank(context.Background(), repoID); err == nil {
			seed = prev
		}
	}
	scores := engine.ComputeSeeded(graphDoc, seed)

	degree := ComputeDegreeStats(graphDoc)
	AggregatePageRank(nodes, scores)
	AggregateDegree(nodes, degree)

	if b.rankCache != nil {
		_ = b.rankCache.SetPreviousPageRank(context.Background(), repoID, scores)
	}
}

func (b *Builder) scoreHeuristics(nodes []*Node) {
	calc := NewHeuristicMetricsCalculator(b.config)
	calc.ComputeImportance(nodes)
	calc.BoostEntrypoints(nodes, 1.5)
	if !b.config.IncludeTests {
		calc.PenalizeTests(nodes, 0.5)
	}
}

// summarize generates and writes SummaryTitle/SummaryBody/SummaryText
// onto the top SummaryTopPercent of nodes (plus entrypoints), using
// importance scores that must already be computed by scoreHeuristics
// and, if enabled, scoreGraph. A no-op when summarization isn't
// configured or enabled.
func (b *Builder) summarize(ctx context.Context, nodes []*Node) {
	if !b.config.SummaryEnabled || b.llm == nil || b.chunkSource == nil {
		return
	}
	targets := withAncestors(nodes, selectSummaryTargets(nodes, b.config))

	leaf := NewLeafSummarizer(b.llm, b.summaryCache, b.chunkSource, 200)
	cost := NewCostController(DefaultSummaryCostConfig())
	hier := NewHierarchicalSummarizer(leaf, b.llm, cost, 5)

	summaries := hier.SummarizeTree(ctx, nodes, targets)
	ApplySummaries(nodes, summaries)
}

// ErrSnapshotNotFound is returned by a RepoMapStore when no snapshot
// exists for a given repo/snapshot pair.
var ErrSnapshotNotFound = fmt.Errorf("repomap: snapshot not found")
