package repomap

import (
	"context"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/graph"
)

// Store is the subset of persistence a RepoMap incremental update needs:
// load the previous snapshot, save the new one.
type Store interface {
	GetSnapshot(ctx context.Context, repoID, snapshotID string) (*Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
}

// IncrementalUpdater refreshes a RepoMap snapshot from a chunk refresh
// result instead of rebuilding the whole tree, falling back to a full
// rebuild once too much of the tree has changed to make incremental
// rebuilding worthwhile.
type IncrementalUpdater struct {
	store    Store
	builder  *Builder
	config   BuildConfig
	repoPath string
}

// NewIncrementalUpdater creates an updater backed by store, using builder
// for full rebuilds.
func NewIncrementalUpdater(store Store, config BuildConfig, repoPath string) *IncrementalUpdater {
	return &IncrementalUpdater{
		store: store, builder: NewBuilder(config, repoPath),
		config: config, repoPath: repoPath,
	}
}

// WithPageRankCache attaches cache to the updater's internal builder, so
// both full-rebuild and incremental-subtree PageRank scoring warm-start
// from and persist to the same cache.
func (u *IncrementalUpdater) WithPageRankCache(cache PageRankCache) *IncrementalUpdater {
	u.builder.WithPageRankCache(cache)
	return u
}

// WithSummarizer attaches the collaborators needed for LLM summarization
// to the updater's internal builder, covering both full-rebuild and
// incremental-subtree summarization.
func (u *IncrementalUpdater) WithSummarizer(llmProvider LLMProvider, chunkSource ChunkSource) *IncrementalUpdater {
	u.builder.WithSummarizer(llmProvider, chunkSource)
	return u
}

// WithSummaryCache attaches a shared summary cache (e.g. Redis-backed) to
// the updater's internal builder in place of its default in-memory one.
func (u *IncrementalUpdater) WithSummaryCache(cache SummaryCache) *IncrementalUpdater {
	u.builder.WithSummaryCache(cache)
	return u
}

// Update incrementally refreshes the RepoMap for repoID, producing
// snapshotID from refresh (the chunk-level diff), the full current chunk
// set, and an optional updated graph document for PageRank recompute.
func (u *IncrementalUpdater) Update(ctx context.Context, repoID, snapshotID string, refresh chunk.RefreshResult, allChunks []*chunk.Chunk, graphDoc *graph.Document) (*Snapshot, error) {
	oldSnapshot, err := u.store.GetSnapshot(ctx, repoID, snapshotID)
	if err != nil && err != ErrSnapshotNotFound {
		return nil, err
	}

	if oldSnapshot == nil || u.shouldRebuildFull(refresh, oldSnapshot) {
		snap, err := u.builder.Build(repoID, snapshotID, allChunks, graphDoc)
		if err != nil {
			return nil, err
		}
		applyDriftScores(snap.Nodes, refresh)
		if err := u.store.SaveSnapshot(ctx, snap); err != nil {
			return nil, err
		}
		return snap, nil
	}

	affectedFiles := affectedFilePaths(refresh)
	nodes := u.rebuildSubtrees(oldSnapshot, affectedFiles, allChunks, repoID, snapshotID)

	if u.config.PageRankEnabled && graphDoc != nil {
		u.builder.scoreGraph(repoID, nodes, graphDoc)
	}
	u.builder.scoreHeuristics(nodes)
	u.builder.summarize(ctx, nodes)
	applyDriftScores(nodes, refresh)

	newSnapshot := &Snapshot{
		RepoID: repoID, SnapshotID: snapshotID, RootNodeID: oldSnapshot.RootNodeID,
		Nodes: nodes, SchemaVersion: oldSnapshot.SchemaVersion,
	}
	if err := u.store.SaveSnapshot(ctx, newSnapshot); err != nil {
		return nil, err
	}
	return newSnapshot, nil
}

// shouldRebuildFull reports whether the fraction of added+updated+deleted
// chunks relative to the previous snapshot's node count exceeds
// FullRebuildChangeRatio, at which point an incremental update is no
// cheaper than starting over.
func (u *IncrementalUpdater) shouldRebuildFull(refresh chunk.RefreshResult, oldSnapshot *Snapshot) bool {
	totalChanges := len(refresh.Added) + len(refresh.Updated) + len(refresh.Deleted)
	totalNodes := len(oldSnapshot.Nodes)
	if totalNodes == 0 {
		return false
	}
	ratio := u.config.FullRebuildChangeRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	return float64(totalChanges)/float64(totalNodes) > ratio
}

// applyDriftScores propagates each drifted chunk's span movement onto
// its corresponding RepoMap node's Metrics.DriftScore, so a node whose
// underlying chunk has moved a lot since it was first indexed surfaces
// that instability without waiting for a full rebuild. Every node built
// from a chunk lists that chunk's id in ChunkIDs (synthesized dir nodes
// list none), so a chunk id is enough to find its node.
func applyDriftScores(nodes []*Node, refresh chunk.RefreshResult) {
	if len(refresh.Drifted) == 0 {
		return
	}
	byChunkID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		for _, cid := range n.ChunkIDs {
			byChunkID[cid] = n
		}
	}
	for _, c := range refresh.Drifted {
		n, ok := byChunkID[c.ChunkID]
		if !ok {
			continue
		}
		n.Metrics.DriftScore = driftRatio(c)
	}
}

// driftRatio expresses a chunk's span movement as a fraction of its own
// size: how many line-widths it has shifted since it was first indexed,
// so a one-line chunk that moved 10 lines scores far higher than a
// thousand-line chunk that moved the same distance.
func driftRatio(c *chunk.Chunk) float64 {
	span := c.OriginalEndLine - c.OriginalStartLine + 1
	if span <= 0 {
		span = 1
	}
	delta := c.StartLine - c.OriginalStartLine
	if delta < 0 {
		delta = -delta
	}
	return float64(delta) / float64(span)
}

func affectedFilePaths(refresh chunk.RefreshResult) map[string]bool {
	affected := make(map[string]bool)
	for _, c := range refresh.Added {
		if c.FilePath != "" {
			affected[c.FilePath] = true
		}
	}
	for _, c := range refresh.Updated {
		if c.FilePath != "" {
			affected[c.FilePath] = true
		}
	}
	for _, c := range refresh.Deleted {
		if c.FilePath != "" {
			affected[c.FilePath] = true
		}
	}
	return affected
}

// rebuildSubtrees keeps every node outside the affected set (including
// its descendants) and rebuilds the rest from the current chunk set, in
// time proportional to the snapshot size rather than its square: one pass
// to index by id/path, a breadth-first walk to mark descendants, one pass
// to partition kept-vs-rebuilt.
func (u *IncrementalUpdater) rebuildSubtrees(oldSnapshot *Snapshot, affectedFiles map[string]bool, allChunks []*chunk.Chunk, repoID, snapshotID string) []*Node {
	pathToNode := make(map[string]*Node, len(oldSnapshot.Nodes))
	idToNode := make(map[string]*Node, len(oldSnapshot.Nodes))
	for _, n := range oldSnapshot.Nodes {
		idToNode[n.ID] = n
		if n.Path != "" {
			pathToNode[n.Path] = n
		}
	}

	affectedIDs := make(map[string]bool)
	var queue []string
	for path := range affectedFiles {
		if n, ok := pathToNode[path]; ok && !affectedIDs[n.ID] {
			affectedIDs[n.ID] = true
			queue = append(queue, n.ID)
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n, ok := idToNode[id]
		if !ok {
			continue
		}
		for _, childID := range n.ChildIDs {
			if !affectedIDs[childID] {
				affectedIDs[childID] = true
				queue = append(queue, childID)
			}
		}
	}

	kept := make([]*Node, 0, len(oldSnapshot.Nodes))
	for _, n := range oldSnapshot.Nodes {
		if !affectedIDs[n.ID] {
			kept = append(kept, n)
		}
	}

	var affectedChunks []*chunk.Chunk
	for _, c := range allChunks {
		if affectedFiles[c.FilePath] {
			affectedChunks = append(affectedChunks, c)
		}
	}
	if len(affectedChunks) == 0 {
		return kept
	}

	treeBuilder := NewTreeBuilder(repoID, snapshotID)
	newNodes := treeBuilder.Build(affectedChunks)
	DetectEntrypoints(newNodes)
	DetectTests(newNodes)

	return append(kept, newNodes...)
}
