package repomap

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/codegraph/indexer/internal/chunk"
)

// kindDepth gives each chunk kind's base depth in the tree, before
// adjusting for the number of path segments in a file chunk.
var kindDepth = map[chunk.Kind]int{
	chunk.KindRepo: 0, chunk.KindProject: 1, chunk.KindModule: 2,
	chunk.KindFile: 3, chunk.KindClass: 4, chunk.KindFunction: 5,
}

// TreeBuilder turns a flat chunk list into a RepoMap tree: a repo root,
// synthesized directory nodes for every directory on a file chunk's
// path, and one node per remaining chunk.
type TreeBuilder struct {
	repoID     string
	snapshotID string
	nodes      map[string]*Node
	chunkToNode map[string]string // chunk id -> repomap node id
}

// NewTreeBuilder creates a tree builder for one repo snapshot.
func NewTreeBuilder(repoID, snapshotID string) *TreeBuilder {
	return &TreeBuilder{
		repoID:      repoID,
		snapshotID:  snapshotID,
		nodes:       make(map[string]*Node),
		chunkToNode: make(map[string]string),
	}
}

// Build produces the full RepoMap node list from a chunk tree.
func (b *TreeBuilder) Build(chunks []*chunk.Chunk) []*Node {
	rootID := b.createRoot(chunks)
	b.buildDirNodes(chunks, rootID)
	b.createChunkNodes(chunks, rootID)
	b.aggregateMetricsBottomUp()

	out := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *TreeBuilder) createRoot(chunks []*chunk.Chunk) string {
	rootID := fmt.Sprintf("repomap:%s:%s:repo:%s", b.repoID, b.snapshotID, b.repoID)
	var chunkIDs []string
	for _, c := range chunks {
		if c.Kind == chunk.KindRepo {
			chunkIDs = append(chunkIDs, c.ChunkID)
			b.chunkToNode[c.ChunkID] = rootID
		}
	}
	b.nodes[rootID] = &Node{
		ID: rootID, RepoID: b.repoID, SnapshotID: b.snapshotID,
		Kind: KindRepo, Name: b.repoID, Depth: 0, ChunkIDs: chunkIDs,
	}
	return rootID
}

func (b *TreeBuilder) dirNodeID(dirPath string) string {
	return fmt.Sprintf("repomap:%s:%s:dir:%s", b.repoID, b.snapshotID, dirPath)
}

func (b *TreeBuilder) buildDirNodes(chunks []*chunk.Chunk, rootID string) {
	dirSet := make(map[string]bool)
	for _, c := range chunks {
		if c.Kind != chunk.KindFile || c.FilePath == "" {
			continue
		}
		for p := path.Dir(c.FilePath); p != "." && p != "/"; p = path.Dir(p) {
			dirSet[p] = true
		}
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return strings.Count(dirs[i], "/") < strings.Count(dirs[j], "/") })

	for _, dir := range dirs {
		dirID := b.dirNodeID(dir)
		parentPath := path.Dir(dir)
		parentID := rootID
		if parentPath != "." && parentPath != "/" {
			parentID = b.dirNodeID(parentPath)
		}
		depth := strings.Count(dir, "/") + 1
		node := &Node{
			ID: dirID, RepoID: b.repoID, SnapshotID: b.snapshotID,
			Kind: KindDir, Name: path.Base(dir), Path: dir, ParentID: parentID, Depth: depth,
		}
		b.nodes[dirID] = node
		if parent, ok := b.nodes[parentID]; ok {
			appendUniqueChild(parent, dirID)
		}
	}
}

func (b *TreeBuilder) createChunkNodes(chunks []*chunk.Chunk, rootID string) {
	sorted := make([]*chunk.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return kindRank(sorted[i].Kind) < kindRank(sorted[j].Kind)
	})

	for _, c := range sorted {
		if c.Kind == chunk.KindRepo {
			continue
		}
		var nodeKind NodeKind
		var identifier string
		switch c.Kind {
		case chunk.KindFile:
			nodeKind, identifier = KindFile, firstNonEmpty(c.FilePath, c.FQN)
		case chunk.KindClass:
			nodeKind, identifier = KindClass, c.FQN
		case chunk.KindFunction:
			nodeKind, identifier = KindFunction, c.FQN
		case chunk.KindModule:
			nodeKind, identifier = KindModule, firstNonEmpty(c.ModulePath, c.FQN)
		case chunk.KindProject:
			nodeKind, identifier = KindProject, firstNonEmpty(c.ProjectID, c.FQN)
		default:
			// Framework roles (service/repository/route/config/job/middleware)
			// surface in the tree as classes so they get class-like
			// aggregation (MAX pagerank, public-method rollup).
			nodeKind, identifier = KindClass, c.FQN
		}
		if identifier == "" {
			continue
		}

		nodeID := fmt.Sprintf("repomap:%s:%s:%s:%s", b.repoID, b.snapshotID, nodeKind, identifier)
		parentID := b.findParentID(c, rootID)
		depth := depthFor(c)

		node := &Node{
			ID: nodeID, RepoID: b.repoID, SnapshotID: b.snapshotID,
			Kind: nodeKind, Name: displayName(c), Path: c.FilePath, FQN: c.FQN,
			ParentID: parentID, Depth: depth, ChunkIDs: []string{c.ChunkID},
			Metrics:  Metrics{LOC: estimateLOC(c), SymbolCount: symbolCount(c)},
			Language: c.Language,
		}
		if c.SymbolID != "" {
			node.GraphNodeIDs = append(node.GraphNodeIDs, c.SymbolID)
		}
		b.nodes[nodeID] = node
		b.chunkToNode[c.ChunkID] = nodeID
		if parent, ok := b.nodes[parentID]; ok {
			appendUniqueChild(parent, nodeID)
		}
	}
}

func (b *TreeBuilder) findParentID(c *chunk.Chunk, rootID string) string {
	if c.ParentID != "" {
		if pid, ok := b.chunkToNode[c.ParentID]; ok {
			return pid
		}
	}
	switch c.Kind {
	case chunk.KindFile:
		if c.FilePath != "" {
			dir := path.Dir(c.FilePath)
			if dir == "." || dir == "/" {
				return rootID
			}
			return b.dirNodeID(dir)
		}
	case chunk.KindClass, chunk.KindFunction:
		if c.FilePath != "" {
			return fmt.Sprintf("repomap:%s:%s:file:%s", b.repoID, b.snapshotID, c.FilePath)
		}
	}
	return rootID
}

// aggregateMetricsBottomUp rolls LOC and symbol count up from leaves to
// root in a single depth-descending pass, so each node contributes to
// its parent exactly once.
func (b *TreeBuilder) aggregateMetricsBottomUp() {
	sorted := make([]*Node, 0, len(b.nodes))
	for _, n := range b.nodes {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Depth > sorted[j].Depth })

	for _, n := range sorted {
		if n.ParentID == "" {
			continue
		}
		parent, ok := b.nodes[n.ParentID]
		if !ok {
			continue
		}
		parent.Metrics.LOC += n.Metrics.LOC
		parent.Metrics.SymbolCount += n.Metrics.SymbolCount
	}
}

func kindRank(k chunk.Kind) int {
	if k == chunk.KindRepo {
		return 0
	}
	r, ok := kindDepth[k]
	if !ok {
		return 4 // framework roles rank alongside class
	}
	return r
}

func depthFor(c *chunk.Chunk) int {
	base, ok := kindDepth[c.Kind]
	if !ok {
		base = 3
	}
	if c.FilePath != "" {
		return base + strings.Count(c.FilePath, "/")
	}
	return base
}

func displayName(c *chunk.Chunk) string {
	if c.Kind == chunk.KindFile && c.FilePath != "" {
		return path.Base(c.FilePath)
	}
	if c.FQN != "" {
		parts := strings.Split(c.FQN, ".")
		return parts[len(parts)-1]
	}
	if c.FilePath != "" {
		return path.Base(c.FilePath)
	}
	return string(c.Kind)
}

func estimateLOC(c *chunk.Chunk) int {
	if c.EndLine >= c.StartLine && c.StartLine > 0 {
		return c.EndLine - c.StartLine + 1
	}
	return 0
}

func symbolCount(c *chunk.Chunk) int {
	if c.Kind == chunk.KindClass || c.Kind == chunk.KindFunction {
		return 1
	}
	return 0
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func appendUniqueChild(parent *Node, childID string) {
	for _, id := range parent.ChildIDs {
		if id == childID {
			return
		}
	}
	parent.ChildIDs = append(parent.ChildIDs, childID)
}

// HeuristicMetricsCalculator derives a combined importance score from
// min-max normalized LOC, symbol count, and edge degree, with
// entrypoint/test adjustments layered on top.
type HeuristicMetricsCalculator struct {
	config BuildConfig
}

// NewHeuristicMetricsCalculator creates a calculator using config's
// heuristic weights.
func NewHeuristicMetricsCalculator(config BuildConfig) *HeuristicMetricsCalculator {
	return &HeuristicMetricsCalculator{config: config}
}

// ComputeImportance writes Metrics.Importance in place as a weighted sum
// of min-max normalized LOC, symbol count, and edge degree, clamped to
// [0, 1].
func (h *HeuristicMetricsCalculator) ComputeImportance(nodes []*Node) {
	if len(nodes) == 0 {
		return
	}
	locMin, locMax := minMaxInt(nodes, func(n *Node) int { return n.Metrics.LOC })
	symMin, symMax := minMaxInt(nodes, func(n *Node) int { return n.Metrics.SymbolCount })
	edgeMin, edgeMax := minMaxInt(nodes, func(n *Node) int { return n.Metrics.EdgeDegree })

	for _, n := range nodes {
		importance := h.config.HeuristicLOCWeight*normalize(float64(n.Metrics.LOC), float64(locMin), float64(locMax)) +
			h.config.HeuristicSymbolWeight*normalize(float64(n.Metrics.SymbolCount), float64(symMin), float64(symMax)) +
			h.config.HeuristicEdgeWeight*normalize(float64(n.Metrics.EdgeDegree), float64(edgeMin), float64(edgeMax))
		n.Metrics.Importance = clamp01(importance)
	}
}

// BoostEntrypoints multiplies entrypoint nodes' importance by factor,
// clamped to 1.0.
func (h *HeuristicMetricsCalculator) BoostEntrypoints(nodes []*Node, factor float64) {
	for _, n := range nodes {
		if n.IsEntrypoint {
			n.Metrics.Importance = clamp01(n.Metrics.Importance * factor)
		}
	}
}

// PenalizeTests multiplies test nodes' importance by factor.
func (h *HeuristicMetricsCalculator) PenalizeTests(nodes []*Node, factor float64) {
	for _, n := range nodes {
		if n.IsTest {
			n.Metrics.Importance *= factor
		}
	}
}

func minMaxInt(nodes []*Node, get func(*Node) int) (int, int) {
	min, max := get(nodes[0]), get(nodes[0])
	for _, n := range nodes[1:] {
		v := get(n)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

func normalize(v, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (v - min) / (max - min)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var (
	entrypointPathPatterns = regexp.MustCompile(`(?i)\b(main|cli|app|server|router|routes)\b|__main__`)
	entrypointFQNPatterns  = regexp.MustCompile(`(?i)\b(main|route|endpoint|handler|entrypoint)\b`)
	testDirPattern         = regexp.MustCompile(`(?i)(^|/)(tests?|__tests__|__test__)/`)
	testSuffixPattern      = regexp.MustCompile(`(?i)(_test\.py|\.test\.[jt]sx?|\.spec\.[jt]sx?|\.spec\.py)$`)
)

// DetectEntrypoints marks nodes whose path or FQN looks like an
// application entrypoint (main, CLI, server, router, route, handler).
func DetectEntrypoints(nodes []*Node) {
	for _, n := range nodes {
		if n.Path != "" && entrypointPathPatterns.MatchString(strings.ToLower(n.Path)) {
			n.IsEntrypoint = true
			continue
		}
		if n.FQN != "" && entrypointFQNPatterns.MatchString(strings.ToLower(n.FQN)) {
			n.IsEntrypoint = true
		}
	}
}

// DetectTests marks nodes whose path or FQN looks like test code.
func DetectTests(nodes []*Node) {
	for _, n := range nodes {
		lowerPath := strings.ToLower(n.Path)
		if lowerPath != "" {
			if testDirPattern.MatchString(lowerPath) || testSuffixPattern.MatchString(lowerPath) {
				n.IsTest = true
				continue
			}
			filename := path.Base(lowerPath)
			if strings.HasPrefix(filename, "test_") || filename == "conftest.py" {
				n.IsTest = true
				continue
			}
		}
		if n.FQN != "" {
			last := strings.ToLower(n.FQN)
			if idx := strings.LastIndex(last, "."); idx >= 0 {
				last = last[idx+1:]
			}
			if strings.HasPrefix(last, "test_") || strings.HasPrefix(last, "fixture_") {
				n.IsTest = true
			}
		}
	}
}
