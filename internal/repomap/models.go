// Package repomap builds a ranked, hierarchical, optionally summarized
// view of a repository: a tree from repo down to symbol, each node
// carrying structural and historical importance metrics.
package repomap

import "github.com/codegraph/indexer/internal/graph"

// NodeKind is the closed set of hierarchy levels a RepoMap node can
// occupy, mirroring the chunk package's own kind ladder (one node per
// function chunk included), plus dir nodes synthesized from file paths
// and a symbol level.
type NodeKind string

const (
	KindRepo     NodeKind = "repo"
	KindProject  NodeKind = "project"
	KindModule   NodeKind = "module"
	KindDir      NodeKind = "dir"
	KindFile     NodeKind = "file"
	KindClass    NodeKind = "class"
	KindFunction NodeKind = "function"
	KindSymbol   NodeKind = "symbol"
)

// Metrics holds every signal that feeds a node's combined importance
// score.
type Metrics struct {
	LOC          int
	SymbolCount  int
	EdgeDegree   int
	PageRank     float64
	ChangeFreq   float64 // commits per month, from git history
	HotScore     float64
	ErrorScore   float64
	Importance   float64 // combined score, written by the heuristic or pagerank ranker
	DriftScore   float64 // carried from chunk.RefreshResult drift detection
}

// Node is one entry in a RepoMap tree.
type Node struct {
	ID         string
	RepoID     string
	SnapshotID string
	Kind       NodeKind
	Name       string
	Path       string
	FQN        string
	ParentID   string
	ChildIDs   []string
	Depth      int

	ChunkIDs     []string
	GraphNodeIDs []string

	Metrics Metrics

	SummaryTitle string
	SummaryBody  string
	SummaryTags  []string
	SummaryText  string

	Language     string
	IsEntrypoint bool
	IsTest       bool
	Attrs        map[string]any
}

// Snapshot is the full RepoMap tree for one repo at one point in time.
type Snapshot struct {
	RepoID        string
	SnapshotID    string
	RootNodeID    string
	Nodes         []*Node
	SchemaVersion string
}

func (s *Snapshot) byID() map[string]*Node {
	idx := make(map[string]*Node, len(s.Nodes))
	for _, n := range s.Nodes {
		idx[n.ID] = n
	}
	return idx
}

// GetNode looks up a node by id.
func (s *Snapshot) GetNode(id string) *Node {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// GetChildren returns a node's direct children.
func (s *Snapshot) GetChildren(id string) []*Node {
	idx := s.byID()
	n, ok := idx[id]
	if !ok {
		return nil
	}
	var out []*Node
	for _, cid := range n.ChildIDs {
		if c, ok := idx[cid]; ok {
			out = append(out, c)
		}
	}
	return out
}

// GetSubtree returns a node and all of its descendants.
func (s *Snapshot) GetSubtree(id string) []*Node {
	idx := s.byID()
	root, ok := idx[id]
	if !ok {
		return nil
	}
	out := []*Node{root}
	for _, c := range s.GetChildren(id) {
		out = append(out, s.GetSubtree(c.ID)...)
	}
	return out
}

// BuildConfig controls every tunable of the build pipeline: heuristic
// weights, PageRank parameters, and summarization policy.
type BuildConfig struct {
	HeuristicLOCWeight    float64
	HeuristicSymbolWeight float64
	HeuristicEdgeWeight   float64

	PageRankEnabled        bool
	PageRankDamping        float64
	PageRankMaxIterations  int

	SummaryEnabled             bool
	SummaryTopPercent          float64
	SummaryAlwaysEntrypoints   bool

	IncludeTests bool
	MinLOC       int
	MaxDepth     int

	// FullRebuildChangeRatio is the fraction of changed/added/deleted
	// chunks (relative to the previous snapshot's node count) above which
	// an incremental update gives up and performs a full rebuild instead.
	FullRebuildChangeRatio float64
}

// DefaultBuildConfig mirrors the reference tuning: damping 0.85, 20
// PageRank iterations, summarize the top 20% plus entrypoints, and a 50%
// change ratio before falling back to a full rebuild.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		HeuristicLOCWeight:       0.3,
		HeuristicSymbolWeight:    0.4,
		HeuristicEdgeWeight:      0.3,
		PageRankEnabled:          true,
		PageRankDamping:          0.85,
		PageRankMaxIterations:    20,
		SummaryEnabled:           true,
		SummaryTopPercent:        0.2,
		SummaryAlwaysEntrypoints: true,
		IncludeTests:             false,
		MinLOC:                   10,
		MaxDepth:                 10,
		FullRebuildChangeRatio:   0.5,
	}
}

// includeNodeKind reports whether a graph node kind participates in
// PageRank and tree construction: functions, methods, classes, modules,
// files, and external symbols are structural; CFG blocks and variables
// are too fine-grained.
func includeNodeKind(k graph.NodeKind) bool {
	switch k {
	case graph.File, graph.Module, graph.Class, graph.Function, graph.Method,
		graph.ExternalModule, graph.ExternalFunction:
		return true
	default:
		return false
	}
}
