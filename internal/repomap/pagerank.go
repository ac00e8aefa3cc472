package repomap

import (
	"sort"

	"github.com/codegraph/indexer/internal/graph"
)

// edgeFilter controls which graph edge kinds contribute to the PageRank
// link graph. Calls and imports are on by default; inherits/references
// are available but off, since they tend to connect everything to a few
// common base classes and drown out the signal.
type edgeFilter struct {
	includeCalls     bool
	includeImports   bool
	includeInherits  bool
	includeReferences bool
}

func defaultEdgeFilter() edgeFilter {
	return edgeFilter{includeCalls: true, includeImports: true}
}

func (f edgeFilter) allows(k graph.EdgeKind) bool {
	switch k {
	case graph.Calls:
		return f.includeCalls
	case graph.Imports:
		return f.includeImports
	case graph.Inherits:
		return f.includeInherits
	case graph.ReferencesType:
		return f.includeReferences
	default:
		return false
	}
}

// linkGraph is the directed adjacency the PageRank engine iterates over:
// nodes restricted to structural kinds, edges restricted by edgeFilter.
type linkGraph struct {
	nodes   []string
	out     map[string][]string // outgoing adjacency
	inCount map[string]int      // in-degree, used to detect dangling/sink nodes
}

func buildLinkGraph(g *graph.Document, filter edgeFilter) *linkGraph {
	lg := &linkGraph{out: make(map[string][]string), inCount: make(map[string]int)}
	included := make(map[string]bool)
	for _, n := range g.Nodes {
		if includeNodeKind(n.Kind) {
			included[n.ID] = true
			lg.nodes = append(lg.nodes, n.ID)
		}
	}
	for _, e := range g.Edges {
		if !filter.allows(e.Kind) {
			continue
		}
		if !included[e.SourceID] || !included[e.TargetID] {
			continue
		}
		lg.out[e.SourceID] = append(lg.out[e.SourceID], e.TargetID)
		lg.inCount[e.TargetID]++
	}
	sort.Strings(lg.nodes)
	return lg
}

// DegreeStats reports in/out/total degree per node for the filtered link
// graph, independent of PageRank.
type DegreeStats struct {
	InDegree    int
	OutDegree   int
	TotalDegree int
}

// ComputeDegreeStats returns degree stats for every node with at least
// one filtered edge.
func ComputeDegreeStats(g *graph.Document) map[string]DegreeStats {
	lg := buildLinkGraph(g, defaultEdgeFilter())
	stats := make(map[string]DegreeStats)
	for src, targets := range lg.out {
		s := stats[src]
		s.OutDegree += len(targets)
		stats[src] = s
		for _, t := range targets {
			ts := stats[t]
			ts.InDegree++
			stats[t] = ts
		}
	}
	for id, s := range stats {
		s.TotalDegree = s.InDegree + s.OutDegree
		stats[id] = s
	}
	return stats
}

// PageRankEngine computes PageRank scores over the call/import graph via
// power iteration, the standard implementation of the algorithm absent a
// graph library offering it for Go.
type PageRankEngine struct {
	config BuildConfig
	filter edgeFilter
}

// NewPageRankEngine creates an engine using config's damping factor and
// iteration cap.
func NewPageRankEngine(config BuildConfig) *PageRankEngine {
	return &PageRankEngine{config: config, filter: defaultEdgeFilter()}
}

// Compute returns a PageRank score per included node, normalized so
// scores sum to 1.0 (empty graphs return an empty map).
func (e *PageRankEngine) Compute(g *graph.Document) map[string]float64 {
	lg := buildLinkGraph(g, e.filter)
	return computePageRank(lg, e.config.PageRankDamping, e.config.PageRankMaxIterations, 1e-6)
}

// ComputePersonalized restricts the random-jump distribution to seeds
// (an affected subset of nodes), so scores concentrate around them. It
// still runs the power iteration over the whole link graph.
func (e *PageRankEngine) ComputePersonalized(g *graph.Document, seeds []string) map[string]float64 {
	lg := buildLinkGraph(g, e.filter)
	personalization := make(map[string]float64, len(seeds))
	for _, s := range seeds {
		personalization[s] = 1.0
	}
	return computePersonalizedPageRank(lg, e.config.PageRankDamping, e.config.PageRankMaxIterations, 1e-6, personalization)
}

// ComputeSeeded is like Compute but warm-starts the power iteration from
// a prior run's scores instead of a uniform distribution, converging
// faster when the graph has changed only slightly since seed was produced.
func (e *PageRankEngine) ComputeSeeded(g *graph.Document, seed map[string]float64) map[string]float64 {
	if len(seed) == 0 {
		return e.Compute(g)
	}
	lg := buildLinkGraph(g, e.filter)
	return computePersonalizedPageRank(lg, e.config.PageRankDamping, e.config.PageRankMaxIterations, 1e-6, seed)
}

// TopN returns the top n (node id, score) pairs sorted by score
// descending.
func TopN(scores map[string]float64, n int) []struct {
	NodeID string
	Score  float64
} {
	type pair struct {
		NodeID string
		Score  float64
	}
	pairs := make([]pair, 0, len(scores))
	for id, s := range scores {
		pairs = append(pairs, pair{id, s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		return pairs[i].NodeID < pairs[j].NodeID
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]struct {
		NodeID string
		Score  float64
	}, len(pairs))
	for i, p := range pairs {
		out[i] = struct {
			NodeID string
			Score  float64
		}{p.NodeID, p.Score}
	}
	return out
}

func computePageRank(lg *linkGraph, damping float64, maxIter int, tol float64) map[string]float64 {
	return computePersonalizedPageRank(lg, damping, maxIter, tol, nil)
}

// computePersonalizedPageRank runs standard power-iteration PageRank. With
// a nil/empty personalization map, the random jump is uniform over all
// nodes (standard PageRank); with a non-empty one, the jump is restricted
// to the given seed nodes (personalized PageRank), matching networkx's
// personalization parameter semantics.
func computePersonalizedPageRank(lg *linkGraph, damping float64, maxIter int, tol float64, personalization map[string]float64) map[string]float64 {
	n := len(lg.nodes)
	if n == 0 {
		return map[string]float64{}
	}

	jump := make(map[string]float64, n)
	if len(personalization) == 0 {
		uniform := 1.0 / float64(n)
		for _, id := range lg.nodes {
			jump[id] = uniform
		}
	} else {
		var total float64
		for _, w := range personalization {
			total += w
		}
		for _, id := range lg.nodes {
			if w, ok := personalization[id]; ok && total > 0 {
				jump[id] = w / total
			}
		}
	}

	scores := make(map[string]float64, n)
	for id, w := range jump {
		scores[id] = w
	}
	for _, id := range lg.nodes {
		if _, ok := scores[id]; !ok {
			scores[id] = 0
		}
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)
		// Dangling nodes (no outgoing edges) redistribute their mass
		// according to the jump distribution, matching networkx's
		// handling of sinks.
		var danglingMass float64
		for _, id := range lg.nodes {
			if len(lg.out[id]) == 0 {
				danglingMass += scores[id]
			}
		}
		for _, id := range lg.nodes {
			next[id] = (1-damping)*jump[id] + damping*danglingMass*jump[id]
		}
		for _, id := range lg.nodes {
			outLinks := lg.out[id]
			if len(outLinks) == 0 {
				continue
			}
			share := damping * scores[id] / float64(len(outLinks))
			for _, target := range outLinks {
				next[target] += share
			}
		}

		var delta float64
		for _, id := range lg.nodes {
			d := next[id] - scores[id]
			if d < 0 {
				d = -d
			}
			delta += d
		}
		scores = next
		if delta < tol {
			break
		}
	}
	return scores
}
