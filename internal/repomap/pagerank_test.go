package repomap

import (
	"testing"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/stretchr/testify/assert"
)

func newFuncNode(id string) *graph.Node {
	return &graph.Node{ID: id, Kind: graph.Function, FQN: id, Name: id}
}

func buildCallGraph() *graph.Document {
	doc := graph.NewDocument("repo1", "snap1")
	doc.Nodes["main"] = newFuncNode("main")
	doc.Nodes["helper1"] = newFuncNode("helper1")
	doc.Nodes["helper2"] = newFuncNode("helper2")
	doc.Edges = append(doc.Edges,
		&graph.Edge{ID: "e1", Kind: graph.Calls, SourceID: "main", TargetID: "helper1"},
		&graph.Edge{ID: "e2", Kind: graph.Calls, SourceID: "main", TargetID: "helper2"},
		&graph.Edge{ID: "e3", Kind: graph.Calls, SourceID: "helper1", TargetID: "helper2"},
	)
	return doc
}

func TestPageRankCallChainRanking(t *testing.T) {
	engine := NewPageRankEngine(DefaultBuildConfig())
	scores := engine.Compute(buildCallGraph())

	assert.Greater(t, scores["helper2"], scores["helper1"])
	assert.GreaterOrEqual(t, scores["helper1"], scores["main"])
}

func TestPageRankScoresSumToOne(t *testing.T) {
	engine := NewPageRankEngine(DefaultBuildConfig())
	scores := engine.Compute(buildCallGraph())

	var total float64
	for _, s := range scores {
		total += s
	}
	assert.InDelta(t, 1.0, total, 1e-6)
}

func TestPageRankEmptyGraphReturnsEmptyMap(t *testing.T) {
	doc := graph.NewDocument("repo1", "snap1")
	engine := NewPageRankEngine(DefaultBuildConfig())
	scores := engine.Compute(doc)
	assert.Empty(t, scores)
}

func TestComputePersonalizedPageRankFavorsSeeds(t *testing.T) {
	g := buildCallGraph()
	lg := buildLinkGraph(g, defaultEdgeFilter())

	uniform := computePersonalizedPageRank(lg, 0.85, 20, 1e-6, nil)
	personalized := computePersonalizedPageRank(lg, 0.85, 20, 1e-6, map[string]float64{"main": 1.0})

	assert.Greater(t, personalized["main"], uniform["main"])
}

func TestComputeDegreeStats(t *testing.T) {
	stats := ComputeDegreeStats(buildCallGraph())

	assert.Equal(t, 2, stats["main"].OutDegree)
	assert.Equal(t, 0, stats["main"].InDegree)
	assert.Equal(t, 2, stats["helper2"].InDegree)
}

func TestTopN(t *testing.T) {
	scores := map[string]float64{"a": 0.5, "b": 0.3, "c": 0.2}
	top := TopN(scores, 2)

	assert.Len(t, top, 2)
	assert.Equal(t, "a", top[0].NodeID)
	assert.Equal(t, "b", top[1].NodeID)
}
