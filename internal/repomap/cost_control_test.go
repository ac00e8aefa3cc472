package repomap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func selectedIDs(nodes []*Node) []string {
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestCostControllerFiltersBelowImportanceThreshold(t *testing.T) {
	c := NewCostController(DefaultSummaryCostConfig())
	nodes := []*Node{
		{ID: "a", ChunkIDs: []string{"ca"}, Metrics: Metrics{Importance: 0.1, LOC: 10}},
		{ID: "b", ChunkIDs: []string{"cb"}, Metrics: Metrics{Importance: 0.9, LOC: 10}},
	}
	selected := c.Select(nodes, nil)
	assert.Equal(t, []string{"b"}, selectedIDs(selected))
}

func TestCostControllerSkipsNodesWithoutChunks(t *testing.T) {
	c := NewCostController(DefaultSummaryCostConfig())
	nodes := []*Node{
		{ID: "a", Metrics: Metrics{Importance: 0.9, LOC: 10}},
	}
	assert.Empty(t, c.Select(nodes, nil))
}

func TestCostControllerSkipsOverBudgetNodeButKeepsCheaperOnesAfter(t *testing.T) {
	config := DefaultSummaryCostConfig()
	config.MaxTokensPerSnapshot = 500
	c := NewCostController(config)

	// "big" (2000 LOC) costs min(2000*4,2000)+150 = 2150, over budget alone.
	// "small" (10 LOC) costs 10*4+150 = 190, fits even after "big" is skipped.
	nodes := []*Node{
		{ID: "big", ChunkIDs: []string{"c1"}, Metrics: Metrics{Importance: 0.9, LOC: 2000}},
		{ID: "small", ChunkIDs: []string{"c2"}, Metrics: Metrics{Importance: 0.8, LOC: 10}},
	}
	selected := c.Select(nodes, nil)

	assert.Equal(t, []string{"small"}, selectedIDs(selected))
	assert.LessOrEqual(t, c.UsedTokens(), config.MaxTokensPerSnapshot)
}

func TestCostControllerOrdersByImportanceDescending(t *testing.T) {
	c := NewCostController(DefaultSummaryCostConfig())
	nodes := []*Node{
		{ID: "low", ChunkIDs: []string{"c1"}, Metrics: Metrics{Importance: 0.4, LOC: 5}},
		{ID: "high", ChunkIDs: []string{"c2"}, Metrics: Metrics{Importance: 0.95, LOC: 5}},
		{ID: "mid", ChunkIDs: []string{"c3"}, Metrics: Metrics{Importance: 0.6, LOC: 5}},
	}
	selected := c.Select(nodes, nil)
	assert.Equal(t, []string{"high", "mid", "low"}, selectedIDs(selected))
}

func TestCostControllerCachedNodesDontCountAgainstBudget(t *testing.T) {
	config := DefaultSummaryCostConfig()
	config.MaxTokensPerSnapshot = 300
	c := NewCostController(config)

	nodes := []*Node{
		{ID: "cached", ChunkIDs: []string{"c1"}, Metrics: Metrics{Importance: 0.9, LOC: 2000}},
		{ID: "fresh", ChunkIDs: []string{"c2"}, Metrics: Metrics{Importance: 0.8, LOC: 10}},
	}
	cached := func(n *Node) bool { return n.ID == "cached" }

	selected := c.Select(nodes, cached)
	assert.Equal(t, []string{"cached", "fresh"}, selectedIDs(selected))
	assert.LessOrEqual(t, c.UsedTokens(), config.MaxTokensPerSnapshot)
}
