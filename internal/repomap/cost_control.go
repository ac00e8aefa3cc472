package repomap

import "sort"

// SummaryCostConfig bounds how much of a snapshot gets LLM-summarized in
// one build.
type SummaryCostConfig struct {
	MaxTokensPerSnapshot      int
	MaxTokensPerSummary       int
	MinImportanceThreshold    float64
	InputTokensPerLOC         int
	EstimatedOutputTokens     int
}

// DefaultSummaryCostConfig mirrors the reference tuning: a 100k token
// snapshot budget, 500-token summaries, and a 0.3 importance floor below
// which a node isn't worth summarizing at all.
func DefaultSummaryCostConfig() SummaryCostConfig {
	return SummaryCostConfig{
		MaxTokensPerSnapshot:   100_000,
		MaxTokensPerSummary:    500,
		MinImportanceThreshold: 0.3,
		InputTokensPerLOC:      4,
		EstimatedOutputTokens:  150,
	}
}

// CostController selects which nodes to summarize within a token budget,
// spending the budget on the most important nodes first.
type CostController struct {
	config     SummaryCostConfig
	usedTokens int
}

// NewCostController creates a controller with the given budget.
func NewCostController(config SummaryCostConfig) *CostController {
	return &CostController{config: config}
}

// estimateNodeCost approximates the token cost of summarizing a node:
// its source capped at 2000 input tokens (~500 lines) plus a fixed
// output allowance.
func (c *CostController) estimateNodeCost(n *Node) int {
	input := n.Metrics.LOC * c.config.InputTokensPerLOC
	if input > 2000 {
		input = 2000
	}
	return input + c.config.EstimatedOutputTokens
}

// Select returns the subset of candidates to summarize, most-important
// first, stopping once the snapshot's token budget would be exceeded.
// cached, if non-nil, excludes nodes whose summary is already cached
// (and so costs nothing this run) from the accounting but not from the
// result.
func (c *CostController) Select(candidates []*Node, cached func(*Node) bool) []*Node {
	var eligible []*Node
	for _, n := range candidates {
		if n.Metrics.Importance < c.config.MinImportanceThreshold {
			continue
		}
		if len(n.ChunkIDs) == 0 {
			continue
		}
		eligible = append(eligible, n)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Metrics.Importance > eligible[j].Metrics.Importance
	})

	c.usedTokens = 0
	var selected []*Node
	for _, n := range eligible {
		if cached != nil && cached(n) {
			selected = append(selected, n)
			continue
		}
		cost := c.estimateNodeCost(n)
		if c.usedTokens+cost > c.config.MaxTokensPerSnapshot {
			continue
		}
		c.usedTokens += cost
		selected = append(selected, n)
	}
	return selected
}

// UsedTokens reports the estimated cost of the most recent Select call.
func (c *CostController) UsedTokens() int { return c.usedTokens }
