package repomap

// aggregationStrategy picks how a node's PageRank score is derived from
// the scores of the graph nodes it references.
type aggregationStrategy int

const (
	aggMean aggregationStrategy = iota // direct 1:1 mapping for function/symbol nodes
	aggMax                             // a class's importance is its most important method
	aggSum                             // file/module/repo importance is cumulative
)

func strategyForKind(k NodeKind) aggregationStrategy {
	switch k {
	case KindFunction, KindSymbol:
		return aggMean
	case KindClass:
		return aggMax
	case KindFile, KindModule, KindDir, KindRepo, KindProject:
		return aggSum
	default:
		return aggMean
	}
}

// AggregatePageRank writes each node's Metrics.PageRank in place by
// combining the PageRank scores of its referenced graph nodes according
// to a kind-specific strategy: functions/symbols map directly, classes
// take their most important method, everything structural sums its
// children's contributions.
func AggregatePageRank(nodes []*Node, scores map[string]float64) {
	for _, n := range nodes {
		var matched []float64
		for _, gid := range n.GraphNodeIDs {
			if s, ok := scores[gid]; ok {
				matched = append(matched, s)
			}
		}
		if len(matched) == 0 {
			n.Metrics.PageRank = 0
			continue
		}
		switch strategyForKind(n.Kind) {
		case aggMax:
			max := matched[0]
			for _, s := range matched[1:] {
				if s > max {
					max = s
				}
			}
			n.Metrics.PageRank = max
		case aggSum:
			var sum float64
			for _, s := range matched {
				sum += s
			}
			n.Metrics.PageRank = sum
		default:
			var sum float64
			for _, s := range matched {
				sum += s
			}
			n.Metrics.PageRank = sum / float64(len(matched))
		}
	}
}

// AggregateDegree writes each node's Metrics.EdgeDegree from the sum of
// in+out degree of every graph node it references.
func AggregateDegree(nodes []*Node, degree map[string]DegreeStats) {
	for _, n := range nodes {
		var total int
		for _, gid := range n.GraphNodeIDs {
			if d, ok := degree[gid]; ok {
				total += d.TotalDegree
			}
		}
		n.Metrics.EdgeDegree = total
	}
}
