package repomap

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/codegraph/indexer/internal/chunk"
)

// LLMProvider generates free-text completions. ports.LLMProvider
// satisfies this directly; it's redeclared here rather than imported to
// avoid a cycle (ports already imports repomap for RepoMapStore).
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ChunkSource retrieves a chunk's source text by id, the one piece of
// per-node context a leaf summary is grounded on. ports.ChunkStore
// satisfies this.
type ChunkSource interface {
	GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error)
}

// TwoLevelSummary is the unit both leaf and parent summarization
// produce: a one-sentence overview for display in a compact tree, and a
// longer description for anyone drilling into the node.
type TwoLevelSummary struct {
	Overview       string
	Detailed       string
	AggregatedFrom int // number of child summaries folded into this one; 0 for a leaf
}

// maxAggregatedChildren bounds how many child overviews a parent prompt
// includes, so a directory with hundreds of files doesn't blow the
// per-summary token budget on its own listing.
const maxAggregatedChildren = 15

// LeafSummarizer generates a single LLM summary for one node from its
// first chunk's source text, content-hash cached so an unchanged chunk
// is never re-summarized.
type LeafSummarizer struct {
	llm        LLMProvider
	cache      SummaryCache
	chunkStore ChunkSource
	maxTokens  int
}

// NewLeafSummarizer creates a leaf summarizer. A nil cache disables
// caching (every call reaches the LLM).
func NewLeafSummarizer(llm LLMProvider, cache SummaryCache, chunkStore ChunkSource, maxTokens int) *LeafSummarizer {
	if maxTokens <= 0 {
		maxTokens = 200
	}
	return &LeafSummarizer{llm: llm, cache: cache, chunkStore: chunkStore, maxTokens: maxTokens}
}

// Summarize produces a single-sentence-ready summary string for n, or ""
// if it has no chunk to read. Any LLM failure is returned to the caller,
// which is expected to fall back to a deterministic summary rather than
// fail the whole build.
func (s *LeafSummarizer) Summarize(ctx context.Context, n *Node) (string, error) {
	if len(n.ChunkIDs) == 0 || s.chunkStore == nil || s.llm == nil {
		return "", nil
	}
	c, err := s.chunkStore.GetByID(ctx, n.ChunkIDs[0])
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", nil
	}

	if c.ContentHash != "" && s.cache != nil {
		if cached, err := s.cache.GetSummary(ctx, c.ContentHash); err == nil && cached != "" {
			return cached, nil
		}
	}

	prompt := leafPrompt(n, c.Content)
	summary, err := s.llm.Generate(ctx, prompt, s.maxTokens)
	if err != nil {
		return "", err
	}
	summary = strings.TrimSpace(summary)

	if c.ContentHash != "" && s.cache != nil {
		_ = s.cache.SetSummary(ctx, c.ContentHash, summary, summaryCacheTTL)
	}
	return summary, nil
}

// leafPrompt builds a kind-tailored summarization prompt, mirroring the
// per-kind templates a hierarchical summarizer uses: function/class/file
// get a template naming what to focus on, anything else gets a generic
// one.
func leafPrompt(n *Node, code string) string {
	name := n.FQN
	if name == "" {
		name = n.Name
	}
	var b strings.Builder
	switch n.Kind {
	case KindFunction:
		fmt.Fprintf(&b, "Summarize this function in 1-2 sentences. Focus on its purpose and behavior, not implementation detail.\n\nFunction: %s\n", name)
	case KindClass:
		fmt.Fprintf(&b, "Summarize this class in 1-2 sentences. Focus on its responsibility and key methods.\n\nClass: %s\n", name)
	case KindFile:
		fmt.Fprintf(&b, "Summarize this file in 1-2 sentences. Focus on its main purpose and what it exports.\n\nFile: %s\n", n.Path)
	default:
		fmt.Fprintf(&b, "Summarize this %s in 1-2 sentences.\n\n%s: %s\n", n.Kind, n.Kind, name)
	}
	fmt.Fprintf(&b, "Code:\n```%s\n%s\n```\n\nSummary:", n.Language, truncateForPrompt(code))
	return b.String()
}

// truncateForPrompt caps the code a leaf prompt embeds, mirroring the
// cost controller's own 2000-input-token (~8000 character) ceiling so a
// single oversized function can't blow the per-call budget on its own.
func truncateForPrompt(code string) string {
	const maxChars = 8000
	if len(code) <= maxChars {
		return code
	}
	return code[:maxChars] + "\n... (truncated)"
}

// firstSentence extracts a short overview from a longer summary, used
// when a leaf's full summary doubles as both levels.
func firstSentence(text string) string {
	const maxLen = 150
	for _, sep := range []string{". ", ".\n", "? ", "! "} {
		if idx := strings.Index(text, sep); idx >= 0 {
			s := text[:idx+1]
			if len(s) > maxLen {
				s = s[:maxLen]
			}
			return s
		}
	}
	if len(text) > maxLen {
		return text[:maxLen]
	}
	return text
}

// HierarchicalSummarizer walks a RepoMap tree bottom-up: every node with
// no summarizable children goes through LeafSummarizer directly, and
// every other node aggregates its already-summarized children into a
// parent summary with one further LLM call. Nodes at the same depth are
// processed concurrently, bounded by maxConcurrent.
type HierarchicalSummarizer struct {
	leaf          *LeafSummarizer
	llm           LLMProvider
	cost          *CostController
	maxConcurrent int
}

// NewHierarchicalSummarizer creates a summarizer. cost may be nil to
// disable budget enforcement (every target node gets summarized).
func NewHierarchicalSummarizer(leaf *LeafSummarizer, llmProvider LLMProvider, cost *CostController, maxConcurrent int) *HierarchicalSummarizer {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &HierarchicalSummarizer{leaf: leaf, llm: llmProvider, cost: cost, maxConcurrent: maxConcurrent}
}

// isLeafKind reports whether a node should be summarized directly from
// its own source rather than by aggregating children.
func isLeafKind(n *Node) bool {
	if len(n.ChildIDs) == 0 {
		return true
	}
	switch n.Kind {
	case KindFunction, KindClass, KindSymbol:
		return true
	default:
		return false
	}
}

// SummarizeTree summarizes every node in targets, returning a map of
// node id to the summary produced. Nodes outside targets are skipped
// entirely (no entry, no cost). Leaf nodes beyond the cost controller's
// token budget get a cheap, deterministic placeholder instead of an LLM
// call; aggregation at parent nodes always runs since its cost is a
// single small call regardless of subtree size.
func (h *HierarchicalSummarizer) SummarizeTree(ctx context.Context, nodes []*Node, targets map[string]bool) map[string]TwoLevelSummary {
	byID := make(map[string]*Node, len(nodes))
	byDepth := make(map[int][]*Node)
	maxDepth := 0
	var leafCandidates []*Node

	for _, n := range nodes {
		byID[n.ID] = n
		if !targets[n.ID] {
			continue
		}
		byDepth[n.Depth] = append(byDepth[n.Depth], n)
		if n.Depth > maxDepth {
			maxDepth = n.Depth
		}
		if isLeafKind(n) {
			leafCandidates = append(leafCandidates, n)
		}
	}

	budgeted := make(map[string]bool, len(leafCandidates))
	if h.cost != nil {
		for _, n := range h.cost.Select(leafCandidates, nil) {
			budgeted[n.ID] = true
		}
	} else {
		for _, n := range leafCandidates {
			budgeted[n.ID] = true
		}
	}

	summaries := make(map[string]TwoLevelSummary, len(targets))
	var mu sync.Mutex

	for depth := maxDepth; depth >= 0; depth-- {
		depthNodes := byDepth[depth]
		if len(depthNodes) == 0 {
			continue
		}
		sem := make(chan struct{}, h.maxConcurrent)
		var wg sync.WaitGroup
		for _, n := range depthNodes {
			n := n
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()

				var summary TwoLevelSummary
				if isLeafKind(n) {
					if budgeted[n.ID] {
						summary = h.summarizeLeaf(ctx, n)
					} else {
						summary = TwoLevelSummary{
							Overview: fmt.Sprintf("%s %s", n.Kind, n.Name),
							Detailed: "summary skipped: outside the snapshot's token budget",
						}
					}
				} else {
					summary = h.summarizeParent(ctx, n, byID, &summaries, &mu)
				}

				mu.Lock()
				summaries[n.ID] = summary
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	return summaries
}

func (h *HierarchicalSummarizer) summarizeLeaf(ctx context.Context, n *Node) TwoLevelSummary {
	text, err := h.leaf.Summarize(ctx, n)
	if err != nil || text == "" {
		return TwoLevelSummary{
			Overview: fmt.Sprintf("%s %s", n.Kind, n.Name),
			Detailed: fmt.Sprintf("no summary available for %s", n.Name),
		}
	}
	return TwoLevelSummary{Overview: firstSentence(text), Detailed: text}
}

type childSummary struct {
	name       string
	overview   string
	importance float64
}

func (h *HierarchicalSummarizer) summarizeParent(ctx context.Context, n *Node, byID map[string]*Node, summaries *map[string]TwoLevelSummary, mu *sync.Mutex) TwoLevelSummary {
	var children []childSummary
	mu.Lock()
	for _, cid := range n.ChildIDs {
		s, ok := (*summaries)[cid]
		if !ok {
			continue
		}
		cn := byID[cid]
		name, importance := cid, 0.0
		if cn != nil {
			name, importance = cn.Name, cn.Metrics.Importance
		}
		children = append(children, childSummary{name: name, overview: s.Overview, importance: importance})
	}
	mu.Unlock()

	if len(children) == 0 {
		return TwoLevelSummary{
			Overview: fmt.Sprintf("%s %s", n.Kind, n.Name),
			Detailed: fmt.Sprintf("%s with %d components", n.Kind, len(n.ChildIDs)),
		}
	}

	sort.SliceStable(children, func(i, j int) bool { return children[i].importance > children[j].importance })
	if len(children) > maxAggregatedChildren {
		children = children[:maxAggregatedChildren]
	}

	var list strings.Builder
	for _, c := range children {
		fmt.Fprintf(&list, "- %s: %s\n", c.name, c.overview)
	}
	prompt := fmt.Sprintf(
		"The following are the key components of %s '%s':\n\n%s\nSummarize the overall purpose and responsibility of this %s in two parts.\n\nOverview: [one concise sentence]\nDetailed: [2-3 sentences on purpose, main functionality, and responsibilities]",
		n.Kind, n.Name, list.String(), n.Kind,
	)

	fallback := TwoLevelSummary{
		Overview:       fmt.Sprintf("%s %s", n.Kind, n.Name),
		Detailed:       fmt.Sprintf("%s aggregating %d components", n.Kind, len(children)),
		AggregatedFrom: len(children),
	}
	if h.llm == nil {
		return fallback
	}

	response, err := h.llm.Generate(ctx, prompt, 200)
	if err != nil {
		return fallback
	}
	overview, detailed := parseAggregateResponse(response)
	if overview == "" {
		return fallback
	}
	return TwoLevelSummary{Overview: overview, Detailed: detailed, AggregatedFrom: len(children)}
}

// parseAggregateResponse splits an "Overview: ...\nDetailed: ..."
// formatted completion into its two parts, tolerating a model that
// wraps a field across multiple lines or omits the labels entirely.
func parseAggregateResponse(response string) (overview, detailed string) {
	lines := strings.Split(strings.TrimSpace(response), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "Overview:"):
			overview = strings.TrimSpace(strings.TrimPrefix(line, "Overview:"))
		case strings.HasPrefix(line, "Detailed:"):
			detailed = strings.TrimSpace(strings.TrimPrefix(line, "Detailed:"))
		case detailed != "":
			detailed += " " + line
		case overview != "":
			detailed = line
		default:
			overview = line
		}
	}
	const maxOverview, maxDetailed = 150, 500
	if len(overview) > maxOverview {
		overview = overview[:maxOverview]
	}
	if len(detailed) > maxDetailed {
		detailed = detailed[:maxDetailed]
	}
	if detailed == "" {
		detailed = overview
	}
	return overview, detailed
}

// selectSummaryTargets returns the ids of nodes that should be
// LLM-summarized directly: the top SummaryTopPercent of nodes by
// importance, plus every entrypoint when SummaryAlwaysEntrypoints is
// set.
func selectSummaryTargets(nodes []*Node, config BuildConfig) map[string]bool {
	ranked := make([]*Node, len(nodes))
	copy(ranked, nodes)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Metrics.Importance > ranked[j].Metrics.Importance })

	pct := config.SummaryTopPercent
	if pct <= 0 {
		pct = 0.2
	}
	cutoff := int(math.Ceil(float64(len(ranked)) * pct))
	if cutoff > len(ranked) {
		cutoff = len(ranked)
	}

	targets := make(map[string]bool, cutoff)
	for _, n := range ranked[:cutoff] {
		targets[n.ID] = true
	}
	if config.SummaryAlwaysEntrypoints {
		for _, n := range nodes {
			if n.IsEntrypoint {
				targets[n.ID] = true
			}
		}
	}
	return targets
}

// withAncestors adds every ancestor of a target node to the set, so a
// hierarchical summarizer can aggregate all the way to the root even
// when only a minority of leaves were selected for summarization.
func withAncestors(nodes []*Node, targets map[string]bool) map[string]bool {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	out := make(map[string]bool, len(targets))
	for id := range targets {
		out[id] = true
	}
	for id := range targets {
		n := byID[id]
		for n != nil && n.ParentID != "" && !out[n.ParentID] {
			out[n.ParentID] = true
			n = byID[n.ParentID]
		}
	}
	return out
}

// ApplySummaries writes generated summaries back onto their nodes.
func ApplySummaries(nodes []*Node, summaries map[string]TwoLevelSummary) {
	for _, n := range nodes {
		s, ok := summaries[n.ID]
		if !ok {
			continue
		}
		n.SummaryTitle = s.Overview
		n.SummaryBody = s.Detailed
		n.SummaryText = s.Detailed
	}
}
