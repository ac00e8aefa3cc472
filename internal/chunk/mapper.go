package chunk

import (
	"log/slog"
	"sort"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/ir"
)

// ToIR maps chunk ids to the set of IR node ids under their span.
type ToIR map[string]map[string]struct{}

// ToGraph maps chunk ids to the set of graph node ids they aggregate.
type ToGraph map[string]map[string]struct{}

// structuralFilterExcluded holds the graph node kinds excluded when a
// structural chunk (file/module/project/repo) aggregates its descendants'
// mapped nodes: variables and CFG blocks are too fine-grained to surface
// in a structural summary. Unknown kinds are included by default.
var structuralFilterExcluded = map[graph.NodeKind]bool{
	graph.Variable: true,
	graph.CfgBlock: true,
}

// classLikeChunkKinds mirrors the kinds the Chunk builder treats as class-like
// extended roles, used by the graph-mapping strategy for tier 2.
var classLikeChunkKinds = map[Kind]bool{
	KindClass: true, KindService: true, KindRepository: true,
	KindRoute: true, KindConfig: true, KindJob: true, KindMiddleware: true,
}

// Mapper maps chunks to IR nodes (line containment) and to graph nodes
// (symbol + aggregation + filtering).
type Mapper struct {
	IncludeInherits bool // defaults to false: inherited/referenced symbols stay out of a class chunk's graph mapping
	logger          *slog.Logger
}

// NewMapper creates a ChunkMapper with the production default (INHERITS /
// REFERENCES excluded from chunk-to-graph mapping).
func NewMapper(includeInherits bool, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{IncludeInherits: includeInherits, logger: logger}
}

// MapIR maps each chunk to the IR nodes fully contained in its span and
// matching file path. This is many-to-many upward: one IR node belongs to
// a function chunk, its file chunk, its module chunk, and so on.
func (m *Mapper) MapIR(chunks []*Chunk, docs []*ir.Document) ToIR {
	result := make(ToIR, len(chunks))
	for _, c := range chunks {
		result[c.ChunkID] = make(map[string]struct{})
	}

	for _, d := range docs {
		for i := range d.Nodes {
			n := &d.Nodes[i]
			if !n.Span.Valid() && n.Span.StartLine == 0 && n.Span.EndLine == 0 {
				continue
			}
			for _, c := range chunks {
				if c.FilePath != n.FilePath {
					continue
				}
				if n.Span.StartLine >= c.StartLine && n.Span.EndLine <= c.EndLine {
					result[c.ChunkID][n.ID] = struct{}{}
				}
			}
		}
	}
	return result
}

// MapGraph maps each chunk to graph node ids per a kind-specific strategy:
// function/method direct 1:1, class+extended kinds include the class
// symbol plus public-method symbols of direct children, structural kinds
// union filtered descendants.
func (m *Mapper) MapGraph(chunks []*Chunk, g *graph.Document) ToGraph {
	result := make(ToGraph, len(chunks))
	byID := make(map[string]*Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
		result[c.ChunkID] = make(map[string]struct{})
	}

	// Leaf and class-like kinds are computed directly from the graph and
	// have no dependency on other chunks' results.
	var structural []*Chunk
	for _, c := range chunks {
		switch {
		case c.Kind == KindFunction:
			if c.SymbolID != "" {
				result[c.ChunkID][c.SymbolID] = struct{}{}
			}
		case classLikeChunkKinds[c.Kind]:
			if c.SymbolID != "" {
				result[c.ChunkID][c.SymbolID] = struct{}{}
			}
			for _, childID := range g.Index.ContainsChildren[c.SymbolID] {
				if n, ok := g.GetNode(childID); ok && isPublicMethod(n) {
					result[c.ChunkID][childID] = struct{}{}
				}
			}
			if m.IncludeInherits {
				m.addInheritedAndReferenced(result[c.ChunkID], g, c.SymbolID)
			}
		default:
			structural = append(structural, c)
		}
	}

	// Structural kinds (file, module, project, repo) union filtered
	// descendant results; process deepest-first (file before module
	// before project before repo) so each ancestor sees fully-populated
	// children before aggregating.
	sort.Slice(structural, func(i, j int) bool {
		return structural[i].Kind.Priority() > structural[j].Kind.Priority()
	})
	for _, c := range structural {
		m.unionDescendants(result, c, byID, g)
	}
	return result
}

func (m *Mapper) unionDescendants(result ToGraph, c *Chunk, byID map[string]*Chunk, g *graph.Document) {
	var walk func(id string)
	visited := make(map[string]bool)
	walk = func(id string) {
		child, ok := byID[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		for gid := range result[id] {
			if n, ok := g.GetNode(gid); ok && !structuralFilterExcluded[n.Kind] {
				result[c.ChunkID][gid] = struct{}{}
			} else if !ok {
				result[c.ChunkID][gid] = struct{}{} // unknown kinds included by default
				m.logger.Warn("chunk mapper: graph node not found during aggregation, included by default", "node_id", gid)
			}
		}
		for _, childID := range child.Children {
			walk(childID)
		}
	}
	for _, childID := range c.Children {
		walk(childID)
	}
}

func (m *Mapper) addInheritedAndReferenced(set map[string]struct{}, g *graph.Document, symbolID string) {
	for _, eid := range g.Index.Outgoing[symbolID] {
		e := findEdgeByID(g, eid)
		if e == nil {
			continue
		}
		if e.Kind == graph.Inherits || e.Kind == graph.ReferencesType || e.Kind == graph.ReferencesSymbol {
			set[e.TargetID] = struct{}{}
		}
	}
}

func findEdgeByID(g *graph.Document, id string) *graph.Edge {
	for _, e := range g.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func isPublicMethod(n *graph.Node) bool {
	if n.Kind != graph.Method && n.Kind != graph.Function {
		return false
	}
	if vis, ok := n.Attrs["visibility"].(string); ok && vis != "" {
		return vis == "public"
	}
	return true // unannotated methods default to public for aggregation purposes
}
