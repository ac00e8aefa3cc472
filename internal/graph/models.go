// Package graph builds and stores the unified GraphDocument: typed nodes,
// typed edges, and the precomputed indices derived from them.
package graph

// NodeKind is the full set of semantic kinds a GraphNode can carry. The
// Graph layer is the single source of truth for these kinds; the Chunk
// builder derives chunk kinds from them, never the reverse.
type NodeKind string

const (
	File             NodeKind = "File"
	Module           NodeKind = "Module"
	Class            NodeKind = "Class"
	Function         NodeKind = "Function"
	Method           NodeKind = "Method"
	Type             NodeKind = "Type"
	Signature        NodeKind = "Signature"
	CfgBlock         NodeKind = "CfgBlock"
	Variable         NodeKind = "Variable"
	ExternalModule   NodeKind = "ExternalModule"
	ExternalFunction NodeKind = "ExternalFunction"
	Route            NodeKind = "Route"
	Service          NodeKind = "Service"
	Repository       NodeKind = "Repository"
	Config           NodeKind = "Config"
	Job              NodeKind = "Job"
	Middleware       NodeKind = "Middleware"
	Summary          NodeKind = "Summary"
)

// EdgeKind is the full set of relationship kinds a GraphEdge can carry.
type EdgeKind string

const (
	Contains        EdgeKind = "CONTAINS"
	Imports         EdgeKind = "IMPORTS"
	Calls           EdgeKind = "CALLS"
	Inherits        EdgeKind = "INHERITS"
	Implements      EdgeKind = "IMPLEMENTS"
	ReferencesType  EdgeKind = "REFERENCES_TYPE"
	ReferencesSymbol EdgeKind = "REFERENCES_SYMBOL"
	Reads           EdgeKind = "READS"
	Writes          EdgeKind = "WRITES"
	CfgNext         EdgeKind = "CFG_NEXT"
	CfgBranch       EdgeKind = "CFG_BRANCH"
	CfgLoop         EdgeKind = "CFG_LOOP"
	CfgHandler      EdgeKind = "CFG_HANDLER"
	RouteHandler    EdgeKind = "ROUTE_HANDLER"
	HandlesRequest  EdgeKind = "HANDLES_REQUEST"
	UsesRepository  EdgeKind = "USES_REPOSITORY"
	MiddlewareNext  EdgeKind = "MIDDLEWARE_NEXT"
	Instantiates    EdgeKind = "INSTANTIATES"
	Decorates       EdgeKind = "DECORATES"
)

// Span mirrors ir.Span without importing internal/ir, keeping graph
// storable independent of the parser's in-memory representation.
type Span struct {
	StartLine int
	EndLine   int
}

// Node is one typed vertex in a GraphDocument.
type Node struct {
	ID         string
	Kind       NodeKind
	RepoID     string
	SnapshotID string
	FQN        string
	Name       string
	Path       string
	Span       *Span
	Attrs      map[string]any
}

// Edge is one typed, directed relationship between two Nodes.
type Edge struct {
	ID       string
	Kind     EdgeKind
	SourceID string
	TargetID string
	Attrs    map[string]any
}

// Index holds the derived lookup structures rebuilt whenever the edge list
// mutates.
type Index struct {
	ContainsChildren  map[string][]string            // parent id -> child ids
	Outgoing          map[string][]string            // node id -> edge ids
	Incoming          map[string][]string            // node id -> edge ids
	Callers           map[string]map[string]struct{} // callee id -> caller id set
	TypeUsers         map[string]map[string]struct{} // type id -> user id set
	ReadsBy           map[string]map[string]struct{} // variable id -> cfg block id set
	WritesBy          map[string]map[string]struct{} // variable id -> cfg block id set
	RoutesByPath      map[string]string               // path -> route node id
	ServicesByDomain  map[string][]string             // domain tag -> service node ids
	DecoratorsByTarget map[string][]string            // target id -> decorator node ids
	RequestFlowIndex  map[string][]string             // route id -> ordered handler/service/repository id chain
}

// newIndex allocates all maps so callers never need a nil check.
func newIndex() *Index {
	return &Index{
		ContainsChildren:   make(map[string][]string),
		Outgoing:           make(map[string][]string),
		Incoming:           make(map[string][]string),
		Callers:            make(map[string]map[string]struct{}),
		TypeUsers:          make(map[string]map[string]struct{}),
		ReadsBy:            make(map[string]map[string]struct{}),
		WritesBy:           make(map[string]map[string]struct{}),
		RoutesByPath:       make(map[string]string),
		ServicesByDomain:   make(map[string][]string),
		DecoratorsByTarget: make(map[string][]string),
		RequestFlowIndex:   make(map[string][]string),
	}
}

// Document is the merged node+edge+index data structure for one snapshot of
// one repository.
type Document struct {
	RepoID     string
	SnapshotID string
	Nodes      map[string]*Node
	Edges      []*Edge
	Index      *Index
}

// NewDocument creates an empty GraphDocument ready for node/edge emission.
func NewDocument(repoID, snapshotID string) *Document {
	return &Document{
		RepoID:     repoID,
		SnapshotID: snapshotID,
		Nodes:      make(map[string]*Node),
		Edges:      nil,
		Index:      newIndex(),
	}
}

// AddNode inserts or replaces a node by id.
func (d *Document) AddNode(n *Node) {
	d.Nodes[n.ID] = n
}

// GetNode looks up a node by id.
func (d *Document) GetNode(id string) (*Node, bool) {
	n, ok := d.Nodes[id]
	return n, ok
}
