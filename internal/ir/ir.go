// Package ir defines the language-agnostic intermediate representation
// produced per file by the Parser port and decorated by the semantic IR
// builder.
package ir

// NodeKind enumerates the structural kinds an IR node can carry.
type NodeKind string

const (
	KindFile     NodeKind = "file"
	KindModule   NodeKind = "module"
	KindClass    NodeKind = "class"
	KindFunction NodeKind = "function"
	KindMethod   NodeKind = "method"
	KindImport   NodeKind = "import"
	KindVariable NodeKind = "variable"
)

// Role tags a node with a framework-level responsibility. Empty means the
// node carries no special role and the Graph builder emits a plain kind.
type Role string

const (
	RoleService    Role = "service"
	RoleRepository Role = "repository"
	RoleRoute      Role = "route"
	RoleConfig     Role = "config"
	RoleJob        Role = "job"
	RoleMiddleware Role = "middleware"
)

// Span is a (file, start_line, end_line[, columns]) region.
type Span struct {
	StartLine int
	EndLine   int
	StartCol  int
	EndCol    int
}

// Contains reports whether s fully contains other within the same file.
func (s Span) Contains(other Span) bool {
	return other.StartLine >= s.StartLine && other.EndLine <= s.EndLine
}

// Valid reports whether the span's start precedes or equals its end.
func (s Span) Valid() bool {
	return s.StartLine <= s.EndLine
}

// Node is one definition extracted from a source file.
type Node struct {
	ID       string
	Kind     NodeKind
	FQN      string
	Name     string
	FilePath string
	Span     Span
	Language string
	Role     Role
	Attrs    map[string]any
}

// Document is the per-file IR: repo id, snapshot id, and an ordered
// sequence of nodes.
type Document struct {
	RepoID     string
	SnapshotID string
	FilePath   string
	Language   string
	Nodes      []Node
}

// CFGEdgeKind is the subkind of a control-flow transition.
type CFGEdgeKind string

const (
	CFGNext    CFGEdgeKind = "next"
	CFGBranch  CFGEdgeKind = "branch"
	CFGLoop    CFGEdgeKind = "loop"
	CFGHandler CFGEdgeKind = "handler"
)

// CFGBlock is one basic block in a function's control-flow graph.
type CFGBlock struct {
	ID                string
	FunctionID        string
	DefinedVariableIDs []string
	UsedVariableIDs    []string
}

// CFGEdge connects two CFG blocks.
type CFGEdge struct {
	FromBlockID string
	ToBlockID   string
	Kind        CFGEdgeKind
}

// DFGEventKind distinguishes a definition from a use in the data-flow graph.
type DFGEventKind string

const (
	DFGDef DFGEventKind = "def"
	DFGUse DFGEventKind = "use"
)

// DFGVariable is one variable tracked by the data-flow graph.
type DFGVariable struct {
	ID   string
	Name string
}

// DFGEvent records one def/use occurrence of a variable inside a CFG block.
type DFGEvent struct {
	VariableID string
	BlockID    string
	Kind       DFGEventKind
}

// TypeEntity, SignatureEntity decorate the IR with semantic detail.
type TypeEntity struct {
	ID   string
	Name string
	FQN  string
}

type SignatureEntity struct {
	ID         string
	OwnerID    string // function/method node id this signature belongs to
	ParamTypes []string
	ReturnType string
}

// SemanticSnapshot decorates one file's IR with types, signatures, CFGs and
// a DFG summary.
type SemanticSnapshot struct {
	FilePath   string
	Types      []TypeEntity
	Signatures []SignatureEntity
	CFGBlocks  []CFGBlock
	CFGEdges   []CFGEdge
	Variables  []DFGVariable
	DFGEvents  []DFGEvent
}
