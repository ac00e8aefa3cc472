// Package chunk builds, maps, and incrementally refreshes the hierarchical
// chunk tree: a symbol-first decomposition of a repository snapshot into
// retrievable units (repo/project/module/file/class/function plus
// framework roles), with stable ids and content-hash based dedup.
package chunk

// Kind is the closed set of hierarchy levels a Chunk can occupy.
type Kind string

const (
	KindRepo       Kind = "repo"
	KindProject    Kind = "project"
	KindModule     Kind = "module"
	KindFile       Kind = "file"
	KindClass      Kind = "class"
	KindFunction   Kind = "function"
	KindRoute      Kind = "route"
	KindService    Kind = "service"
	KindRepository Kind = "repository"
	KindConfig     Kind = "config"
	KindJob        Kind = "job"
	KindMiddleware Kind = "middleware"
)

// kindPriority orders kinds deterministically for stable chunk emission
// order: sort by kind priority then FQN.
var kindPriority = map[Kind]int{
	KindRepo: 0, KindProject: 1, KindModule: 2, KindFile: 3,
	KindClass: 4, KindService: 4, KindRepository: 4, KindRoute: 4,
	KindConfig: 4, KindJob: 4, KindMiddleware: 4,
	KindFunction: 5,
}

// Priority returns the deterministic sort rank for this kind.
func (k Kind) Priority() int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return 99
}

// Visibility mirrors the IR's symbol_visibility field.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityInternal Visibility = "internal"
	VisibilityPrivate  Visibility = "private"
)

// Chunk is a hierarchical unit of code for retrieval.
// ID format: chunk:{repo_id}:{kind}:{fqn}[:{hash8}] (see idgen.go).
type Chunk struct {
	ChunkID    string
	RepoID     string
	SnapshotID string
	ProjectID  string
	ModulePath string
	FilePath   string

	Kind Kind
	FQN  string

	StartLine int
	EndLine   int

	// Original span at first index; used for drift detection.
	OriginalStartLine int
	OriginalEndLine   int

	ContentHash string

	ParentID string
	Children []string

	Language         string
	SymbolVisibility Visibility

	SymbolID      string // unset unless this chunk represents its own graph symbol
	SymbolOwnerID string // actual definition symbol; differs from SymbolID for re-exports/wrappers

	Content string // raw text of the chunk's span, hashed to produce ContentHash

	Summary    string
	Importance float64
	Attrs      map[string]any

	Version           int
	LastIndexedCommit string
	IsDeleted         bool
}

// TokenEstimate gives a rough token count for cost-control purposes:
// ~4 characters per token.
func (c *Chunk) TokenEstimate() int {
	return len(c.Content) / 4
}

// IsTest reports whether this chunk belongs to test code, read from Attrs
// rather than a dedicated field since it is one of several optional,
// loosely-typed annotations a chunk may carry.
func (c *Chunk) IsTest() bool {
	v, _ := c.Attrs["is_test"].(bool)
	return v
}

// RetrievalWeight returns 0.5 for test chunks, 1.0 otherwise, so ranking
// and retrieval favor production code over tests by default.
func (c *Chunk) RetrievalWeight() float32 {
	if c.IsTest() {
		return 0.5
	}
	return 1.0
}

// HasSecrets reports whether the secret detector redacted content from
// this chunk before hashing.
func (c *Chunk) HasSecrets() bool {
	v, _ := c.Attrs["has_secrets"].(bool)
	return v
}
