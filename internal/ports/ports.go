// Package ports declares the external collaborator contracts the
// pipeline depends on: parsing, language-model access, embeddings, and
// the three storage backends (graph, chunk, repo map). Each concrete
// adapter package (neo4jstore, storepostgres, storeqdrant, ...) implements
// one of these against a real backend.
package ports

import (
	"context"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/ir"
	"github.com/codegraph/indexer/internal/parser"
	"github.com/codegraph/indexer/internal/repomap"
)

// Parser extracts symbols and structural relationships from one file's
// source text.
type Parser interface {
	ParseWithRelationships(source []byte, filePath string) (*parser.ParseResult, error)
}

// LLMProvider generates free-text completions, used by the repo map
// summarizer to produce natural-language descriptions of code.
type LLMProvider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// EmbeddingProvider turns chunk text into vectors for semantic retrieval.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// GraphStore persists and queries a graph.Document.
type GraphStore interface {
	SaveGraph(ctx context.Context, doc *graph.Document) error
	DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error
	QueryContainsChildren(ctx context.Context, id string) ([]string, error)
	QueryCalledBy(ctx context.Context, id string) ([]string, error)
}

// ChunkStore persists chunks and their embeddings for retrieval.
type ChunkStore interface {
	SaveChunks(ctx context.Context, chunks []*chunk.Chunk, embeddings [][]float32) error
	DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error
	Search(ctx context.Context, repoID string, queryVector []float32, topK int) ([]*chunk.Chunk, error)
	GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error)
}

// RepoMapStore persists and loads the full ranked, hierarchical repo map
// tree for a snapshot. It also satisfies repomap.Store, so the
// incremental updater can use any concrete adapter directly.
type RepoMapStore interface {
	SaveSnapshot(ctx context.Context, snap *repomap.Snapshot) error
	GetSnapshot(ctx context.Context, repoID, snapshotID string) (*repomap.Snapshot, error)
	DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error
}

// SemanticIRBuilder derives type/signature/CFG/DFG facts from parsed IR,
// the stage between Parser output and the Graph Builder.
type SemanticIRBuilder interface {
	Build(ctx context.Context, doc *ir.Document) (*ir.SemanticSnapshot, error)
}
