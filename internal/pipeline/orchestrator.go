// Package pipeline orchestrates the end-to-end indexing run: file
// discovery, parsing, IR generation, graph building, chunk creation,
// embedding, storage, and repo map construction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/indexer"
	"github.com/codegraph/indexer/internal/ir"
	"github.com/codegraph/indexer/internal/parser"
	"github.com/codegraph/indexer/internal/ports"
	"github.com/codegraph/indexer/internal/repomap"
)

// Sentinel errors surfaced by a run; callers can errors.Is against these
// to distinguish a genuinely empty repo from a mid-pipeline failure.
var (
	ErrNoSourceFiles = errors.New("pipeline: no source files discovered")
	ErrNoIRGenerated = errors.New("pipeline: no file produced an IR document")
)

// Result reports what a single indexing run produced.
type Result struct {
	RepoID         string
	SnapshotID     string
	FilesProcessed int
	FilesSkipped   int
	ChunksCreated  int
	ChunksIndexed  int
	GraphNodes     int
	GraphEdges     int
	RepoMapNodes   int
	Errors         []error
}

// Config controls the optional stages of a run.
type Config struct {
	LargeClassMethodThreshold int
	ProjectID                 string
	EnableEmbedding           bool
	EnableRepoMap             bool
	RepoMapConfig             repomap.BuildConfig
	EmbeddingBatchSize        int
}

// DefaultConfig mirrors the chunk builder's and repomap builder's own
// defaults.
func DefaultConfig() Config {
	return Config{
		LargeClassMethodThreshold: 50,
		EnableEmbedding:           true,
		EnableRepoMap:             true,
		RepoMapConfig:             repomap.DefaultBuildConfig(),
		EmbeddingBatchSize:        64,
	}
}

// Orchestrator wires together the parse/IR/graph/chunk/embed/store/repomap
// stages behind the external collaborator ports.
type Orchestrator struct {
	config     Config
	graphStore ports.GraphStore
	chunkStore ports.ChunkStore
	repoStore  ports.RepoMapStore
	embedder   ports.EmbeddingProvider
	rankCache  repomap.PageRankCache
	semantic   ports.SemanticIRBuilder
	llm        ports.LLMProvider
	logger     *slog.Logger
}

// New creates an orchestrator. embedder and repoStore may be nil, which
// disables the embedding and repo map stages respectively regardless of
// Config's Enable flags. The semantic IR pass defaults to
// ir.NewSemanticIRBuilder and can be overridden with WithSemanticIRBuilder.
func New(config Config, graphStore ports.GraphStore, chunkStore ports.ChunkStore, repoStore ports.RepoMapStore, embedder ports.EmbeddingProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		config: config, graphStore: graphStore, chunkStore: chunkStore,
		repoStore: repoStore, embedder: embedder, logger: logger,
		semantic: ir.NewSemanticIRBuilder(),
	}
}

// WithPageRankCache attaches a cache every repo map build uses to
// warm-start and persist PageRank scores across runs.
func (o *Orchestrator) WithPageRankCache(cache repomap.PageRankCache) *Orchestrator {
	o.rankCache = cache
	return o
}

// WithSemanticIRBuilder overrides the semantic IR pass. Passing nil
// disables it, so the graph builder emits only structural nodes/edges.
func (o *Orchestrator) WithSemanticIRBuilder(builder ports.SemanticIRBuilder) *Orchestrator {
	o.semantic = builder
	return o
}

// WithLLMProvider attaches the language model the repo map summarizer
// calls. Summarization stays disabled (regardless of
// RepoMapConfig.SummaryEnabled) until this is set, since there's nothing
// to generate summaries with otherwise.
func (o *Orchestrator) WithLLMProvider(llmProvider ports.LLMProvider) *Orchestrator {
	o.llm = llmProvider
	return o
}

// buildSemantics runs the semantic IR pass over every parsed document. A
// file whose pass fails is recorded and skipped rather than failing the
// whole run, matching parseFile's own per-file error handling above it.
func (o *Orchestrator) buildSemantics(ctx context.Context, irDocs []*ir.Document, result *Result) []*ir.SemanticSnapshot {
	if o.semantic == nil {
		return nil
	}
	semantics := make([]*ir.SemanticSnapshot, 0, len(irDocs))
	for _, doc := range irDocs {
		snap, err := o.semantic.Build(ctx, doc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("semantic IR %s: %w", doc.FilePath, err))
			continue
		}
		semantics = append(semantics, snap)
	}
	return semantics
}

// IndexFull runs the complete eight-stage pipeline over every source file
// under repoPath.
func (o *Orchestrator) IndexFull(ctx context.Context, repoID, snapshotID, repoPath string, includes, excludes []string) (*Result, error) {
	result := &Result{RepoID: repoID, SnapshotID: snapshotID}
	o.logger.Info("indexing started", "repo", repoID, "snapshot", snapshotID, "path", repoPath)

	// Stage 1: discover files.
	files, err := o.discoverFiles(repoPath, includes, excludes)
	if err != nil {
		return result, fmt.Errorf("discover files: %w", err)
	}
	o.logger.Info("files discovered", "count", len(files))
	if len(files) == 0 {
		return result, ErrNoSourceFiles
	}

	// Stage 2-3: parse each file once, generating its IR document and
	// collecting its raw import/call/extends relationships.
	irDocs := make([]*ir.Document, 0, len(files))
	fileContents := make(map[string]string, len(files))
	var relationships []graph.Relationship
	for _, relPath := range files {
		absPath := filepath.Join(repoPath, relPath)
		source, err := os.ReadFile(absPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("read %s: %w", relPath, err))
			continue
		}
		fileContents[relPath] = string(source)

		doc, rels, err := o.parseFile(repoID, snapshotID, relPath, source)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parse %s: %w", relPath, err))
			continue
		}
		if doc != nil {
			irDocs = append(irDocs, doc)
			relationships = append(relationships, rels...)
			result.FilesProcessed++
		}
	}
	o.logger.Info("IR generated", "documents", len(irDocs))
	if len(irDocs) == 0 {
		return result, ErrNoIRGenerated
	}

	// Stage 3.5: derive type/signature/CFG/DFG facts from each file's IR.
	semantics := o.buildSemantics(ctx, irDocs, result)

	// Stage 4: build the unified graph. Relationship resolution (symbol
	// FQN to graph node id) happens inside graph.Builder.Build.
	graphBuilder := graph.NewBuilder(o.logger)
	graphDoc := graphBuilder.Build(repoID, snapshotID, irDocs, semantics, relationships)
	result.GraphNodes = len(graphDoc.Nodes)
	result.GraphEdges = len(graphDoc.Edges)
	o.logger.Info("graph built", "nodes", result.GraphNodes, "edges", result.GraphEdges)

	// Stage 5: build chunks from the graph plus raw file content.
	chunkBuilder := chunk.NewBuilder(repoID, snapshotID, o.config.ProjectID, o.config.LargeClassMethodThreshold, o.logger)
	chunks, err := chunkBuilder.Build(graphDoc, fileContents)
	if err != nil {
		return result, fmt.Errorf("build chunks: %w", err)
	}
	result.ChunksCreated = len(chunks)
	o.logger.Info("chunks built", "count", result.ChunksCreated)

	// Stage 6: embed and store.
	var embeddings [][]float32
	if o.config.EnableEmbedding && o.embedder != nil {
		embeddings, err = o.embedBatched(ctx, chunks)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("embed chunks: %w", err))
		}
	}

	// Stage 7: index into all available stores.
	if o.graphStore != nil {
		if err := o.graphStore.SaveGraph(ctx, graphDoc); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("save graph: %w", err))
		}
	}
	if o.chunkStore != nil {
		if err := o.chunkStore.SaveChunks(ctx, chunks, embeddings); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("save chunks: %w", err))
		} else {
			result.ChunksIndexed = len(chunks)
		}
	}

	// Stage 8: build the repo map, optional.
	if o.config.EnableRepoMap && o.repoStore != nil {
		repoBuilder := repomap.NewBuilder(o.config.RepoMapConfig, repoPath)
		if o.rankCache != nil {
			repoBuilder = repoBuilder.WithPageRankCache(o.rankCache)
		}
		if o.llm != nil && o.chunkStore != nil {
			repoBuilder = repoBuilder.WithSummarizer(o.llm, o.chunkStore)
			if summaryCache, ok := o.rankCache.(repomap.SummaryCache); ok {
				repoBuilder = repoBuilder.WithSummaryCache(summaryCache)
			}
		}
		snap, err := repoBuilder.Build(repoID, snapshotID, chunks, graphDoc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("build repo map: %w", err))
		} else {
			if err := o.repoStore.SaveSnapshot(ctx, snap); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("save repo map: %w", err))
			}
			result.RepoMapNodes = len(snap.Nodes)
		}
	}

	o.logger.Info("indexing complete", "repo", repoID, "snapshot", snapshotID,
		"files", result.FilesProcessed, "chunks", result.ChunksCreated)
	return result, nil
}

// IndexIncremental re-parses repoPath, diffs the resulting chunk set
// against the repo's previously stored chunks, and persists only what
// changed: new/updated/renamed chunks, the full graph (cheap to
// overwrite), and an incrementally refreshed repo map. commit identifies
// the source revision being indexed, recorded on every touched chunk.
func (o *Orchestrator) IndexIncremental(ctx context.Context, repoID, snapshotID, repoPath, commit string, includes, excludes []string) (*Result, *chunk.RefreshResult, error) {
	result := &Result{RepoID: repoID, SnapshotID: snapshotID}
	o.logger.Info("incremental indexing started", "repo", repoID, "snapshot", snapshotID, "commit", commit)

	files, err := o.discoverFiles(repoPath, includes, excludes)
	if err != nil {
		return result, nil, fmt.Errorf("discover files: %w", err)
	}
	if len(files) == 0 {
		return result, nil, ErrNoSourceFiles
	}

	irDocs := make([]*ir.Document, 0, len(files))
	fileContents := make(map[string]string, len(files))
	var relationships []graph.Relationship
	for _, relPath := range files {
		absPath := filepath.Join(repoPath, relPath)
		source, err := os.ReadFile(absPath)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("read %s: %w", relPath, err))
			continue
		}
		fileContents[relPath] = string(source)

		doc, rels, err := o.parseFile(repoID, snapshotID, relPath, source)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parse %s: %w", relPath, err))
			continue
		}
		if doc != nil {
			irDocs = append(irDocs, doc)
			relationships = append(relationships, rels...)
			result.FilesProcessed++
		}
	}
	if len(irDocs) == 0 {
		return result, nil, ErrNoIRGenerated
	}

	semantics := o.buildSemantics(ctx, irDocs, result)

	graphBuilder := graph.NewBuilder(o.logger)
	graphDoc := graphBuilder.Build(repoID, snapshotID, irDocs, semantics, relationships)
	result.GraphNodes = len(graphDoc.Nodes)
	result.GraphEdges = len(graphDoc.Edges)

	chunkBuilder := chunk.NewBuilder(repoID, snapshotID, o.config.ProjectID, o.config.LargeClassMethodThreshold, o.logger)
	allChunks, err := chunkBuilder.Build(graphDoc, fileContents)
	if err != nil {
		return result, nil, fmt.Errorf("build chunks: %w", err)
	}
	result.ChunksCreated = len(allChunks)

	var prevChunks []*chunk.Chunk
	if o.chunkStore != nil {
		prevChunks, err = o.chunkStore.Search(ctx, repoID, nil, 0)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("load previous chunks: %w", err))
		}
	}

	refresher := chunk.NewRefresher(chunk.SpanDriftThreshold, o.logger)
	refresh := refresher.Refresh(prevChunks, allChunks, commit, nil)
	o.logger.Info("incremental diff computed", "added", len(refresh.Added),
		"updated", len(refresh.Updated), "deleted", len(refresh.Deleted),
		"renamed", len(refresh.Renamed), "drifted", len(refresh.Drifted))

	changed := make([]*chunk.Chunk, 0, len(refresh.Added)+len(refresh.Updated)+len(refresh.Deleted)+len(refresh.Renamed))
	changed = append(changed, refresh.Added...)
	changed = append(changed, refresh.Updated...)
	changed = append(changed, refresh.Deleted...)
	for _, r := range refresh.Renamed {
		changed = append(changed, r.New)
	}

	if o.graphStore != nil {
		if err := o.graphStore.SaveGraph(ctx, graphDoc); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("save graph: %w", err))
		}
	}

	if o.chunkStore != nil && len(changed) > 0 {
		var embeddings [][]float32
		if o.config.EnableEmbedding && o.embedder != nil {
			embeddings, err = o.embedBatched(ctx, changed)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("embed chunks: %w", err))
			}
		}
		if err := o.chunkStore.SaveChunks(ctx, changed, embeddings); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("save chunks: %w", err))
		} else {
			result.ChunksIndexed = len(changed)
		}
	}

	if o.config.EnableRepoMap && o.repoStore != nil {
		updater := repomap.NewIncrementalUpdater(o.repoStore, o.config.RepoMapConfig, repoPath)
		if o.rankCache != nil {
			updater = updater.WithPageRankCache(o.rankCache)
		}
		if o.llm != nil && o.chunkStore != nil {
			updater = updater.WithSummarizer(o.llm, o.chunkStore)
			if summaryCache, ok := o.rankCache.(repomap.SummaryCache); ok {
				updater = updater.WithSummaryCache(summaryCache)
			}
		}
		snap, err := updater.Update(ctx, repoID, snapshotID, *refresh, allChunks, graphDoc)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("update repo map: %w", err))
		} else {
			result.RepoMapNodes = len(snap.Nodes)
		}
	}

	o.logger.Info("incremental indexing complete", "repo", repoID, "snapshot", snapshotID,
		"chunks_changed", len(changed))
	return result, refresh, nil
}

func (o *Orchestrator) discoverFiles(repoPath string, includes, excludes []string) ([]string, error) {
	walker := indexer.NewWalker(includes, excludes)
	var rel []string
	err := walker.Walk(repoPath, func(path string) error {
		r, err := filepath.Rel(repoPath, path)
		if err != nil {
			return err
		}
		rel = append(rel, filepath.ToSlash(r))
		return nil
	})
	return rel, err
}

func (o *Orchestrator) parseFile(repoID, snapshotID, relPath string, source []byte) (*ir.Document, []graph.Relationship, error) {
	lang, ok := parser.DetectLanguage(relPath)
	if !ok {
		return nil, nil, nil
	}
	p, err := parser.NewParser(lang)
	if err != nil {
		return nil, nil, err
	}
	parsed, err := p.ParseWithRelationships(source, relPath)
	if err != nil {
		return nil, nil, err
	}
	doc := parser.ToIRDocument(repoID, snapshotID, relPath, lang, parsed.Symbols)
	rels := parser.ToGraphRelationships(relPath, parsed.Relationships)
	return doc, rels, nil
}

func (o *Orchestrator) embedBatched(ctx context.Context, chunks []*chunk.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = embeddingText(c)
	}

	batchSize := o.config.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := o.embedder.Embed(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func embeddingText(c *chunk.Chunk) string {
	if c.Summary != "" {
		return c.Summary + "\n\n" + c.Content
	}
	return c.Content
}
