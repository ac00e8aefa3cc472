package chunk

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/security"
)

// graphKindToChunkKind is the fixed graph-to-chunk kind mapping: the graph
// layer owns semantic kind assignment, the chunk builder only translates it.
var graphKindToChunkKind = map[graph.NodeKind]Kind{
	graph.Service:    KindService,
	graph.Repository: KindRepository,
	graph.Route:      KindRoute,
	graph.Config:     KindConfig,
	graph.Job:        KindJob,
	graph.Middleware: KindMiddleware,
	graph.Class:      KindClass,
	graph.Function:   KindFunction,
	graph.Method:     KindFunction,
	graph.File:       KindFile,
	graph.Module:     KindModule,
}

// Builder walks a graph.Document and produces the chunk tree for one
// repo snapshot.
type Builder struct {
	idGen                     *IDGenerator
	repoID                    string
	snapshotID                string
	projectID                 string
	largeClassMethodThreshold int // method-count threshold before a class's content is summarized (default 50)
	secretDetector            *security.SecretDetector
	logger                    *slog.Logger
}

// NewBuilder creates a Chunk Builder scoped to one repo snapshot.
func NewBuilder(repoID, snapshotID, projectID string, largeClassMethodThreshold int, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if largeClassMethodThreshold <= 0 {
		largeClassMethodThreshold = 50
	}
	return &Builder{
		idGen:                     NewIDGenerator(repoID),
		repoID:                    repoID,
		snapshotID:                snapshotID,
		projectID:                 projectID,
		largeClassMethodThreshold: largeClassMethodThreshold,
		secretDetector:            security.NewSecretDetector(),
		logger:                    logger,
	}
}

// redact scrubs any detected secrets from content before it is hashed or
// stored, returning the redacted text and whether anything was found.
func (b *Builder) redact(content string) (string, bool) {
	secrets := b.secretDetector.Detect(content)
	if len(secrets) == 0 {
		return content, false
	}
	return b.secretDetector.Redact(content, secrets), true
}

// Build produces the full chunk tree from a GraphDocument. fileContents
// supplies the raw source of each file path, used to extract chunk text by
// span and compute content hashes; a path missing from the map yields an
// empty-content chunk (still structurally valid, just unhashed-over-text).
func (b *Builder) Build(g *graph.Document, fileContents map[string]string) ([]*Chunk, error) {
	b.idGen.Reset()
	parentOf := invertContains(g.Index.ContainsChildren)

	var chunks []*Chunk
	graphToChunkID := make(map[string]string)

	repoChunk := b.makeStructuralChunk(KindRepo, b.repoID, "", fmt.Sprintf("repo:%s", b.repoID))
	chunks = append(chunks, repoChunk)

	var projectChunkID string
	if b.projectID != "" {
		projectChunk := b.makeStructuralChunk(KindProject, b.projectID, repoChunk.ChunkID, fmt.Sprintf("project:%s", b.projectID))
		chunks = append(chunks, projectChunk)
		projectChunkID = projectChunk.ChunkID
	}
	structuralRoot := repoChunk.ChunkID
	if projectChunkID != "" {
		structuralRoot = projectChunkID
	}

	moduleNodes := nodesOfKind(g, graph.Module)
	sort.Slice(moduleNodes, func(i, j int) bool { return strings.Count(moduleNodes[i].FQN, ".") < strings.Count(moduleNodes[j].FQN, ".") })
	for _, n := range moduleNodes {
		parentChunkID := structuralRoot
		if gp, ok := parentOf[n.ID]; ok {
			if pcID, ok := graphToChunkID[gp]; ok {
				parentChunkID = pcID
			}
		}
		c := b.makeStructuralChunk(KindModule, n.FQN, parentChunkID, n.FQN)
		c.ModulePath = n.FQN
		chunks = append(chunks, c)
		graphToChunkID[n.ID] = c.ChunkID
	}

	fileNodes := nodesOfKind(g, graph.File)
	sort.Slice(fileNodes, func(i, j int) bool { return fileNodes[i].Path < fileNodes[j].Path })
	for _, n := range fileNodes {
		parentChunkID := structuralRoot
		if gp, ok := parentOf[n.ID]; ok {
			if pcID, ok := graphToChunkID[gp]; ok {
				parentChunkID = pcID
			}
		}
		content, hasSecrets := b.redact(fileContents[n.Path])
		c := &Chunk{
			ChunkID:    b.idGen.Generate(KindFile, n.Path, ContentHash(content)),
			RepoID:     b.repoID,
			SnapshotID: b.snapshotID,
			FilePath:   n.Path,
			Kind:       KindFile,
			FQN:        n.Path,
			ParentID:   parentChunkID,
			Content:    content,
			Version:    1,
			Attrs:      map[string]any{"has_secrets": hasSecrets},
		}
		c.StartLine, c.EndLine = 1, lineCount(content)
		c.OriginalStartLine, c.OriginalEndLine = c.StartLine, c.EndLine
		c.ContentHash = ContentHash(content)
		chunks = append(chunks, c)
		graphToChunkID[n.ID] = c.ChunkID
	}

	// Class-like nodes (class plus extended framework roles) parent to the
	// enclosing file, or to an enclosing class for nested classes.
	classLikeKinds := []graph.NodeKind{graph.Class, graph.Service, graph.Repository, graph.Route, graph.Config, graph.Job, graph.Middleware}
	for _, kind := range classLikeKinds {
		for _, n := range nodesOfKind(g, kind) {
			parentChunkID := resolveParentChunkID(n.ID, parentOf, graphToChunkID, structuralRoot)
			chunkKind := graphKindToChunkKind[n.Kind]
			content, hasSecrets := b.redact(extractSpan(fileContents[n.Path], n.Span))

			methodCount := countMethodChildren(g, n.ID)
			if chunkKind == KindClass && methodCount > b.largeClassMethodThreshold {
				content = b.summarizeLargeClass(n.Name, content, g, n.ID)
				b.logger.Info("chunk: large class summarized", "fqn", n.FQN, "methods", methodCount)
			}

			c := &Chunk{
				ChunkID:       b.idGen.Generate(chunkKind, n.FQN, ContentHash(content)),
				RepoID:        b.repoID,
				SnapshotID:    b.snapshotID,
				FilePath:      n.Path,
				Kind:          chunkKind,
				FQN:           n.FQN,
				ParentID:      parentChunkID,
				Content:       content,
				SymbolID:      n.ID,
				SymbolOwnerID: n.ID,
				Version:       1,
				Attrs:         map[string]any{"has_secrets": hasSecrets},
			}
			if n.Span != nil {
				c.StartLine, c.EndLine = n.Span.StartLine, n.Span.EndLine
			}
			c.OriginalStartLine, c.OriginalEndLine = c.StartLine, c.EndLine
			c.ContentHash = ContentHash(content)
			chunks = append(chunks, c)
			graphToChunkID[n.ID] = c.ChunkID
		}
	}

	for _, kind := range []graph.NodeKind{graph.Function, graph.Method} {
		for _, n := range nodesOfKind(g, kind) {
			parentChunkID := resolveParentChunkID(n.ID, parentOf, graphToChunkID, structuralRoot)
			content, hasSecrets := b.redact(extractSpan(fileContents[n.Path], n.Span))

			c := &Chunk{
				ChunkID:       b.idGen.Generate(KindFunction, n.FQN, ContentHash(content)),
				RepoID:        b.repoID,
				SnapshotID:    b.snapshotID,
				FilePath:      n.Path,
				Kind:          KindFunction,
				FQN:           n.FQN,
				ParentID:      parentChunkID,
				Content:       content,
				SymbolID:      n.ID,
				SymbolOwnerID: n.ID,
				Version:       1,
				Attrs:         map[string]any{"has_secrets": hasSecrets},
			}
			if n.Span != nil {
				c.StartLine, c.EndLine = n.Span.StartLine, n.Span.EndLine
			}
			c.OriginalStartLine, c.OriginalEndLine = c.StartLine, c.EndLine
			c.ContentHash = ContentHash(content)
			chunks = append(chunks, c)
			graphToChunkID[n.ID] = c.ChunkID
		}
	}

	linkChildren(chunks)
	sortChunksDeterministically(chunks)
	return chunks, nil
}

func (b *Builder) makeStructuralChunk(kind Kind, fqn, parentID, contentSeed string) *Chunk {
	hash := ContentHash(contentSeed)
	return &Chunk{
		ChunkID:    b.idGen.Generate(kind, fqn, hash),
		RepoID:     b.repoID,
		SnapshotID: b.snapshotID,
		Kind:       kind,
		FQN:        fqn,
		ParentID:   parentID,
		Content:    contentSeed,
		ContentHash: hash,
		Version:    1,
	}
}

// summarizeLargeClass replaces a large class's content with a method-name
// summary rather than its full source, bounding its token footprint while
// still emitting every method as its own function chunk.
func (b *Builder) summarizeLargeClass(className, originalContent string, g *graph.Document, classNodeID string) string {
	var methodNames []string
	for _, childID := range g.Index.ContainsChildren[classNodeID] {
		if n, ok := g.GetNode(childID); ok && (n.Kind == graph.Method || n.Kind == graph.Function) {
			methodNames = append(methodNames, n.Name)
		}
	}
	return fmt.Sprintf("class %s:\n    # %d methods, flattened into individual chunks\n    # Methods: %s",
		className, len(methodNames), strings.Join(methodNames, ", "))
}

func countMethodChildren(g *graph.Document, nodeID string) int {
	count := 0
	for _, childID := range g.Index.ContainsChildren[nodeID] {
		if n, ok := g.GetNode(childID); ok && (n.Kind == graph.Method || n.Kind == graph.Function) {
			count++
		}
	}
	return count
}

func resolveParentChunkID(graphNodeID string, parentOf map[string]string, graphToChunkID map[string]string, fallback string) string {
	gp, ok := parentOf[graphNodeID]
	if !ok {
		return fallback
	}
	if pcID, ok := graphToChunkID[gp]; ok {
		return pcID
	}
	return fallback
}

func invertContains(containsChildren map[string][]string) map[string]string {
	parentOf := make(map[string]string)
	for parent, children := range containsChildren {
		for _, child := range children {
			parentOf[child] = parent
		}
	}
	return parentOf
}

func nodesOfKind(g *graph.Document, kind graph.NodeKind) []*graph.Node {
	var out []*graph.Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func extractSpan(content string, span *graph.Span) string {
	if content == "" || span == nil {
		return ""
	}
	lines := strings.Split(content, "\n")
	start := span.StartLine - 1
	end := span.EndLine
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n")
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

func linkChildren(chunks []*Chunk) {
	byID := make(map[string]*Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}
	for _, c := range chunks {
		if c.ParentID == "" {
			continue
		}
		if parent, ok := byID[c.ParentID]; ok {
			parent.Children = append(parent.Children, c.ChunkID)
		}
	}
}

// sortChunksDeterministically orders chunks by kind priority then FQN so
// two builds over identical input produce an identical chunk ordering.
func sortChunksDeterministically(chunks []*Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Kind.Priority() != chunks[j].Kind.Priority() {
			return chunks[i].Kind.Priority() < chunks[j].Kind.Priority()
		}
		return chunks[i].FQN < chunks[j].FQN
	})
}
