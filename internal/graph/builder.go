package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/codegraph/indexer/internal/ir"
)

// roleToKind maps an ir.Role to the GraphNode kind the Graph layer is
// solely responsible for assigning. The Chunk builder never re-derives
// this mapping; it only consumes the resulting Node.Kind.
var roleToKind = map[ir.Role]NodeKind{
	ir.RoleService:    Service,
	ir.RoleRepository: Repository,
	ir.RoleRoute:      Route,
	ir.RoleConfig:     Config,
	ir.RoleJob:        Job,
	ir.RoleMiddleware: Middleware,
}

var plainKind = map[ir.NodeKind]NodeKind{
	ir.KindFile:     File,
	ir.KindModule:   Module,
	ir.KindClass:    Class,
	ir.KindFunction: Function,
	ir.KindMethod:   Method,
}

// Relationship is a resolved structural relationship discovered by the
// semantic IR builder or the Parser port, consumed by the Graph Builder to
// emit edges. SourceFQN/TargetFQN are resolved against the node FQN index
// built during node emission; TargetExternalName is used when resolution
// fails and an External* node must be created lazily.
type Relationship struct {
	Kind               EdgeKind
	SourceFQN          string
	TargetFQN          string
	TargetExternalName string
	Attrs              map[string]any
}

// Builder produces a GraphDocument from a set of per-file IR documents,
// semantic snapshots, and resolved relationships for one repo snapshot.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder creates a Graph Builder. A nil logger falls back to
// slog.Default().
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build merges all IR + semantic IR into one GraphDocument for a single
// snapshot. A missing target node for any relationship drops that edge
// with a warning; the builder never fails the whole graph for one bad
// edge.
func (b *Builder) Build(repoID, snapshotID string, docs []*ir.Document, semantics []*ir.SemanticSnapshot, rels []Relationship) *Document {
	doc := NewDocument(repoID, snapshotID)
	fqnToID := make(map[string]string)

	b.emitIRNodes(doc, docs, fqnToID)
	b.synthesizeModules(doc, docs, fqnToID)
	b.emitSemanticNodes(doc, semantics, fqnToID)
	b.emitRelationshipEdges(doc, rels, fqnToID)
	b.buildIndex(doc)

	return doc
}

func (b *Builder) emitIRNodes(doc *Document, docs []*ir.Document, fqnToID map[string]string) {
	for _, d := range docs {
		for i := range d.Nodes {
			n := &d.Nodes[i]
			kind, ok := plainKind[n.Kind]
			if n.Role != "" {
				if roleKind, roleOK := roleToKind[n.Role]; roleOK {
					kind = roleKind
					ok = true
				}
			}
			if !ok {
				continue
			}
			span := &Span{StartLine: n.Span.StartLine, EndLine: n.Span.EndLine}
			gn := &Node{
				ID:         n.ID,
				Kind:       kind,
				RepoID:     doc.RepoID,
				SnapshotID: doc.SnapshotID,
				FQN:        n.FQN,
				Name:       n.Name,
				Path:       n.FilePath,
				Span:       span,
				Attrs:      n.Attrs,
			}
			doc.AddNode(gn)
			fqnToID[n.FQN] = n.ID
		}
		b.emitContainsForFile(doc, d)
	}
}

// emitContainsForFile links each node to its direct structural parent
// within the file by walking nodes in declaration order and tracking the
// most recent enclosing class/file.
func (b *Builder) emitContainsForFile(doc *Document, d *ir.Document) {
	var fileNodeID string
	for i := range d.Nodes {
		if d.Nodes[i].Kind == ir.KindFile {
			fileNodeID = d.Nodes[i].ID
			break
		}
	}
	if fileNodeID == "" {
		return
	}
	var currentClassID string
	for i := range d.Nodes {
		n := &d.Nodes[i]
		switch n.Kind {
		case ir.KindFile:
			continue
		case ir.KindClass:
			doc.addContains(fileNodeID, n.ID)
			currentClassID = n.ID
		case ir.KindMethod:
			parent := currentClassID
			if parent == "" {
				parent = fileNodeID
			}
			doc.addContains(parent, n.ID)
		default:
			doc.addContains(fileNodeID, n.ID)
		}
	}
}

func (d *Document) addContains(parentID, childID string) {
	d.Edges = append(d.Edges, &Edge{
		ID:       fmt.Sprintf("edge:%s:CONTAINS:%s", parentID, childID),
		Kind:     Contains,
		SourceID: parentID,
		TargetID: childID,
	})
}

// synthesizeModules auto-creates Module nodes for each dotted path segment
// implied by a file's path when the IR did not name them explicitly
// (src/utils/helpers/text.py yields src, src.utils,
// src.utils.helpers module nodes, each containing the next).
func (b *Builder) synthesizeModules(doc *Document, docs []*ir.Document, fqnToID map[string]string) {
	seen := make(map[string]bool)
	for _, d := range docs {
		segs := strings.Split(strings.Trim(pathDir(d.FilePath), "/"), "/")
		var fileNodeID string
		for i := range d.Nodes {
			if d.Nodes[i].Kind == ir.KindFile {
				fileNodeID = d.Nodes[i].ID
			}
		}
		var prevModuleID string
		var fqnParts []string
		for _, seg := range segs {
			if seg == "" {
				continue
			}
			fqnParts = append(fqnParts, seg)
			moduleFQN := strings.Join(fqnParts, ".")
			if id, exists := fqnToID[moduleFQN]; exists {
				if prevModuleID != "" {
					doc.addContains(prevModuleID, id)
				}
				prevModuleID = id
				continue
			}
			if seen[moduleFQN] {
				prevModuleID = fqnToID[moduleFQN]
				continue
			}
			id := "module:" + doc.RepoID + ":" + moduleFQN
			doc.AddNode(&Node{
				ID:         id,
				Kind:       Module,
				RepoID:     doc.RepoID,
				SnapshotID: doc.SnapshotID,
				FQN:        moduleFQN,
				Name:       seg,
			})
			fqnToID[moduleFQN] = id
			seen[moduleFQN] = true
			if prevModuleID != "" {
				doc.addContains(prevModuleID, id)
			}
			prevModuleID = id
		}
		if prevModuleID != "" && fileNodeID != "" {
			doc.addContains(prevModuleID, fileNodeID)
		}
	}
}

func pathDir(filePath string) string {
	idx := strings.LastIndex(filePath, "/")
	if idx < 0 {
		return ""
	}
	return filePath[:idx]
}

func (b *Builder) emitSemanticNodes(doc *Document, semantics []*ir.SemanticSnapshot, fqnToID map[string]string) {
	for _, s := range semantics {
		if s == nil {
			continue
		}
		for _, t := range s.Types {
			doc.AddNode(&Node{ID: t.ID, Kind: Type, RepoID: doc.RepoID, SnapshotID: doc.SnapshotID, FQN: t.FQN, Name: t.Name})
			fqnToID[t.FQN] = t.ID
		}
		for _, sig := range s.Signatures {
			id := sig.ID
			doc.AddNode(&Node{ID: id, Kind: Signature, RepoID: doc.RepoID, SnapshotID: doc.SnapshotID,
				Attrs: map[string]any{"param_types": sig.ParamTypes, "return_type": sig.ReturnType}})
			if sig.OwnerID != "" {
				doc.addContains(sig.OwnerID, id)
			}
		}
		for _, blk := range s.CFGBlocks {
			doc.AddNode(&Node{ID: blk.ID, Kind: CfgBlock, RepoID: doc.RepoID, SnapshotID: doc.SnapshotID})
			if blk.FunctionID != "" {
				doc.addContains(blk.FunctionID, blk.ID)
			}
		}
		for _, v := range s.Variables {
			doc.AddNode(&Node{ID: v.ID, Kind: Variable, RepoID: doc.RepoID, SnapshotID: doc.SnapshotID, Name: v.Name})
		}
		for _, e := range s.CFGEdges {
			var kind EdgeKind
			switch e.Kind {
			case ir.CFGBranch:
				kind = CfgBranch
			case ir.CFGLoop:
				kind = CfgLoop
			case ir.CFGHandler:
				kind = CfgHandler
			default:
				kind = CfgNext
			}
			doc.Edges = append(doc.Edges, &Edge{
				ID: fmt.Sprintf("edge:%s:%s:%s", e.FromBlockID, kind, e.ToBlockID), Kind: kind,
				SourceID: e.FromBlockID, TargetID: e.ToBlockID,
			})
		}
		for _, blk := range s.CFGBlocks {
			for _, varID := range blk.UsedVariableIDs {
				doc.Edges = append(doc.Edges, &Edge{
					ID: fmt.Sprintf("edge:%s:READS:%s", blk.ID, varID), Kind: Reads,
					SourceID: blk.ID, TargetID: varID,
					Attrs: map[string]any{"function_id": blk.FunctionID},
				})
			}
			for _, varID := range blk.DefinedVariableIDs {
				doc.Edges = append(doc.Edges, &Edge{
					ID: fmt.Sprintf("edge:%s:WRITES:%s", blk.ID, varID), Kind: Writes,
					SourceID: blk.ID, TargetID: varID,
					Attrs: map[string]any{"function_id": blk.FunctionID},
				})
			}
		}
	}
}

func (b *Builder) emitRelationshipEdges(doc *Document, rels []Relationship, fqnToID map[string]string) {
	for _, r := range rels {
		sourceID, ok := fqnToID[r.SourceFQN]
		if !ok {
			b.logger.Warn("graph: dropping edge, unresolved source", "kind", r.Kind, "source_fqn", r.SourceFQN)
			continue
		}
		targetID, ok := fqnToID[r.TargetFQN]
		if !ok {
			targetID, ok = b.resolveExternal(doc, r)
			if !ok {
				b.logger.Warn("graph: dropping edge, unresolved target", "kind", r.Kind, "target_fqn", r.TargetFQN)
				continue
			}
		}
		doc.Edges = append(doc.Edges, &Edge{
			ID:       fmt.Sprintf("edge:%s:%s:%s", sourceID, r.Kind, targetID),
			Kind:     r.Kind,
			SourceID: sourceID,
			TargetID: targetID,
			Attrs:    r.Attrs,
		})
	}
}

// resolveExternal creates (or reuses) an ExternalModule/ExternalFunction
// node on demand for unresolved imports/calls.
func (b *Builder) resolveExternal(doc *Document, r Relationship) (string, bool) {
	name := r.TargetExternalName
	if name == "" {
		name = r.TargetFQN
	}
	if name == "" {
		return "", false
	}
	kind := ExternalFunction
	if r.Kind == Imports {
		kind = ExternalModule
	}
	id := "external:" + string(kind) + ":" + name
	if _, exists := doc.GetNode(id); !exists {
		doc.AddNode(&Node{ID: id, Kind: kind, RepoID: doc.RepoID, SnapshotID: doc.SnapshotID, FQN: name, Name: name})
	}
	return id, true
}

// buildIndex builds, in one pass, every derived index described in spec
// §4.2.
func (b *Builder) buildIndex(doc *Document) {
	idx := newIndex()
	for _, e := range doc.Edges {
		idx.Outgoing[e.SourceID] = append(idx.Outgoing[e.SourceID], e.ID)
		idx.Incoming[e.TargetID] = append(idx.Incoming[e.TargetID], e.ID)

		switch e.Kind {
		case Contains:
			idx.ContainsChildren[e.SourceID] = append(idx.ContainsChildren[e.SourceID], e.TargetID)
		case Calls:
			if idx.Callers[e.TargetID] == nil {
				idx.Callers[e.TargetID] = make(map[string]struct{})
			}
			idx.Callers[e.TargetID][e.SourceID] = struct{}{}
		case ReferencesType:
			if idx.TypeUsers[e.TargetID] == nil {
				idx.TypeUsers[e.TargetID] = make(map[string]struct{})
			}
			idx.TypeUsers[e.TargetID][e.SourceID] = struct{}{}
		case Reads:
			if idx.ReadsBy[e.TargetID] == nil {
				idx.ReadsBy[e.TargetID] = make(map[string]struct{})
			}
			idx.ReadsBy[e.TargetID][e.SourceID] = struct{}{}
		case Writes:
			if idx.WritesBy[e.TargetID] == nil {
				idx.WritesBy[e.TargetID] = make(map[string]struct{})
			}
			idx.WritesBy[e.TargetID][e.SourceID] = struct{}{}
		case Decorates:
			idx.DecoratorsByTarget[e.TargetID] = append(idx.DecoratorsByTarget[e.TargetID], e.SourceID)
		}
	}

	for id, n := range doc.Nodes {
		if n.Kind == Route && n.Path != "" {
			idx.RoutesByPath[n.Path] = id
		}
		if n.Kind == Service {
			domain, _ := n.Attrs["domain"].(string)
			idx.ServicesByDomain[domain] = append(idx.ServicesByDomain[domain], id)
		}
	}

	// traceRequestFlow walks doc.Index.Outgoing, so the new index is
	// attached before the request-flow chains are traced.
	doc.Index = idx
	for _, routeID := range idx.RoutesByPath {
		idx.RequestFlowIndex[routeID] = b.traceRequestFlow(doc, routeID)
	}

	for k := range idx.ContainsChildren {
		sort.Strings(idx.ContainsChildren[k])
	}
}

// traceRequestFlow walks ROUTE_HANDLER -> HANDLES_REQUEST -> USES_REPOSITORY
// from a route node, producing the ordered chain of node ids a request
// travels through.
func (b *Builder) traceRequestFlow(doc *Document, routeID string) []string {
	chain := []string{routeID}
	current := routeID
	seqs := []EdgeKind{RouteHandler, HandlesRequest, UsesRepository}
	for _, wantKind := range seqs {
		next := ""
		for _, eid := range doc.Index.Outgoing[current] {
			e := findEdge(doc, eid)
			if e != nil && e.Kind == wantKind {
				next = e.TargetID
				break
			}
		}
		if next == "" {
			break
		}
		chain = append(chain, next)
		current = next
	}
	return chain
}

func findEdge(doc *Document, id string) *Edge {
	for _, e := range doc.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}
