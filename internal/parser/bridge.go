package parser

import (
	"fmt"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/ir"
)

// symbolKindToIRKind maps the tree-sitter-derived Symbol.Kind onto the
// language-agnostic ir.NodeKind the rest of the pipeline consumes.
var symbolKindToIRKind = map[SymbolKind]ir.NodeKind{
	SymbolFunction: ir.KindFunction,
	SymbolClass:    ir.KindClass,
	SymbolMethod:   ir.KindMethod,
	SymbolVariable: ir.KindVariable,
}

// ToIRDocument adapts this tree-sitter-backed Symbol list into an
// ir.Document: one file node plus one node per recognized symbol, each
// carrying kind, name, FQN, span, language, and its raw definition text.
func ToIRDocument(repoID, snapshotID, filePath string, lang Language, symbols []Symbol) *ir.Document {
	doc := &ir.Document{RepoID: repoID, SnapshotID: snapshotID, FilePath: filePath, Language: string(lang)}

	fileFQN := filePath
	doc.Nodes = append(doc.Nodes, ir.Node{
		ID: "file:" + filePath, Kind: ir.KindFile, FQN: fileFQN, Name: filePath,
		FilePath: filePath, Language: string(lang),
	})

	fqnBySymbolName := make(map[string]string)
	for _, sym := range symbols {
		fqn := fileFQN + "." + sym.Name
		if sym.Parent != "" {
			fqn = fileFQN + "." + sym.Parent + "." + sym.Name
		}
		fqnBySymbolName[sym.Name] = fqn
	}

	for _, sym := range symbols {
		kind, ok := symbolKindToIRKind[sym.Kind]
		if !ok {
			continue
		}
		fqn := fqnBySymbolName[sym.Name]
		id := fmt.Sprintf("sym:%s:%s", filePath, fqn)
		doc.Nodes = append(doc.Nodes, ir.Node{
			ID: id, Kind: kind, FQN: fqn, Name: sym.Name, FilePath: filePath,
			Span:     ir.Span{StartLine: sym.StartLine, EndLine: sym.EndLine},
			Language: string(lang),
			Attrs: map[string]any{
				"docstring": sym.Docstring,
				"signature": sym.Signature,
				"content":   sym.Content,
			},
		})
	}
	return doc
}

// ToGraphRelationships adapts a tree-sitter-derived Relationship list
// (imports/calls/extends) into graph.Relationship values the graph
// builder consumes, resolving FQNs against the same file-scoped convention
// ToIRDocument uses.
func ToGraphRelationships(filePath string, rels []Relationship) []graph.Relationship {
	out := make([]graph.Relationship, 0, len(rels))
	for _, r := range rels {
		var kind graph.EdgeKind
		switch r.Kind {
		case RelationshipImports:
			kind = graph.Imports
		case RelationshipCalls:
			kind = graph.Calls
		case RelationshipExtends:
			kind = graph.Inherits
		default:
			continue
		}
		sourceFQN := r.SourceFile
		if r.SourceName != "" {
			sourceFQN = r.SourceFile + "." + r.SourceName
		}
		target := r.TargetName
		if target == "" {
			target = r.TargetPath
		}
		out = append(out, graph.Relationship{
			Kind:               kind,
			SourceFQN:          sourceFQN,
			TargetExternalName: target,
		})
	}
	return out
}
