package ir

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Line-based keyword patterns used to split a function body into basic
// blocks. The IR has already collapsed every language's tree-sitter
// grammar down to a common Node/Span/Attrs shape, so this pass works off
// the captured source text rather than a per-language AST.
var (
	branchKeywords  = []string{"if", "elif", "else if", "else", "switch", "case", "default"}
	loopKeywords    = []string{"for", "while", "do"}
	handlerKeywords = []string{"try", "except", "catch", "finally"}
)

// assignee extracts the left-hand identifier of a simple assignment
// statement ("x = ...", "x: Type = ..."), or "" if the line isn't one.
func assignee(line string) string {
	trimmed := strings.TrimSpace(line)
	eq := strings.Index(trimmed, "=")
	if eq <= 0 || eq+1 < len(trimmed) && trimmed[eq+1] == '=' {
		return ""
	}
	if eq > 0 && trimmed[eq-1] == '!' {
		return ""
	}
	lhs := strings.TrimSpace(trimmed[:eq])
	if colon := strings.Index(lhs, ":"); colon >= 0 {
		lhs = strings.TrimSpace(lhs[:colon])
	}
	if lhs == "" || !isIdentifier(lhs) {
		return ""
	}
	return lhs
}

func isIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return s != ""
}

func identifiers(line string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range line {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (cur.Len() > 0 && r >= '0' && r <= '9'):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

// controlKeywords are identifiers that appear in control-flow/declaration
// syntax rather than as variable references, so they're excluded from DFG
// use tracking.
var controlKeywords = map[string]bool{
	"if": true, "elif": true, "else": true, "for": true, "while": true, "do": true,
	"return": true, "def": true, "function": true, "class": true, "async": true, "await": true,
	"try": true, "except": true, "catch": true, "finally": true, "raise": true, "throw": true,
	"switch": true, "case": true, "default": true, "break": true, "continue": true,
	"const": true, "let": true, "var": true, "import": true, "from": true, "as": true,
	"pass": true, "in": true, "of": true, "new": true, "this": true, "self": true,
	"true": true, "false": true, "True": true, "False": true, "None": true, "null": true,
	"undefined": true, "yield": true, "lambda": true, "and": true, "or": true, "not": true,
}

func startsWithAnyKeyword(line string, keywords []string) bool {
	trimmed := strings.TrimSpace(line)
	for _, kw := range keywords {
		if trimmed == kw || strings.HasPrefix(trimmed, kw+" ") || strings.HasPrefix(trimmed, kw+"(") || strings.HasPrefix(trimmed, kw+":") {
			return true
		}
	}
	return false
}

func extractParamTypes(signature string) []string {
	open := strings.Index(signature, "(")
	closeParen := strings.LastIndex(signature, ")")
	if open < 0 || closeParen <= open {
		return nil
	}
	raw := signature[open+1 : closeParen]
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		p := strings.TrimSpace(part)
		if p == "" || p == "self" || p == "this" {
			continue
		}
		switch {
		case strings.Contains(p, ":"):
			idx := strings.Index(p, ":")
			out = append(out, strings.TrimSpace(strings.SplitN(p[idx+1:], "=", 2)[0]))
		case strings.Contains(p, " "):
			fields := strings.Fields(p)
			out = append(out, fields[0])
		default:
			out = append(out, "")
		}
	}
	return out
}

func extractReturnType(signature string) string {
	if idx := strings.Index(signature, "->"); idx >= 0 {
		rest := strings.TrimSpace(signature[idx+2:])
		rest = strings.TrimSuffix(strings.TrimSpace(rest), ":")
		return strings.TrimSpace(rest)
	}
	closeParen := strings.LastIndex(signature, ")")
	if closeParen >= 0 && closeParen+1 < len(signature) {
		rest := strings.TrimSpace(signature[closeParen+1:])
		rest = strings.TrimPrefix(rest, ":")
		rest = strings.TrimSuffix(rest, "{")
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return ""
}

// SemanticIRBuilder derives type/signature/CFG/DFG facts from a parsed IR
// document: a TypeEntity per class node, a SignatureEntity per
// function/method node, and a basic-block CFG plus def/use DFG events
// built by scanning each function/method body's captured text for
// branch/loop/handler keywords and assignment statements.
type SemanticIRBuilder struct{}

// NewSemanticIRBuilder creates a builder.
func NewSemanticIRBuilder() *SemanticIRBuilder {
	return &SemanticIRBuilder{}
}

// Build derives a SemanticSnapshot for one file's IR document.
func (b *SemanticIRBuilder) Build(ctx context.Context, doc *Document) (*SemanticSnapshot, error) {
	if doc == nil {
		return nil, fmt.Errorf("ir: nil document")
	}
	snap := &SemanticSnapshot{FilePath: doc.FilePath}

	for i := range doc.Nodes {
		n := &doc.Nodes[i]
		switch n.Kind {
		case KindClass:
			snap.Types = append(snap.Types, TypeEntity{ID: "type:" + n.ID, Name: n.Name, FQN: n.FQN})
		case KindFunction, KindMethod:
			b.buildSignature(snap, n)
			b.buildCFGAndDFG(snap, n)
		}
	}
	return snap, nil
}

func (b *SemanticIRBuilder) buildSignature(snap *SemanticSnapshot, n *Node) {
	raw, _ := n.Attrs["signature"].(string)
	snap.Signatures = append(snap.Signatures, SignatureEntity{
		ID:         "sig:" + n.ID,
		OwnerID:    n.ID,
		ParamTypes: extractParamTypes(raw),
		ReturnType: extractReturnType(raw),
	})
}

// block is the in-progress accumulator for one basic block before it's
// flattened into a CFGBlock plus DFG events.
type block struct {
	id   string
	kind CFGEdgeKind // edge kind connecting the previous block into this one
	defs map[string]bool
	uses map[string]bool
}

func (b *SemanticIRBuilder) buildCFGAndDFG(snap *SemanticSnapshot, n *Node) {
	content, _ := n.Attrs["content"].(string)
	if strings.TrimSpace(content) == "" {
		return
	}

	var blocks []*block
	newBlock := func(kind CFGEdgeKind) *block {
		blk := &block{id: fmt.Sprintf("cfg:%s:%d", n.ID, len(blocks)), kind: kind, defs: map[string]bool{}, uses: map[string]bool{}}
		blocks = append(blocks, blk)
		return blk
	}
	cur := newBlock(CFGNext)

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		switch {
		case startsWithAnyKeyword(line, handlerKeywords):
			cur = newBlock(CFGHandler)
		case startsWithAnyKeyword(line, loopKeywords):
			cur = newBlock(CFGLoop)
		case startsWithAnyKeyword(line, branchKeywords):
			cur = newBlock(CFGBranch)
		}
		if name := assignee(line); name != "" {
			cur.defs[name] = true
		}
		for _, ident := range identifiers(line) {
			if controlKeywords[ident] {
				continue
			}
			cur.uses[ident] = true
		}
	}

	varIDs := make(map[string]string)
	varID := func(name string) string {
		if id, ok := varIDs[name]; ok {
			return id
		}
		id := fmt.Sprintf("var:%s:%s", n.ID, name)
		varIDs[name] = id
		snap.Variables = append(snap.Variables, DFGVariable{ID: id, Name: name})
		return id
	}

	var prevID string
	for _, blk := range blocks {
		defs := sortedKeys(blk.defs)
		uses := sortedKeys(blk.uses)

		cfgBlock := CFGBlock{ID: blk.id, FunctionID: n.ID}
		for _, name := range defs {
			id := varID(name)
			cfgBlock.DefinedVariableIDs = append(cfgBlock.DefinedVariableIDs, id)
			snap.DFGEvents = append(snap.DFGEvents, DFGEvent{VariableID: id, BlockID: blk.id, Kind: DFGDef})
		}
		for _, name := range uses {
			if blk.defs[name] {
				continue // defined and used within the same block: a def, not a cross-block read
			}
			id := varID(name)
			cfgBlock.UsedVariableIDs = append(cfgBlock.UsedVariableIDs, id)
			snap.DFGEvents = append(snap.DFGEvents, DFGEvent{VariableID: id, BlockID: blk.id, Kind: DFGUse})
		}
		snap.CFGBlocks = append(snap.CFGBlocks, cfgBlock)

		if prevID != "" {
			snap.CFGEdges = append(snap.CFGEdges, CFGEdge{FromBlockID: prevID, ToBlockID: blk.id, Kind: blk.kind})
		}
		prevID = blk.id
	}
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
