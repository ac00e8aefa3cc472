package chunk

import (
	"testing"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/codegraph/indexer/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestMapperMapIRMatchesNodesWithinSpanAndFile(t *testing.T) {
	chunks := []*Chunk{
		{ChunkID: "c-func", FilePath: "a.go", StartLine: 1, EndLine: 10, Kind: KindFunction},
		{ChunkID: "c-other", FilePath: "b.go", StartLine: 1, EndLine: 10, Kind: KindFunction},
	}
	docs := []*ir.Document{
		{
			FilePath: "a.go",
			Nodes: []ir.Node{
				{ID: "n1", FilePath: "a.go", Span: ir.Span{StartLine: 2, EndLine: 4}},
				{ID: "n2", FilePath: "a.go", Span: ir.Span{StartLine: 20, EndLine: 22}},
			},
		},
	}

	m := NewMapper(false, nil)
	result := m.MapIR(chunks, docs)

	assert.Contains(t, result["c-func"], "n1")
	assert.NotContains(t, result["c-func"], "n2")
	assert.Empty(t, result["c-other"])
}

func TestMapperMapGraphFunctionChunkMapsItsOwnSymbol(t *testing.T) {
	g := graph.NewDocument("repo1", "snap1")
	g.AddNode(&graph.Node{ID: "sym:f", Kind: graph.Function})

	chunks := []*Chunk{
		{ChunkID: "c-func", Kind: KindFunction, SymbolID: "sym:f"},
	}

	m := NewMapper(false, nil)
	result := m.MapGraph(chunks, g)

	assert.Contains(t, result["c-func"], "sym:f")
}

func TestMapperMapGraphClassIncludesPublicMethodsOnly(t *testing.T) {
	g := graph.NewDocument("repo1", "snap1")
	g.AddNode(&graph.Node{ID: "sym:Class", Kind: graph.Class})
	g.AddNode(&graph.Node{ID: "sym:Pub", Kind: graph.Method, Attrs: map[string]any{"visibility": "public"}})
	g.AddNode(&graph.Node{ID: "sym:Priv", Kind: graph.Method, Attrs: map[string]any{"visibility": "private"}})
	g.Index.ContainsChildren["sym:Class"] = []string{"sym:Pub", "sym:Priv"}

	chunks := []*Chunk{
		{ChunkID: "c-class", Kind: KindClass, SymbolID: "sym:Class"},
	}

	m := NewMapper(false, nil)
	result := m.MapGraph(chunks, g)

	assert.Contains(t, result["c-class"], "sym:Class")
	assert.Contains(t, result["c-class"], "sym:Pub")
	assert.NotContains(t, result["c-class"], "sym:Priv")
}

func TestMapperMapGraphStructuralUnionsDescendants(t *testing.T) {
	g := graph.NewDocument("repo1", "snap1")
	g.AddNode(&graph.Node{ID: "sym:f", Kind: graph.Function})

	fileChunk := &Chunk{ChunkID: "c-file", Kind: KindFile, Children: []string{"c-func"}}
	funcChunk := &Chunk{ChunkID: "c-func", Kind: KindFunction, SymbolID: "sym:f", ParentID: "c-file"}

	chunks := []*Chunk{fileChunk, funcChunk}

	m := NewMapper(false, nil)
	result := m.MapGraph(chunks, g)

	assert.Contains(t, result["c-file"], "sym:f")
}
