package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGeneratorFirstEmissionIsBaseID(t *testing.T) {
	g := NewIDGenerator("r1")
	id := g.Generate(KindFunction, "pkg.fn", ContentHash("body"))
	assert.Equal(t, "chunk:r1:function:pkg.fn", id)
}

func TestIDGeneratorDisambiguatesCollision(t *testing.T) {
	g := NewIDGenerator("r1")
	first := g.Generate(KindFunction, "pkg.fn", ContentHash("body-a"))
	second := g.Generate(KindFunction, "pkg.fn", ContentHash("body-b"))

	assert.NotEqual(t, first, second)
	assert.Equal(t, "chunk:r1:function:pkg.fn", first)
}

func TestIDGeneratorDeterministicAcrossBuilds(t *testing.T) {
	g1 := NewIDGenerator("r1")
	g2 := NewIDGenerator("r1")
	id1 := g1.Generate(KindClass, "pkg.Calculator", ContentHash("class body"))
	id2 := g2.Generate(KindClass, "pkg.Calculator", ContentHash("class body"))
	assert.Equal(t, id1, id2)
}

func TestIDGeneratorResetClearsState(t *testing.T) {
	g := NewIDGenerator("r1")
	first := g.Generate(KindFunction, "pkg.fn", ContentHash("a"))
	g.Reset()
	second := g.Generate(KindFunction, "pkg.fn", ContentHash("b"))
	assert.Equal(t, first, second)
}

func TestNormalizeFQNReplacesPathSeparators(t *testing.T) {
	assert.Equal(t, "backend.math.calculator", normalizeFQN("backend/math/calculator"))
}
