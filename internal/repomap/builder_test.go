package repomap

import (
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderBuildProducesRootedSnapshot(t *testing.T) {
	b := NewBuilder(DefaultBuildConfig(), "")
	snap, err := b.Build("repo1", "snap1", sampleChunks(), nil)
	require.NoError(t, err)

	assert.Equal(t, "repo1", snap.RepoID)
	assert.NotEmpty(t, snap.RootNodeID)
	assert.NotNil(t, snap.GetNode(snap.RootNodeID))
}

func TestBuilderBuildComputesImportanceForAllNodes(t *testing.T) {
	b := NewBuilder(DefaultBuildConfig(), "")
	snap, err := b.Build("repo1", "snap1", sampleChunks(), nil)
	require.NoError(t, err)

	for _, n := range snap.Nodes {
		assert.GreaterOrEqual(t, n.Metrics.Importance, 0.0)
		assert.LessOrEqual(t, n.Metrics.Importance, 1.0)
	}
}
