package storeqdrant

import (
	"testing"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/stretchr/testify/assert"
)

func TestChunkToPayloadCarriesIdentityAndScoringFields(t *testing.T) {
	c := &chunk.Chunk{
		ChunkID:    "chunk:repo1:function:pkg.Foo",
		RepoID:     "repo1",
		SnapshotID: "snap1",
		ProjectID:  "proj1",
		FilePath:   "pkg/foo.go",
		Kind:       chunk.KindFunction,
		FQN:        "pkg.Foo",
		StartLine:  10,
		EndLine:    20,
		Content:    "func Foo() {}",
		Summary:    "Foo does nothing.",
		Importance: 0.42,
		Attrs:      map[string]any{"is_test": true, "has_secrets": false},
	}

	payload := chunkToPayload(c)
	assert.Equal(t, "repo1", payload["repo_id"])
	assert.Equal(t, "snap1", payload["snapshot_id"])
	assert.Equal(t, "pkg.Foo", payload["fqn"])
	assert.Equal(t, int64(10), payload["start_line"])
	assert.Equal(t, 0.42, payload["importance"])
	assert.Equal(t, true, payload["is_test"])
	assert.Equal(t, 0.5, payload["retrieval_weight"])
}

func TestMatchFilterBuildsOneConditionPerField(t *testing.T) {
	filter := matchFilter(map[string]string{"repo_id": "repo1", "snapshot_id": "snap1"})
	assert.Len(t, filter.Must, 2)
}
