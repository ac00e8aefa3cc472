// Package storeqdrant persists chunks and their embedding vectors in
// Qdrant, satisfying ports.ChunkStore for semantic retrieval.
package storeqdrant

import (
	"context"
	"fmt"

	"github.com/codegraph/indexer/internal/chunk"
	"github.com/qdrant/go-client/qdrant"
)

// Store handles chunk vector storage in a single Qdrant collection.
type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant at host and ensures the named collection exists
// with the given vector size.
func New(ctx context.Context, host string, port int, collection string, vectorSize int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("connect to qdrant: %w", err)
	}

	s := &Store{client: client, collection: collection}
	if err := s.ensureCollection(ctx, vectorSize); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context, vectorSize int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(vectorSize),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

// Close releases the underlying client connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// SaveChunks upserts chunks and their parallel embedding vectors. len(embeddings)
// may be zero, in which case chunks are stored with an empty vector (payload-only,
// useful when embedding is disabled but structural retrieval is still wanted).
func (s *Store) SaveChunks(ctx context.Context, chunks []*chunk.Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		var vector []float32
		if i < len(embeddings) {
			vector = embeddings[i]
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ChunkID),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(chunkToPayload(c)),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// DeleteSnapshot removes every chunk belonging to a repo/snapshot pair.
func (s *Store) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	filter := matchFilter(map[string]string{"repo_id": repoID, "snapshot_id": snapshotID})
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("delete snapshot %s/%s: %w", repoID, snapshotID, err)
	}
	return nil
}

func matchFilter(fields map[string]string) *qdrant.Filter {
	must := make([]*qdrant.Condition, 0, len(fields))
	for key, value := range fields {
		must = append(must, &qdrant.Condition{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: key,
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Keyword{Keyword: value},
					},
				},
			},
		})
	}
	return &qdrant.Filter{Must: must}
}

// Search performs cosine similarity search scoped to one repo.
func (s *Store) Search(ctx context.Context, repoID string, queryVector []float32, topK int) ([]*chunk.Chunk, error) {
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         matchFilter(map[string]string{"repo_id": repoID}),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	out := make([]*chunk.Chunk, len(results))
	for i, r := range results {
		out[i] = payloadToChunk(r.Id.GetUuid(), r.Payload)
	}
	return out, nil
}

// GetByID fetches a single chunk by its point id.
func (s *Store) GetByID(ctx context.Context, chunkID string) (*chunk.Chunk, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(chunkID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", chunkID, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("chunk %s not found", chunkID)
	}
	return payloadToChunk(chunkID, points[0].Payload), nil
}

func chunkToPayload(c *chunk.Chunk) map[string]any {
	return map[string]any{
		"repo_id":             c.RepoID,
		"snapshot_id":         c.SnapshotID,
		"project_id":          c.ProjectID,
		"module_path":         c.ModulePath,
		"file_path":           c.FilePath,
		"kind":                string(c.Kind),
		"fqn":                 c.FQN,
		"start_line":          int64(c.StartLine),
		"end_line":            int64(c.EndLine),
		"content_hash":        c.ContentHash,
		"parent_id":           c.ParentID,
		"language":            c.Language,
		"symbol_visibility":   string(c.SymbolVisibility),
		"symbol_id":           c.SymbolID,
		"symbol_owner_id":     c.SymbolOwnerID,
		"content":             c.Content,
		"summary":             c.Summary,
		"importance":          c.Importance,
		"is_test":             c.IsTest(),
		"retrieval_weight":    float64(c.RetrievalWeight()),
		"has_secrets":         c.HasSecrets(),
		"version":             int64(c.Version),
		"last_indexed_commit": c.LastIndexedCommit,
	}
}

func payloadToChunk(id string, payload map[string]*qdrant.Value) *chunk.Chunk {
	getString := func(key string) string {
		if v, ok := payload[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	getInt := func(key string) int {
		if v, ok := payload[key]; ok {
			return int(v.GetIntegerValue())
		}
		return 0
	}
	getBool := func(key string) bool {
		if v, ok := payload[key]; ok {
			return v.GetBoolValue()
		}
		return false
	}
	getFloat := func(key string) float64 {
		if v, ok := payload[key]; ok {
			return v.GetDoubleValue()
		}
		return 0
	}

	return &chunk.Chunk{
		ChunkID:           id,
		RepoID:            getString("repo_id"),
		SnapshotID:        getString("snapshot_id"),
		ProjectID:         getString("project_id"),
		ModulePath:        getString("module_path"),
		FilePath:          getString("file_path"),
		Kind:              chunk.Kind(getString("kind")),
		FQN:               getString("fqn"),
		StartLine:         getInt("start_line"),
		EndLine:           getInt("end_line"),
		ContentHash:       getString("content_hash"),
		ParentID:          getString("parent_id"),
		Language:          getString("language"),
		SymbolVisibility:  chunk.Visibility(getString("symbol_visibility")),
		SymbolID:          getString("symbol_id"),
		SymbolOwnerID:     getString("symbol_owner_id"),
		Content:           getString("content"),
		Summary:           getString("summary"),
		Importance:        getFloat("importance"),
		Version:           getInt("version"),
		LastIndexedCommit: getString("last_indexed_commit"),
		Attrs: map[string]any{
			"is_test":     getBool("is_test"),
			"has_secrets": getBool("has_secrets"),
		},
	}
}
