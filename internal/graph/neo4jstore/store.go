// Package neo4jstore persists graph.Documents to Neo4j, with one node
// label per graph node kind and one relationship type per graph edge kind.
package neo4jstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codegraph/indexer/internal/graph"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Store persists GraphDocuments to Neo4j: one node label per GraphNode
// kind, one relationship type per GraphEdge kind.
type Store struct {
	driver neo4j.DriverWithContext
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: create driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4jstore: verify connectivity: %w", err)
	}
	return &Store{driver: driver}, nil
}

// Close releases the underlying driver.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// EnsureSchema creates a uniqueness constraint on id for every node kind.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	kinds := []graph.NodeKind{
		graph.File, graph.Module, graph.Class, graph.Function, graph.Method,
		graph.Type, graph.Signature, graph.CfgBlock, graph.Variable,
		graph.ExternalModule, graph.ExternalFunction, graph.Route, graph.Service,
		graph.Repository, graph.Config, graph.Job, graph.Middleware, graph.Summary,
	}
	for _, kind := range kinds {
		query := fmt.Sprintf(
			"CREATE CONSTRAINT IF NOT EXISTS FOR (n:%s) REQUIRE n.id IS UNIQUE", string(kind))
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("neo4jstore: ensure constraint for %s: %w", kind, err)
		}
	}
	return nil
}

// SaveGraph upserts all nodes then all edges in one write transaction,
// keyed by node id and (source_id, target_id, kind).
func (s *Store) SaveGraph(ctx context.Context, doc *graph.Document) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := upsertNodesByKind(ctx, tx, doc); err != nil {
			return nil, err
		}
		if err := upsertEdges(ctx, tx, doc); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4jstore: save graph: %w", err)
	}
	return nil
}

func upsertNodesByKind(ctx context.Context, tx neo4j.ManagedTransaction, doc *graph.Document) error {
	byKind := make(map[graph.NodeKind][]map[string]any)
	for _, n := range doc.Nodes {
		attrs, err := json.Marshal(n.Attrs)
		if err != nil {
			return fmt.Errorf("marshal attrs for %s: %w", n.ID, err)
		}
		props := map[string]any{
			"id": n.ID, "repo_id": n.RepoID, "snapshot_id": n.SnapshotID,
			"fqn": n.FQN, "name": n.Name, "path": n.Path, "attrs": string(attrs),
		}
		if n.Span != nil {
			props["start_line"] = n.Span.StartLine
			props["end_line"] = n.Span.EndLine
		}
		byKind[n.Kind] = append(byKind[n.Kind], props)
	}

	for kind, rows := range byKind {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (n:%s {id: row.id})
			SET n += row`, string(kind))
		if _, err := tx.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("upsert nodes of kind %s: %w", kind, err)
		}
	}
	return nil
}

func upsertEdges(ctx context.Context, tx neo4j.ManagedTransaction, doc *graph.Document) error {
	byKind := make(map[graph.EdgeKind][]map[string]any)
	for _, e := range doc.Edges {
		attrs, err := json.Marshal(e.Attrs)
		if err != nil {
			return fmt.Errorf("marshal edge attrs for %s: %w", e.ID, err)
		}
		byKind[e.Kind] = append(byKind[e.Kind], map[string]any{
			"source_id": e.SourceID, "target_id": e.TargetID, "attrs": string(attrs),
		})
	}

	for kind, rows := range byKind {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MATCH (src {id: row.source_id})
			MATCH (dst {id: row.target_id})
			MERGE (src)-[r:%s]->(dst)
			SET r.attrs = row.attrs`, string(kind))
		if _, err := tx.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
			return fmt.Errorf("upsert edges of kind %s: %w", kind, err)
		}
	}
	return nil
}

// QueryNodeByID implements query_node_by_id.
func (s *Store) QueryNodeByID(ctx context.Context, id string) (*graph.Node, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (n {id: $id}) RETURN n", map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: query node: %w", err)
	}
	if !result.Next(ctx) {
		return nil, nil
	}
	return recordToNode(result.Record())
}

// QueryContainsChildren implements query_contains_children.
func (s *Store) QueryContainsChildren(ctx context.Context, id string) ([]string, error) {
	return s.queryRelatedIDs(ctx, "MATCH (n {id: $id})-[:CONTAINS]->(m) RETURN m.id AS id", id)
}

// QueryCalledBy implements query_called_by.
func (s *Store) QueryCalledBy(ctx context.Context, id string) ([]string, error) {
	return s.queryRelatedIDs(ctx, "MATCH (caller)-[:CALLS]->(n {id: $id}) RETURN caller.id AS id", id)
}

// QueryImportedBy implements query_imported_by.
func (s *Store) QueryImportedBy(ctx context.Context, id string) ([]string, error) {
	return s.queryRelatedIDs(ctx, "MATCH (importer)-[:IMPORTS]->(n {id: $id}) RETURN importer.id AS id", id)
}

// QueryReadsVariable implements query_reads_variable.
func (s *Store) QueryReadsVariable(ctx context.Context, variableID string) ([]string, error) {
	return s.queryRelatedIDs(ctx, "MATCH (blk)-[:READS]->(n {id: $id}) RETURN blk.id AS id", variableID)
}

// QueryWritesVariable implements query_writes_variable.
func (s *Store) QueryWritesVariable(ctx context.Context, variableID string) ([]string, error) {
	return s.queryRelatedIDs(ctx, "MATCH (blk)-[:WRITES]->(n {id: $id}) RETURN blk.id AS id", variableID)
}

// QueryCFGSuccessors implements query_cfg_successors.
func (s *Store) QueryCFGSuccessors(ctx context.Context, blockID string) ([]string, error) {
	return s.queryRelatedIDs(ctx,
		`MATCH (n {id: $id})-[:CFG_NEXT|CFG_BRANCH|CFG_LOOP|CFG_HANDLER]->(m) RETURN m.id AS id`, blockID)
}

func (s *Store) queryRelatedIDs(ctx context.Context, query, id string) ([]string, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: query related ids: %w", err)
	}
	var ids []string
	for result.Next(ctx) {
		if v, ok := result.Record().Get("id"); ok {
			ids = append(ids, v.(string))
		}
	}
	return ids, result.Err()
}

// DeleteNodes implements delete_nodes(ids); relationships are cascaded via
// DETACH DELETE.
func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.Run(ctx, "MATCH (n) WHERE n.id IN $ids DETACH DELETE n", map[string]any{"ids": ids})
	if err != nil {
		return fmt.Errorf("neo4jstore: delete nodes: %w", err)
	}
	return nil
}

// DeleteRepo implements delete_repo(repo_id).
func (s *Store) DeleteRepo(ctx context.Context, repoID string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.Run(ctx, "MATCH (n {repo_id: $repo_id}) DETACH DELETE n", map[string]any{"repo_id": repoID})
	if err != nil {
		return fmt.Errorf("neo4jstore: delete repo: %w", err)
	}
	return nil
}

// DeleteSnapshot implements delete_snapshot(repo_id, snapshot_id).
func (s *Store) DeleteSnapshot(ctx context.Context, repoID, snapshotID string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.Run(ctx,
		"MATCH (n {repo_id: $repo_id, snapshot_id: $snapshot_id}) DETACH DELETE n",
		map[string]any{"repo_id": repoID, "snapshot_id": snapshotID})
	if err != nil {
		return fmt.Errorf("neo4jstore: delete snapshot: %w", err)
	}
	return nil
}

// DeleteNodesByFilter implements delete_nodes_by_filter(repo_id,
// snapshot_id?, kind?).
func (s *Store) DeleteNodesByFilter(ctx context.Context, repoID string, snapshotID, kind *string) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	label := ""
	if kind != nil {
		label = ":" + *kind
	}
	query := fmt.Sprintf("MATCH (n%s {repo_id: $repo_id}) ", label)
	params := map[string]any{"repo_id": repoID}
	if snapshotID != nil {
		query += "WHERE n.snapshot_id = $snapshot_id "
		params["snapshot_id"] = *snapshotID
	}
	query += "DETACH DELETE n"

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("neo4jstore: delete nodes by filter: %w", err)
	}
	return nil
}

func recordToNode(record *neo4j.Record) (*graph.Node, error) {
	n := &graph.Node{}
	if v, ok := record.Get("n"); ok {
		neoNode, ok := v.(neo4j.Node)
		if !ok {
			return nil, fmt.Errorf("neo4jstore: unexpected record shape")
		}
		props := neoNode.Props
		n.ID, _ = props["id"].(string)
		n.RepoID, _ = props["repo_id"].(string)
		n.SnapshotID, _ = props["snapshot_id"].(string)
		n.FQN, _ = props["fqn"].(string)
		n.Name, _ = props["name"].(string)
		n.Path, _ = props["path"].(string)
		for _, label := range neoNode.Labels {
			n.Kind = graph.NodeKind(label)
			break
		}
		if attrsJSON, ok := props["attrs"].(string); ok && attrsJSON != "" {
			var attrs map[string]any
			if err := json.Unmarshal([]byte(attrsJSON), &attrs); err == nil {
				n.Attrs = attrs
			}
		}
	}
	return n, nil
}
