package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"tribridrag/internal/legs/graph"
	"tribridrag/internal/model"
)

// Neo4jGraphStore implements internal/legs/graph.Store against a Neo4j-
// compatible HTTP Cypher transaction endpoint, for the optional multi-
// database graph backend (spec.md §6.2: "Multi-database mode optional").
// Grounded on original_source/server/db/neo4j.py's corpus-scoped (there:
// repo_id-scoped) method shapes — every method there is a NotImplementedError
// stub over an async Bolt driver; this is a from-scratch Go implementation
// using the HTTP query API (net/http) rather than a Bolt binding, generalizing
// execute_cypher's "parameterized query in, flat row set out" contract into
// the three graph.Store methods the leg actually needs.
type Neo4jGraphStore struct {
	baseURL  string
	database string
	username string
	password string
	client   *http.Client
}

func NewNeo4jGraphStore(baseURL, database, username, password string, client *http.Client) *Neo4jGraphStore {
	if client == nil {
		client = http.DefaultClient
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jGraphStore{baseURL: baseURL, database: database, username: username, password: password, client: client}
}

type cypherTxRequest struct {
	Statements []cypherStatement `json:"statements"`
}

type cypherStatement struct {
	Statement string         `json:"statement"`
	Parameters map[string]any `json:"parameters"`
}

type cypherTxResponse struct {
	Results []struct {
		Columns []string         `json:"columns"`
		Data    []struct{ Row []any `json:"row"` } `json:"data"`
	} `json:"results"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// run executes a single Cypher statement via the /db/{database}/tx/commit
// endpoint and returns each result row as column-name -> value.
func (s *Neo4jGraphStore) run(ctx context.Context, statement string, params map[string]any) ([]map[string]any, error) {
	body, err := json.Marshal(cypherTxRequest{Statements: []cypherStatement{{Statement: statement, Parameters: params}}})
	if err != nil {
		return nil, fmt.Errorf("encode cypher request: %w", err)
	}

	url := fmt.Sprintf("%s/db/%s/tx/commit", s.baseURL, s.database)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cypher request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute cypher: %w", err)
	}
	defer resp.Body.Close()

	var decoded cypherTxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode cypher response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("cypher error %s: %s", decoded.Errors[0].Code, decoded.Errors[0].Message)
	}
	if len(decoded.Results) == 0 {
		return nil, nil
	}

	cols := decoded.Results[0].Columns
	rows := make([]map[string]any, 0, len(decoded.Results[0].Data))
	for _, d := range decoded.Results[0].Data {
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if i < len(d.Row) {
				row[col] = d.Row[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Neo4jGraphStore) MatchEntitiesByToken(ctx context.Context, corpusID string, tokens []string) ([]model.Entity, error) {
	rows, err := s.run(ctx, `
MATCH (e:Entity {corpus_id: $corpus_id})
WHERE toLower(e.name) IN $tokens
RETURN e.entity_id AS entity_id, e.name AS name, e.entity_type AS entity_type, e.file_path AS file_path
`, map[string]any{"corpus_id": corpusID, "tokens": lowerAll(tokens)})
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}

	out := make([]model.Entity, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Entity{
			EntityID: asString(r["entity_id"]),
			CorpusID: corpusID,
			Name:     asString(r["name"]),
			Type:     model.EntityType(asString(r["entity_type"])),
			FilePath: asString(r["file_path"]),
		})
	}
	return out, nil
}

func (s *Neo4jGraphStore) Expand(ctx context.Context, corpusID string, entityIDs []string) ([]graph.Edge, error) {
	rows, err := s.run(ctx, `
MATCH (a:Entity {corpus_id: $corpus_id})-[r]->(b:Entity {corpus_id: $corpus_id})
WHERE a.entity_id IN $entity_ids
RETURN a.entity_id AS source_id, b.entity_id AS target_id, type(r) AS rel_type
`, map[string]any{"corpus_id": corpusID, "entity_ids": entityIDs})
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}

	out := make([]graph.Edge, 0, len(rows))
	for _, r := range rows {
		out = append(out, graph.Edge{
			FromEntityID: asString(r["source_id"]),
			ToEntityID:   asString(r["target_id"]),
			RelType:      model.RelationType(asString(r["rel_type"])),
		})
	}
	return out, nil
}

func (s *Neo4jGraphStore) HydrateToChunks(ctx context.Context, corpusID string, entityIDs []string) ([]graph.ChunkHydration, error) {
	rows, err := s.run(ctx, `
MATCH (e:Entity {corpus_id: $corpus_id})-[:IN_CHUNK]->(c:Chunk {corpus_id: $corpus_id})
WHERE e.entity_id IN $entity_ids
RETURN e.entity_id AS entity_id, c.chunk_id AS chunk_id
`, map[string]any{"corpus_id": corpusID, "entity_ids": entityIDs})
	if err != nil {
		return nil, fmt.Errorf("hydrate to chunks: %w", err)
	}

	out := make([]graph.ChunkHydration, 0, len(rows))
	for _, r := range rows {
		out = append(out, graph.ChunkHydration{EntityID: asString(r["entity_id"]), ChunkID: asString(r["chunk_id"])})
	}
	return out, nil
}

// Ping verifies connectivity for readiness probes (§6.1: "/api/ready probes
// Postgres + Neo4j for optional corpus") via a trivial `RETURN 1` statement.
func (s *Neo4jGraphStore) Ping(ctx context.Context) error {
	_, err := s.run(ctx, `RETURN 1 AS ok`, nil)
	return err
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
