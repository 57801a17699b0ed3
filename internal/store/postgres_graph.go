package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/legs/graph"
	"tribridrag/internal/model"
)

// PostgresGraphStore implements internal/legs/graph.Store over a property-
// graph-shaped node/edge table pair, scoped per corpus_id. Adapted from
// internal/persistence/databases/postgres_graph.go's nodes/edges tables,
// generalized with typed entities/relationships and an IN_CHUNK hydration
// edge (the teacher's graph is an untyped label/props store with no chunk
// hydration concept).
type PostgresGraphStore struct {
	pool *pgxpool.Pool
}

func NewPostgresGraphStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresGraphStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS graph_entities (
  corpus_id TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  name      TEXT NOT NULL,
  type      TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (corpus_id, entity_id)
);`,
		`CREATE INDEX IF NOT EXISTS graph_entities_name_idx ON graph_entities (corpus_id, name)`,
		`CREATE TABLE IF NOT EXISTS graph_edges (
  corpus_id TEXT NOT NULL,
  source_id TEXT NOT NULL,
  target_id TEXT NOT NULL,
  rel_type  TEXT NOT NULL,
  weight    DOUBLE PRECISION NOT NULL DEFAULT 1
);`,
		`CREATE INDEX IF NOT EXISTS graph_edges_src_idx ON graph_edges (corpus_id, source_id)`,
		`CREATE TABLE IF NOT EXISTS graph_chunk_links (
  corpus_id TEXT NOT NULL,
  entity_id TEXT NOT NULL,
  chunk_id  TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS graph_chunk_links_entity_idx ON graph_chunk_links (corpus_id, entity_id)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("bootstrap graph schema: %w", err)
		}
	}
	return &PostgresGraphStore{pool: pool}, nil
}

func (s *PostgresGraphStore) MatchEntitiesByToken(ctx context.Context, corpusID string, tokens []string) ([]model.Entity, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT entity_id, name, type, file_path
FROM graph_entities
WHERE corpus_id = $1 AND lower(name) = ANY($2)
`, corpusID, lowerAll(tokens))
	if err != nil {
		return nil, fmt.Errorf("match entities: %w", err)
	}
	defer rows.Close()

	out := []model.Entity{}
	for rows.Next() {
		var e model.Entity
		var typ string
		if err := rows.Scan(&e.EntityID, &e.Name, &typ, &e.FilePath); err != nil {
			return nil, err
		}
		e.CorpusID = corpusID
		e.Type = model.EntityType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) Expand(ctx context.Context, corpusID string, entityIDs []string) ([]graph.Edge, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT source_id, target_id, rel_type
FROM graph_edges
WHERE corpus_id = $1 AND source_id = ANY($2)
`, corpusID, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("expand: %w", err)
	}
	defer rows.Close()

	out := []graph.Edge{}
	for rows.Next() {
		var e graph.Edge
		var rel string
		if err := rows.Scan(&e.FromEntityID, &e.ToEntityID, &rel); err != nil {
			return nil, err
		}
		e.RelType = model.RelationType(rel)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) HydrateToChunks(ctx context.Context, corpusID string, entityIDs []string) ([]graph.ChunkHydration, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT entity_id, chunk_id
FROM graph_chunk_links
WHERE corpus_id = $1 AND entity_id = ANY($2)
`, corpusID, entityIDs)
	if err != nil {
		return nil, fmt.Errorf("hydrate to chunks: %w", err)
	}
	defer rows.Close()

	out := []graph.ChunkHydration{}
	for rows.Next() {
		var h graph.ChunkHydration
		if err := rows.Scan(&h.EntityID, &h.ChunkID); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
