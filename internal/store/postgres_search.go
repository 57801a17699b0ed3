package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/legs/sparse"
)

// PostgresSparseStore implements internal/legs/sparse.Store's three-stage
// contract over a tsvector-indexed chunks table, scoped per corpus_id.
// Adapted from internal/persistence/databases/postgres_search.go's
// websearch_to_tsquery/plainto_tsquery pattern — the teacher's single-stage
// Search() is split here into the three explicit stages the sparse leg
// drives (conjunctive, disjunctive-relaxed, file-path prefix).
type PostgresSparseStore struct {
	pool *pgxpool.Pool
}

func NewPostgresSparseStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresSparseStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chunks_fts (
  corpus_id TEXT NOT NULL,
  chunk_id  TEXT NOT NULL,
  file_path TEXT NOT NULL DEFAULT '',
  content   TEXT NOT NULL,
  ts        tsvector GENERATED ALWAYS AS (to_tsvector('simple', coalesce(content,''))) STORED,
  PRIMARY KEY (corpus_id, chunk_id)
);
`); err != nil {
		return nil, fmt.Errorf("create chunks_fts table: %w", err)
	}
	if _, err := pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS chunks_fts_ts_idx ON chunks_fts USING GIN (ts)`); err != nil {
		return nil, fmt.Errorf("create chunks_fts index: %w", err)
	}
	return &PostgresSparseStore{pool: pool}, nil
}

func (s *PostgresSparseStore) SearchConjunctive(ctx context.Context, corpusID string, terms []string, limit int) ([]sparse.Hit, error) {
	return s.query(ctx, corpusID, `plainto_tsquery('simple', $1)`, strings.Join(terms, " "), limit)
}

func (s *PostgresSparseStore) SearchDisjunctive(ctx context.Context, corpusID string, terms []string, limit int) ([]sparse.Hit, error) {
	// websearch_to_tsquery with "OR"-joined terms relaxes the conjunctive default.
	return s.query(ctx, corpusID, `websearch_to_tsquery('simple', $1)`, strings.Join(terms, " OR "), limit)
}

func (s *PostgresSparseStore) SearchFilePathPrefix(ctx context.Context, corpusID string, terms []string, limit int) ([]sparse.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	like := "%" + strings.Join(terms, "%") + "%"
	rows, err := s.pool.Query(ctx, `
SELECT chunk_id, file_path, 1.0 AS score
FROM chunks_fts
WHERE corpus_id = $1 AND file_path ILIKE $2
ORDER BY chunk_id
LIMIT $3
`, corpusID, like, limit)
	if err != nil {
		return nil, fmt.Errorf("file path prefix search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

func (s *PostgresSparseStore) query(ctx context.Context, corpusID, tsqueryExpr, q string, limit int) ([]sparse.Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	stmt := fmt.Sprintf(`
SELECT chunk_id, file_path, ts_rank(ts, %s) AS score
FROM chunks_fts
WHERE corpus_id = $2 AND ts @@ %s
ORDER BY score DESC
LIMIT $3
`, tsqueryExpr, tsqueryExpr)
	rows, err := s.pool.Query(ctx, stmt, q, corpusID, limit)
	if err != nil {
		return nil, fmt.Errorf("sparse search: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanHits(rows rowScanner) ([]sparse.Hit, error) {
	out := []sparse.Hit{}
	for rows.Next() {
		var h sparse.Hit
		if err := rows.Scan(&h.ChunkID, &h.FilePath, &h.Score); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
