package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/legs/vector"
)

// PostgresVectorStore implements internal/legs/vector.Store over a
// pgvector-equipped Postgres table, scoped per corpus_id. Adapted from
// internal/persistence/databases/postgres_vector.go's table layout and
// cosine-distance query shape, generalized with a corpus_id filter column
// (the teacher's single-tenant `embeddings` table has none).
type PostgresVectorStore struct {
	pool       *pgxpool.Pool
	dimensions int
}

// NewPostgresVectorStore bootstraps the chunk_embeddings table. Ownership of
// the pool's lifecycle belongs to the PoolRegistry, not this store.
func NewPostgresVectorStore(ctx context.Context, pool *pgxpool.Pool, dimensions int) (*PostgresVectorStore, error) {
	vecType := "vector"
	if dimensions > 0 {
		vecType = fmt.Sprintf("vector(%d)", dimensions)
	}
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return nil, fmt.Errorf("create vector extension: %w", err)
	}
	if _, err := pool.Exec(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunk_embeddings (
  corpus_id TEXT NOT NULL,
  chunk_id  TEXT NOT NULL,
  embedding %s,
  PRIMARY KEY (corpus_id, chunk_id)
);
`, vecType)); err != nil {
		return nil, fmt.Errorf("create chunk_embeddings table: %w", err)
	}
	return &PostgresVectorStore{pool: pool, dimensions: dimensions}, nil
}

func (s *PostgresVectorStore) SimilaritySearch(ctx context.Context, corpusID string, vec []float32, k int) ([]vector.Match, error) {
	if k <= 0 {
		k = 40
	}
	rows, err := s.pool.Query(ctx, `
SELECT chunk_id, 1 - (embedding <=> $1::vector) AS score
FROM chunk_embeddings
WHERE corpus_id = $2
ORDER BY embedding <=> $1::vector
LIMIT $3
`, toVectorLiteral(vec), corpusID, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	out := make([]vector.Match, 0, k)
	for rows.Next() {
		var m vector.Match
		if err := rows.Scan(&m.ChunkID, &m.Score); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
