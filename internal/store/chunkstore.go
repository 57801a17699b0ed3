package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/model"
)

// PostgresChunkStore hydrates chunk_id-only matches with content and
// metadata (§4.7 step 2), scoped per corpus_id. Adapted from
// internal/persistence/databases/postgres_vector.go's chunk-row shape,
// generalized with the corpus_id column the teacher's single-tenant table
// lacks and a metadata JSONB column (§6.2: "tables for corpora, per-corpus
// chunks ... Must support (chunk_id, corpus_id) lookup").
type PostgresChunkStore struct {
	pool *pgxpool.Pool
}

func NewPostgresChunkStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresChunkStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chunks (
  corpus_id   TEXT NOT NULL,
  chunk_id    TEXT NOT NULL,
  content     TEXT NOT NULL,
  file_path   TEXT NOT NULL,
  start_line  INTEGER NOT NULL,
  end_line    INTEGER NOT NULL,
  language    TEXT NOT NULL DEFAULT '',
  token_count INTEGER NOT NULL DEFAULT 0,
  summary     TEXT NOT NULL DEFAULT '',
  metadata    JSONB NOT NULL DEFAULT '{}',
  PRIMARY KEY (corpus_id, chunk_id)
);
`); err != nil {
		return nil, fmt.Errorf("create chunks table: %w", err)
	}
	return &PostgresChunkStore{pool: pool}, nil
}

// GetByIDs fetches the rows for ids in corpusID, truncating Content to
// maxChars when positive (§4.7 step 2's hydration_max_chars cap). Missing ids
// are simply absent from the result — the caller (C7) decides whether a
// match without content is dropped or passed through chunk_id-only.
func (s *PostgresChunkStore) GetByIDs(ctx context.Context, corpusID string, ids []string, maxChars int) (map[string]model.Chunk, error) {
	out := map[string]model.Chunk{}
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT chunk_id, content, file_path, start_line, end_line, language, token_count, summary, metadata
FROM chunks
WHERE corpus_id = $1 AND chunk_id = ANY($2)
`, corpusID, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Chunk
		var raw []byte
		if err := rows.Scan(&c.ChunkID, &c.Content, &c.FilePath, &c.StartLine, &c.EndLine, &c.Language, &c.TokenCount, &c.Summary, &raw); err != nil {
			return nil, err
		}
		c.CorpusID = corpusID
		if len(raw) > 0 {
			meta := map[string]string{}
			if err := json.Unmarshal(raw, &meta); err == nil {
				c.Metadata = meta
			}
		}
		if maxChars > 0 && len(c.Content) > maxChars {
			c.Content = c.Content[:maxChars]
		}
		out[c.ChunkID] = c
	}
	return out, rows.Err()
}

// Get fetches a single chunk by (corpusID, chunkID).
func (s *PostgresChunkStore) Get(ctx context.Context, corpusID, chunkID string) (model.Chunk, bool, error) {
	out, err := s.GetByIDs(ctx, corpusID, []string{chunkID}, 0)
	if err != nil {
		return model.Chunk{}, false, err
	}
	c, ok := out[chunkID]
	return c, ok, nil
}
