package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/model"
)

// CorpusStore lists and reads the corpora registry (§6.2). The core reads
// corpora; it never creates or deletes them from the request path (indexing
// is out of scope here — see SPEC_FULL.md Non-goals), so only read methods
// are exposed.
type CorpusStore struct {
	pool *pgxpool.Pool
}

func NewCorpusStore(ctx context.Context, pool *pgxpool.Pool) (*CorpusStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS corpora (
  corpus_id  TEXT PRIMARY KEY,
  root_path  TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`); err != nil {
		return nil, fmt.Errorf("create corpora table: %w", err)
	}
	return &CorpusStore{pool: pool}, nil
}

func (s *CorpusStore) List(ctx context.Context) ([]model.Corpus, error) {
	rows, err := s.pool.Query(ctx, `SELECT corpus_id, root_path, created_at FROM corpora ORDER BY corpus_id`)
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", err)
	}
	defer rows.Close()

	out := []model.Corpus{}
	for rows.Next() {
		var c model.Corpus
		if err := rows.Scan(&c.CorpusID, &c.RootPath, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *CorpusStore) Exists(ctx context.Context, corpusID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM corpora WHERE corpus_id = $1)`, corpusID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check corpus existence: %w", err)
	}
	return exists, nil
}
