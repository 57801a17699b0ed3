package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tribridrag/internal/config"
)

// PostgresConfigStore implements internal/config.Store over a JSONB column,
// per spec.md §6.2 ("corpus_configs as JSONB"). Adapted from the teacher's
// JSONB-column convention used throughout internal/persistence/databases
// (e.g. postgres_vector.go's `metadata JSONB`).
type PostgresConfigStore struct {
	pool *pgxpool.Pool
}

func NewPostgresConfigStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresConfigStore, error) {
	if _, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS corpus_configs (
  corpus_id TEXT PRIMARY KEY,
  doc       JSONB NOT NULL
);
`); err != nil {
		return nil, fmt.Errorf("create corpus_configs table: %w", err)
	}
	return &PostgresConfigStore{pool: pool}, nil
}

func (s *PostgresConfigStore) Get(ctx context.Context, corpusID string) (config.ScopedConfiguration, bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM corpus_configs WHERE corpus_id = $1`, corpusID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return config.ScopedConfiguration{}, false, nil
	}
	if err != nil {
		return config.ScopedConfiguration{}, false, fmt.Errorf("get corpus config: %w", err)
	}
	var cfg config.ScopedConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return config.ScopedConfiguration{}, false, fmt.Errorf("decode corpus config: %w", err)
	}
	return cfg, true, nil
}

func (s *PostgresConfigStore) Put(ctx context.Context, corpusID string, cfg config.ScopedConfiguration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode corpus config: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO corpus_configs (corpus_id, doc) VALUES ($1, $2)
ON CONFLICT (corpus_id) DO UPDATE SET doc = EXCLUDED.doc
`, corpusID, raw)
	if err != nil {
		return fmt.Errorf("put corpus config: %w", err)
	}
	return nil
}

func (s *PostgresConfigStore) Delete(ctx context.Context, corpusID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM corpus_configs WHERE corpus_id = $1`, corpusID)
	if err != nil {
		return fmt.Errorf("delete corpus config: %w", err)
	}
	return nil
}
