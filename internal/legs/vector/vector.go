// Package vector implements the Vector Leg (C4): embed the query, issue ANN
// over the dense index scoped by corpus_id. Grounded on
// internal/persistence/databases/qdrant_vector.go (primary backend) and
// postgres_vector.go (pgvector-style fallback) — generalized behind a small
// Store port so the leg itself never imports a concrete driver.
package vector

import (
	"context"

	"tribridrag/internal/model"
)

// Embedder embeds a query into a fixed-dimension vector. Ported from the
// teacher's internal/rag/embedder.Embedder interface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one ANN hit.
type Match struct {
	ChunkID string
	Score   float64 // cosine similarity, higher is better
}

// Store is the minimal ANN port the leg needs; concrete implementations
// (Qdrant, pgvector) live in internal/store.
type Store interface {
	SimilaritySearch(ctx context.Context, corpusID string, vector []float32, k int) ([]Match, error)
}

// Options configures a single invocation (budgets come from the query plan).
type Options struct {
	CorpusID            string
	TopKDense           int
	SimilarityThreshold float64
}

// Leg is the Vector Leg.
type Leg struct {
	embedder Embedder
	store    Store
}

func New(embedder Embedder, store Store) *Leg {
	return &Leg{embedder: embedder, store: store}
}

// Run embeds the query and issues ANN search, returning chunk_id-only matches
// (hydration is deferred to fusion, per spec.md §4.4). On embedding failure it
// returns an empty slice and an error for the caller to record in
// FusionDebug — it never panics and never blocks the other legs.
func (l *Leg) Run(ctx context.Context, query string, opt Options) ([]model.ChunkMatch, error) {
	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	k := opt.TopKDense
	if k <= 0 {
		k = 40
	}
	matches, err := l.store.SimilaritySearch(ctx, opt.CorpusID, vec, k)
	if err != nil {
		return nil, err
	}

	out := make([]model.ChunkMatch, 0, len(matches))
	for _, m := range matches {
		if m.Score < opt.SimilarityThreshold {
			continue
		}
		out = append(out, model.ChunkMatch{
			Chunk:  model.Chunk{ChunkID: m.ChunkID, CorpusID: opt.CorpusID},
			Score:  m.Score,
			Source: model.SourceVector,
		})
	}
	return out, nil
}
