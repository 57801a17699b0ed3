package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	docs map[string]ScopedConfiguration
}

func newMemStore() *memStore { return &memStore{docs: map[string]ScopedConfiguration{}} }

func (m *memStore) Get(_ context.Context, corpusID string) (ScopedConfiguration, bool, error) {
	cfg, ok := m.docs[corpusID]
	return cfg, ok, nil
}

func (m *memStore) Put(_ context.Context, corpusID string, cfg ScopedConfiguration) error {
	m.docs[corpusID] = cfg
	return nil
}

func (m *memStore) Delete(_ context.Context, corpusID string) error {
	delete(m.docs, corpusID)
	return nil
}

func TestNormalizeWeightDrift(t *testing.T) {
	cfg := Defaults()
	cfg.Fusion.BM25Weight = 0.6
	cfg.Fusion.VectorWeight = 0.6
	require.NoError(t, Normalize(&cfg))
	assert.InDelta(t, 1.0, cfg.Fusion.BM25Weight+cfg.Fusion.VectorWeight, 1e-9)
}

func TestNormalizeZeroWeightsReset(t *testing.T) {
	cfg := Defaults()
	cfg.Fusion.BM25Weight = 0
	cfg.Fusion.VectorWeight = 0
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, 0.3, cfg.Fusion.BM25Weight)
	assert.Equal(t, 0.7, cfg.Fusion.VectorWeight)
}

func TestNormalizeChunkOverlapHardFail(t *testing.T) {
	cfg := Defaults()
	cfg.Retrieval.ChunkSize = 100
	cfg.Retrieval.ChunkOverlap = 100
	require.Error(t, Normalize(&cfg))
}

func TestNormalizeRRFKClamped(t *testing.T) {
	cfg := Defaults()
	cfg.Fusion.RRFK = 500
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, 200, cfg.Fusion.RRFK)
}

func TestResolverUnknownCorpusNotFound(t *testing.T) {
	r, err := NewResolver(newMemStore())
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "does-not-exist", true)
	assert.ErrorIs(t, err, ErrCorpusNotFound)
}

func TestResolverFallsBackToDefaults(t *testing.T) {
	r, err := NewResolver(newMemStore())
	require.NoError(t, err)
	cfg, err := r.Resolve(context.Background(), "new-corpus", false)
	require.NoError(t, err)
	assert.Equal(t, r.Defaults().Fusion.RRFK, cfg.Fusion.RRFK)
}

func TestResolverCacheInvalidatedOnSave(t *testing.T) {
	store := newMemStore()
	r, err := NewResolver(store)
	require.NoError(t, err)
	ctx := context.Background()

	cfg, err := r.Resolve(ctx, "corpus-a", false)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Retrieval.FinalK)

	updated := cfg
	updated.Retrieval.FinalK = 25
	require.NoError(t, r.Save(ctx, "corpus-a", updated))

	got, err := r.Resolve(ctx, "corpus-a", true)
	require.NoError(t, err)
	assert.Equal(t, 25, got.Retrieval.FinalK)
}
