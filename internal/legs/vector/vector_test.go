package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }

type fakeStore struct {
	matches []Match
	err     error
}

func (f fakeStore) SimilaritySearch(context.Context, string, []float32, int) ([]Match, error) {
	return f.matches, f.err
}

func TestRunFiltersBelowThreshold(t *testing.T) {
	leg := New(fakeEmbedder{vec: []float32{0.1, 0.2}}, fakeStore{matches: []Match{
		{ChunkID: "a", Score: 0.9},
		{ChunkID: "b", Score: 0.05},
	}})
	out, err := leg.Run(context.Background(), "q", Options{CorpusID: "c1", TopKDense: 10, SimilarityThreshold: 0.2})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ChunkID)
}

func TestRunEmbeddingFailureReturnsError(t *testing.T) {
	leg := New(fakeEmbedder{err: assert.AnError}, fakeStore{})
	_, err := leg.Run(context.Background(), "q", Options{CorpusID: "c1"})
	assert.Error(t, err)
}
