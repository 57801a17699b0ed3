package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/model"
)

func chunk(id string) model.ChunkMatch {
	return model.ChunkMatch{Chunk: model.Chunk{ChunkID: id}}
}

// Scenario 3 (spec.md §8): Leg A = [c1, c2], Leg B = [c1, c3], rrf_k=60.
// Expected order: c1 (1/61+1/61), then c2/c3 tied at 1/62, broken by id asc.
func TestFuseRRFScenario3(t *testing.T) {
	legA := LegResult{Source: model.SourceVector, Chunks: []model.ChunkMatch{chunk("c1"), chunk("c2")}}
	legB := LegResult{Source: model.SourceSparse, Chunks: []model.ChunkMatch{chunk("c1"), chunk("c3")}}

	out := Fuse(RRF, []LegResult{legA, legB}, 60, Weights{})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"c1", "c2", "c3"}, []string{out[0].ChunkID, out[1].ChunkID, out[2].ChunkID})
	assert.InDelta(t, 1.0/61+1.0/61, out[0].Score, 1e-12)
	assert.InDelta(t, 1.0/62, out[1].Score, 1e-12)
	assert.InDelta(t, 1.0/62, out[2].Score, 1e-12)
}

func TestFuseRRFDeterministic(t *testing.T) {
	legs := []LegResult{
		{Source: model.SourceVector, Chunks: []model.ChunkMatch{chunk("a"), chunk("b"), chunk("c")}},
		{Source: model.SourceGraph, Chunks: []model.ChunkMatch{chunk("b"), chunk("a")}},
	}
	first := Fuse(RRF, legs, 60, Weights{})
	second := Fuse(RRF, legs, 60, Weights{})
	assert.Equal(t, first, second)
}

func TestFuseWeightedNormalizesPerLeg(t *testing.T) {
	vecChunks := []model.ChunkMatch{
		{Chunk: model.Chunk{ChunkID: "v1"}, Score: 10, Source: model.SourceVector},
		{Chunk: model.Chunk{ChunkID: "v2"}, Score: 0, Source: model.SourceVector},
	}
	legs := []LegResult{{Source: model.SourceVector, Chunks: vecChunks}}

	out := Fuse(Weighted, legs, 0, Weights{Vector: 0.7})
	require.Len(t, out, 2)
	// v1 normalizes to 1.0 * 0.7, v2 normalizes to 0.0 * 0.7
	assert.InDelta(t, 0.7, out[0].Score, 1e-9)
	assert.InDelta(t, 0.0, out[1].Score, 1e-9)
	assert.Equal(t, "v1", out[0].ChunkID)
}

func TestFuseWeightedMissingLegContributesZero(t *testing.T) {
	vecChunks := []model.ChunkMatch{{Chunk: model.Chunk{ChunkID: "only-vector"}, Score: 1, Source: model.SourceVector}}
	sparseChunks := []model.ChunkMatch{{Chunk: model.Chunk{ChunkID: "only-sparse"}, Score: 1, Source: model.SourceSparse}}
	legs := []LegResult{
		{Source: model.SourceVector, Chunks: vecChunks},
		{Source: model.SourceSparse, Chunks: sparseChunks},
	}
	out := Fuse(Weighted, legs, 0, Weights{Vector: 0.7, Sparse: 0.3})
	require.Len(t, out, 2)
	for _, c := range out {
		assert.Greater(t, c.Score, 0.0)
	}
}
