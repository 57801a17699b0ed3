package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/model"
)

type fakeEncoder struct {
	scores []float64
	err    error
}

func (f *fakeEncoder) Score(ctx context.Context, query string, contents []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

type fakeCloud struct {
	scores  []float64
	traceID string
	err     error
}

func (f *fakeCloud) Rerank(ctx context.Context, query string, contents []string) ([]float64, string, error) {
	if f.err != nil {
		return nil, f.traceID, f.err
	}
	return f.scores, f.traceID, nil
}

func candidates() []model.ChunkMatch {
	return []model.ChunkMatch{
		{Chunk: model.Chunk{ChunkID: "c1", Content: "alpha"}, Score: 0.5},
		{Chunk: model.Chunk{ChunkID: "c2", Content: "beta"}, Score: 0.4},
		{Chunk: model.Chunk{ChunkID: "c3", Content: "gamma"}, Score: 0.3},
	}
}

func TestRerankModeNonePassesThrough(t *testing.T) {
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeNone})
	assert.False(t, debug.Applied)
	assert.Equal(t, "c1", out[0].ChunkID)
}

func TestRerankLocalReordersByEncoderScore(t *testing.T) {
	enc := &fakeEncoder{scores: []float64{0.1, 0.9, 0.5}}
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeLocal, Local: enc})
	require.True(t, debug.Applied)
	assert.Equal(t, "c2", out[0].ChunkID)
	assert.Equal(t, "c3", out[1].ChunkID)
	assert.Equal(t, "c1", out[2].ChunkID)
	assert.Equal(t, 0.5, out[2].RerankOf)
}

func TestRerankLocalInferenceFailureFailsOpen(t *testing.T) {
	enc := &fakeEncoder{err: errors.New("oom")}
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeLocal, Local: enc})
	assert.False(t, debug.Applied)
	assert.NotEmpty(t, debug.ErrorMessage)
	assert.Equal(t, "c1", out[0].ChunkID)
}

func TestRerankLearningMissingArtifactSkips(t *testing.T) {
	enc := &fakeEncoder{scores: []float64{0.9, 0.1, 0.1}}
	out, debug := Rerank(context.Background(), "q", candidates(), Options{
		Mode: ModeLearning, Learning: enc, LearningArtifactPath: "/nonexistent/corpus-xyz",
	})
	assert.False(t, debug.Applied)
	assert.Equal(t, "missing_trained_model", debug.SkippedReason)
	assert.Equal(t, "c1", out[0].ChunkID)
}

func TestRerankCloudErrorPreservesFusionOrderAndTraceID(t *testing.T) {
	cloud := &fakeCloud{err: errors.New("429 rate limited"), traceID: "trace-123"}
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeCloud, Cloud: cloud})
	assert.False(t, debug.Applied)
	assert.Equal(t, "trace-123", debug.DebugTraceID)
	assert.Equal(t, "c1", out[0].ChunkID)
	assert.Equal(t, "c2", out[1].ChunkID)
	assert.Equal(t, "c3", out[2].ChunkID)
}

func TestRerankCloudSuccessReorders(t *testing.T) {
	cloud := &fakeCloud{scores: []float64{0.2, 0.3, 0.95}, traceID: "trace-456"}
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeCloud, Cloud: cloud})
	require.True(t, debug.Applied)
	assert.Equal(t, "c3", out[0].ChunkID)
	assert.Equal(t, "trace-456", debug.DebugTraceID)
}

func TestRerankNoEncoderConfiguredFailsOpen(t *testing.T) {
	out, debug := Rerank(context.Background(), "q", candidates(), Options{Mode: ModeLocal})
	assert.False(t, debug.Applied)
	assert.Equal(t, "no_encoder_configured", debug.SkippedReason)
	assert.Len(t, out, 3)
}
