package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/config"
	"tribridrag/internal/dispatch"
	"tribridrag/internal/legs/graph"
	"tribridrag/internal/legs/sparse"
	"tribridrag/internal/legs/vector"
	"tribridrag/internal/model"
	"tribridrag/internal/rerank"
)

type memConfigStore struct{ docs map[string]config.ScopedConfiguration }

func (m *memConfigStore) Get(_ context.Context, corpusID string) (config.ScopedConfiguration, bool, error) {
	cfg, ok := m.docs[corpusID]
	return cfg, ok, nil
}
func (m *memConfigStore) Put(_ context.Context, corpusID string, cfg config.ScopedConfiguration) error {
	m.docs[corpusID] = cfg
	return nil
}
func (m *memConfigStore) Delete(_ context.Context, corpusID string) error {
	delete(m.docs, corpusID)
	return nil
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type fakeVectorStore struct{ hits []vector.Match }

func (f fakeVectorStore) SimilaritySearch(context.Context, string, []float32, int) ([]vector.Match, error) {
	return f.hits, nil
}

type fakeSparseStore struct{ hits []sparse.Hit }

func (f fakeSparseStore) SearchConjunctive(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return f.hits, nil
}
func (f fakeSparseStore) SearchDisjunctive(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return nil, nil
}
func (f fakeSparseStore) SearchFilePathPrefix(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return nil, nil
}

type fakeGraphStore struct{}

func (fakeGraphStore) MatchEntitiesByToken(context.Context, string, []string) ([]model.Entity, error) {
	return nil, nil
}
func (fakeGraphStore) Expand(context.Context, string, []string) ([]graph.Edge, error) { return nil, nil }
func (fakeGraphStore) HydrateToChunks(context.Context, string, []string) ([]graph.ChunkHydration, error) {
	return nil, nil
}

type fakeHydrator struct{ calls int }

func (f *fakeHydrator) GetByIDs(_ context.Context, corpusID string, ids []string, _ int) (map[string]model.Chunk, error) {
	f.calls++
	out := map[string]model.Chunk{}
	for _, id := range ids {
		out[id] = model.Chunk{ChunkID: id, CorpusID: corpusID, Content: "content for " + id}
	}
	return out, nil
}

type fakeAnalytics struct {
	recorded bool
	corpusID string
	query    string
}

func (f *fakeAnalytics) Record(_ string, corpusID string, query string, _ model.FusionDebug, _ time.Time) {
	f.recorded = true
	f.corpusID = corpusID
	f.query = query
}

func noopRerankFactory(config.ScopedConfiguration) rerank.Options { return rerank.Options{} }

func newTestService(t *testing.T, embedErr error) (*Service, *fakeHydrator) {
	t.Helper()
	resolver, err := config.NewResolver(&memConfigStore{docs: map[string]config.ScopedConfiguration{}})
	require.NoError(t, err)

	vectorLeg := vector.New(fakeEmbedder{err: embedErr}, fakeVectorStore{hits: []vector.Match{
		{ChunkID: "v1", Score: 0.9}, {ChunkID: "v2", Score: 0.5},
	}})
	sparseLeg := sparse.New(fakeSparseStore{hits: []sparse.Hit{
		{ChunkID: "s1", Score: 2.0},
	}}, nil)
	graphLeg := graph.New(fakeGraphStore{})
	hydrator := &fakeHydrator{}

	svc := New(resolver, dispatch.New(), vectorLeg, sparseLeg, graphLeg, hydrator, noopRerankFactory)
	return svc, hydrator
}

func baseRequest() model.RetrievalRequest {
	return model.RetrievalRequest{
		Query:         "find the thing",
		CorpusIDs:     []string{"corpus-a"},
		IncludeVector: true,
		IncludeSparse: true,
		IncludeGraph:  true,
		TopK:          10,
	}
}

func TestSearch_FansOutAcrossAllLegsAndHydrates(t *testing.T) {
	svc, hydrator := newTestService(t, nil)

	result, err := svc.Search(context.Background(), baseRequest(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Matches)
	assert.GreaterOrEqual(t, hydrator.calls, 1)
	var sawVector, sawSparse bool
	for _, m := range result.Matches {
		switch m.ChunkID {
		case "v1", "v2":
			sawVector = true
		case "s1":
			sawSparse = true
		}
		assert.NotEmpty(t, m.Content, "expected hydrated content for %s", m.ChunkID)
	}
	assert.True(t, sawVector, "expected a vector-leg match in the fused result")
	assert.True(t, sawSparse, "expected a sparse-leg match in the fused result")
	assert.Equal(t, "rrf", result.Debug.FusionMethod)
	assert.False(t, result.Debug.Rerank.Applied)
	assert.Equal(t, "mode_none", result.Debug.Rerank.SkippedReason)
}

func TestSearch_VectorLegFailureStillReturnsOtherLegs(t *testing.T) {
	svc, _ := newTestService(t, assert.AnError)

	result, err := svc.Search(context.Background(), baseRequest(), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Matches)
	for _, m := range result.Matches {
		assert.NotContains(t, []string{"v1", "v2"}, m.ChunkID, "vector leg failed, should contribute no matches")
	}
}

func TestSearch_UnconfiguredCorpusFallsBackToDefaultsInsteadOfErroring(t *testing.T) {
	svc, _ := newTestService(t, nil)

	req := baseRequest()
	req.CorpusIDs = []string{"never-configured-corpus"}

	result, err := svc.Search(context.Background(), req, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Matches)
}

func TestSearch_NoCorpusIDsIsAnError(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Search(context.Background(), model.RetrievalRequest{Query: "x"}, nil)
	assert.Error(t, err)
}

func TestSearch_WeightedFusionMethodIsHonored(t *testing.T) {
	svc, _ := newTestService(t, nil)
	cfg := config.Defaults()
	cfg.Fusion.Method = config.FusionWeighted
	require.NoError(t, svc.Resolver.Save(context.Background(), "corpus-a", cfg))

	result, err := svc.Search(context.Background(), baseRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, "weighted", result.Debug.FusionMethod)
}

func TestSearch_RecordsAnalyticsWhenConfigured(t *testing.T) {
	svc, _ := newTestService(t, nil)
	analytics := &fakeAnalytics{}
	svc.Analytics = analytics

	_, err := svc.Search(context.Background(), baseRequest(), nil)
	require.NoError(t, err)

	assert.True(t, analytics.recorded)
	assert.Equal(t, "corpus-a", analytics.corpusID)
	assert.Equal(t, "find the thing", analytics.query)
}

func TestSearch_NoAnalyticsSinkIsFineByDefault(t *testing.T) {
	svc, _ := newTestService(t, nil)
	assert.Nil(t, svc.Analytics)

	_, err := svc.Search(context.Background(), baseRequest(), nil)
	require.NoError(t, err)
}
