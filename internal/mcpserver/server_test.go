package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/answer"
	"tribridrag/internal/config"
	"tribridrag/internal/dispatch"
	"tribridrag/internal/legs/graph"
	"tribridrag/internal/legs/sparse"
	"tribridrag/internal/legs/vector"
	"tribridrag/internal/model"
	"tribridrag/internal/rerank"
	"tribridrag/internal/retrieval"
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

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }

type fakeVectorStore struct{}

func (fakeVectorStore) SimilaritySearch(context.Context, string, []float32, int) ([]vector.Match, error) {
	return []vector.Match{{ChunkID: "v1", Score: 0.9}}, nil
}

type fakeSparseStore struct{}

func (fakeSparseStore) SearchConjunctive(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return nil, nil
}
func (fakeSparseStore) SearchDisjunctive(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return nil, nil
}
func (fakeSparseStore) SearchFilePathPrefix(context.Context, string, []string, int) ([]sparse.Hit, error) {
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

type fakeHydrator struct{}

func (fakeHydrator) GetByIDs(_ context.Context, corpusID string, ids []string, _ int) (map[string]model.Chunk, error) {
	out := map[string]model.Chunk{}
	for _, id := range ids {
		out[id] = model.Chunk{ChunkID: id, CorpusID: corpusID, FilePath: "src/" + id + ".go", Content: "content " + id}
	}
	return out, nil
}

type fakeProvider struct{ reply string }

func (f *fakeProvider) Name() string               { return "fake" }
func (f *fakeProvider) Kind() answer.ProviderKind   { return answer.KindDirect }
func (f *fakeProvider) Priority() int               { return 0 }
func (f *fakeProvider) ChatStream(_ context.Context, _ string, _ []answer.Message, onDelta func(answer.StreamDelta)) (string, error) {
	onDelta(answer.StreamDelta{Content: f.reply})
	return "resp-1", nil
}

type fakeCorpusLister struct{ corpora []model.Corpus }

func (f fakeCorpusLister) List(context.Context) ([]model.Corpus, error) { return f.corpora, nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	resolver, err := config.NewResolver(&memConfigStore{docs: map[string]config.ScopedConfiguration{}})
	require.NoError(t, err)

	vectorLeg := vector.New(fakeEmbedder{}, fakeVectorStore{})
	sparseLeg := sparse.New(fakeSparseStore{}, nil)
	graphLeg := graph.New(fakeGraphStore{})

	svc := retrieval.New(resolver, dispatch.New(), vectorLeg, sparseLeg, graphLeg, fakeHydrator{},
		func(config.ScopedConfiguration) rerank.Options { return rerank.Options{} })

	registry := answer.NewRegistry(false, &fakeProvider{reply: "the answer is 42"})
	composer := answer.New(registry)

	corpora := fakeCorpusLister{corpora: []model.Corpus{{CorpusID: "corpus-a"}, {CorpusID: "corpus-b"}}}

	return NewServer("test", "0.0.1", svc, composer, corpora)
}

func TestSearchHandler_ReturnsFusedMatches(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.searchHandler(context.Background(), nil, SearchInput{
		Query: "find it", CorpusIDs: []string{"corpus-a"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Results)
}

func TestSearchHandler_RequiresQueryAndCorpusIDs(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.searchHandler(context.Background(), nil, SearchInput{CorpusIDs: []string{"corpus-a"}})
	assert.Error(t, err)

	_, _, err = s.searchHandler(context.Background(), nil, SearchInput{Query: "x"})
	assert.Error(t, err)
}

func TestAnswerHandler_ComposesAnswerFromRetrieval(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.answerHandler(context.Background(), nil, AnswerInput{
		Query: "what does this do", CorpusIDs: []string{"corpus-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, "the answer is 42", out.Answer)
	assert.True(t, out.LLMUsed)
	assert.NotEmpty(t, out.Sources)
}

func TestListCorporaHandler_ReturnsConfiguredCorpora(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.listCorporaHandler(context.Background(), nil, ListCorporaInput{})
	require.NoError(t, err)
	assert.Equal(t, []string{"corpus-a", "corpus-b"}, out.CorpusIDs)
}
