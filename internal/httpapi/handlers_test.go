package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"tribridrag/internal/answer"
	"tribridrag/internal/config"
	"tribridrag/internal/dispatch"
	"tribridrag/internal/feedback"
	"tribridrag/internal/legs/graph"
	"tribridrag/internal/legs/sparse"
	"tribridrag/internal/legs/vector"
	"tribridrag/internal/model"
	"tribridrag/internal/observability"
	"tribridrag/internal/rerank"
	"tribridrag/internal/retrieval"
)

type memConfigStore struct {
	docs map[string]config.ScopedConfiguration
}

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

type fakeVectorStore struct{}

func (fakeVectorStore) SimilaritySearch(context.Context, string, []float32, int) ([]vector.Match, error) {
	return []vector.Match{{ChunkID: "c1", Score: 0.9}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{0.1, 0.2}, nil }

type fakeSparseStore struct{}

func (fakeSparseStore) SearchConjunctive(context.Context, string, []string, int) ([]sparse.Hit, error) {
	return []sparse.Hit{{ChunkID: "c1", Score: 1.2, FilePath: "internal/auth.go"}}, nil
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
		out[id] = model.Chunk{ChunkID: id, CorpusID: corpusID, Content: "func Login() {}", FilePath: "internal/auth.go", StartLine: 1, EndLine: 3}
	}
	return out, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := &memConfigStore{docs: map[string]config.ScopedConfiguration{}}
	resolver, err := config.NewResolver(store)
	require.NoError(t, err)

	vecLeg := vector.New(fakeEmbedder{}, fakeVectorStore{})
	sparLeg := sparse.New(fakeSparseStore{}, nil)
	graphLeg := graph.New(fakeGraphStore{})

	svc := retrieval.New(resolver, dispatch.New(), vecLeg, sparLeg, graphLeg, fakeHydrator{},
		func(config.ScopedConfiguration) rerank.Options { return rerank.Options{Mode: rerank.ModeNone} })

	registry := answer.NewRegistry(false)
	composer := answer.New(registry)
	metrics := observability.NewPrometheusMetrics()

	return NewServer(svc, composer, resolver, metrics)
}

func TestHandleSearch(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(searchRequest{Query: "login flow", CorpusIDs: []string{"demo"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Matches)
}

func TestHandleAnswerAlwaysAnswers(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(answerRequest{searchRequest: searchRequest{Query: "login flow", CorpusIDs: []string{"demo"}}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/answer", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp answerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Debug.LLMUsed)
	require.NotEmpty(t, resp.Debug.LLMError)
	require.NotEmpty(t, resp.Answer)
}

func TestHandleSearchRejectsMissingCorpus(t *testing.T) {
	srv := newTestServer(t)

	body, err := json.Marshal(searchRequest{Query: "login flow"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// newTestServerWithUnreachableFeedback wires a real (non-nil) feedback sink
// pointed at a broker address nothing is listening on, so a non-suppressed
// publish fails and a suppressed one doesn't touch it at all.
func newTestServerWithUnreachableFeedback(t *testing.T) *Server {
	t.Helper()
	store := &memConfigStore{docs: map[string]config.ScopedConfiguration{}}
	resolver, err := config.NewResolver(store)
	require.NoError(t, err)

	vecLeg := vector.New(fakeEmbedder{}, fakeVectorStore{})
	sparLeg := sparse.New(fakeSparseStore{}, nil)
	graphLeg := graph.New(fakeGraphStore{})

	svc := retrieval.New(resolver, dispatch.New(), vecLeg, sparLeg, graphLeg, fakeHydrator{},
		func(config.ScopedConfiguration) rerank.Options { return rerank.Options{Mode: rerank.ModeNone} })

	registry := answer.NewRegistry(false)
	composer := answer.New(registry)
	metrics := observability.NewPrometheusMetrics()

	sink := feedback.New("127.0.0.1:1", "feedback-test")
	return NewServer(svc, composer, resolver, metrics, WithFeedbackSink(sink))
}

func TestHandleFeedback_SuppressHeaderAlwaysReturns202(t *testing.T) {
	srv := newTestServerWithUnreachableFeedback(t)

	body, err := json.Marshal(feedbackRequest{RunID: "r1", CorpusID: "demo", Query: "login flow"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewReader(body))
	req.Header.Set(testSuppressWriteHeader, "1")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleFeedback_RealWriteFailureSurfacesWithoutSuppressHeader(t *testing.T) {
	srv := newTestServerWithUnreachableFeedback(t)

	body, err := json.Marshal(feedbackRequest{RunID: "r1", CorpusID: "demo", Query: "login flow"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandleFeedback_DisabledSinkAlwaysReturns202(t *testing.T) {
	srv := newTestServer(t) // no WithFeedbackSink: nil sink, best-effort per spec.md §6.1

	body, err := json.Marshal(feedbackRequest{RunID: "r1", CorpusID: "demo", Query: "login flow"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestHandleConfigUnknownCorpusNotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config?corpus_id=unknown", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
