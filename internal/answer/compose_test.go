package answer

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tribridrag/internal/model"
)

type fakeProvider struct {
	name     string
	kind     ProviderKind
	priority int
	respID   string
	deltas   []string
	err      error
}

func (f *fakeProvider) Name() string          { return f.name }
func (f *fakeProvider) Kind() ProviderKind     { return f.kind }
func (f *fakeProvider) Priority() int          { return f.priority }
func (f *fakeProvider) ChatStream(ctx context.Context, model string, messages []Message, onDelta func(StreamDelta)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, d := range f.deltas {
		onDelta(StreamDelta{Content: d})
	}
	return f.respID, nil
}

func matches() []model.ChunkMatch {
	return []model.ChunkMatch{
		{Chunk: model.Chunk{ChunkID: "c1", FilePath: "src/auth.py", StartLine: 10, EndLine: 20, Content: "def login(): ..."}, Score: 0.9},
	}
}

// Scenario 5 (spec.md §8): no provider configured → 200-equivalent retrieval-only.
func TestComposeAlwaysAnswerNoProvider(t *testing.T) {
	reg := NewRegistry(false)
	c := New(reg)
	resp := c.Compose(context.Background(), Request{Query: "where is login", Matches: matches()})
	assert.False(t, resp.LLMUsed)
	assert.NotEmpty(t, resp.LLMError)
	assert.Contains(t, resp.Answer, "src/auth.py")
	assert.NotEmpty(t, resp.Sources)
}

func TestComposeProviderFailureFallsBack(t *testing.T) {
	reg := NewRegistry(false, &fakeProvider{name: "openai", kind: KindDirect, err: errors.New("401 unauthorized")})
	c := New(reg)
	resp := c.Compose(context.Background(), Request{Query: "q", Matches: matches()})
	assert.False(t, resp.LLMUsed)
	assert.Contains(t, resp.Answer, "Retrieval-only")
}

func TestComposeProviderSuccess(t *testing.T) {
	reg := NewRegistry(false, &fakeProvider{name: "openai", kind: KindDirect, deltas: []string{"hello ", "world"}, respID: "resp-1"})
	c := New(reg)
	resp := c.Compose(context.Background(), Request{Query: "q", Matches: matches()})
	assert.True(t, resp.LLMUsed)
	assert.Equal(t, "hello world", resp.Answer)
	assert.Equal(t, "resp-1", resp.ProviderResponseID)
}

func TestRouteLocalPrefixForces(t *testing.T) {
	reg := NewRegistry(false, &fakeProvider{name: "llama", kind: KindLocal, priority: 1})
	p, model, err := reg.Route("local:llama-3")
	require.NoError(t, err)
	assert.Equal(t, "llama", p.Name())
	assert.Equal(t, "llama-3", model)
}

func TestRouteOpenRouterPrefixRequiresKeyed(t *testing.T) {
	reg := NewRegistry(false, &fakeProvider{name: "or", kind: KindAggregator})
	_, _, err := reg.Route("openrouter:gpt-4o")
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestRouteProviderSlashModelUsesAggregatorWhenKeyed(t *testing.T) {
	reg := NewRegistry(true, &fakeProvider{name: "or", kind: KindAggregator})
	p, model, err := reg.Route("openai/gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, "or", p.Name())
	assert.Equal(t, "openai/gpt-4o-mini", model)
}

func TestRouteFallsBackToLowestPriorityLocal(t *testing.T) {
	reg := NewRegistry(false,
		&fakeProvider{name: "b-local", kind: KindLocal, priority: 2},
		&fakeProvider{name: "a-local", kind: KindLocal, priority: 1},
	)
	p, _, err := reg.Route("")
	require.NoError(t, err)
	assert.Equal(t, "a-local", p.Name())
}

func TestRouteNoProvidersReturnsSentinel(t *testing.T) {
	reg := NewRegistry(false)
	_, _, err := reg.Route("")
	assert.ErrorIs(t, err, ErrNoProviderAvailable)
}

func TestBuildPromptIncludesRagAndRecallContext(t *testing.T) {
	msgs := buildPrompt(Request{
		Query:         "where is login",
		Matches:       matches(),
		RecallContext: "user previously asked about auth",
		SystemPrompt:  "You are a helpful assistant.",
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "<rag_context>")
	assert.Contains(t, msgs[1].Content, "<recall_context>")
	assert.Contains(t, msgs[1].Content, "src/auth.py")
}

func TestStreamWritesTextAndDoneFrames(t *testing.T) {
	reg := NewRegistry(false, &fakeProvider{name: "openai", kind: KindDirect, deltas: []string{"hi"}, respID: "r1"})
	c := New(reg)
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)
	err = c.Stream(context.Background(), Request{Query: "q", Matches: matches()}, w)
	require.NoError(t, err)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "event: text"))
	assert.True(t, strings.Contains(body, "event: done"))
}
