package answer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_ChatStream_AccumulatesDeltasFromSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"id\":\"resp-1\",\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"id\":\"resp-1\",\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider("openai", KindDirect, 0, "test-key", srv.URL, "gpt-4o-mini")

	var got strings.Builder
	respID, err := p.ChatStream(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, func(d StreamDelta) {
		got.WriteString(d.Content)
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.String())
	assert.Equal(t, "resp-1", respID)
}

func TestOpenAIProvider_ImplementsProviderInterface(t *testing.T) {
	p := NewOpenAIProvider("openrouter", KindAggregator, 2, "k", "https://openrouter.ai/api/v1", "m")
	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, KindAggregator, p.Kind())
	assert.Equal(t, 2, p.Priority())
}
