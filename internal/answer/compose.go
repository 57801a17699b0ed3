package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tribridrag/internal/core"
	"tribridrag/internal/model"
)

// snippetMaxChars bounds the retrieval-only fallback and the <rag_context>
// block so a pathological chunk can't blow out the prompt or response size.
const snippetMaxChars = 400

// Request is everything the composer needs to build a prompt and route a
// provider call for one turn.
type Request struct {
	Query          string
	Matches        []model.ChunkMatch
	RecallContext  string // pre-formatted recall-gate context, empty when not applicable
	SystemPrompt   string
	ModelOverride  string
}

// Response is the non-streaming result shape, also used to build the final
// `done` SSE frame's debug payload.
type Response struct {
	Answer             string
	RunID              string
	StartedAtMs        int64
	EndedAtMs          int64
	Sources            []string
	LLMUsed            bool
	LLMError           string
	ProviderResponseID string
}

// Composer wires a provider Registry to the prompt-building and always-answer
// fallback logic.
type Composer struct {
	registry *Registry
	clock    core.Clock
	log      core.Logger
}

type Option func(*Composer)

func WithClock(c core.Clock) Option { return func(co *Composer) { co.clock = c } }
func WithLogger(l core.Logger) Option { return func(co *Composer) { co.log = l } }

func New(registry *Registry, opts ...Option) *Composer {
	c := &Composer{registry: registry, clock: core.SystemClock{}, log: core.NopLogger{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// buildPrompt constructs the system + context message pair per spec.md §4.8:
// "a structured context block (XML-tagged: <rag_context>…</rag_context>,
// optionally <recall_context>…</recall_context>)".
func buildPrompt(req Request) []Message {
	var ctx strings.Builder
	ctx.WriteString("<rag_context>\n")
	for _, m := range req.Matches {
		fmt.Fprintf(&ctx, "[%s:%d-%d score=%.4f]\n%s\n\n", m.FilePath, m.StartLine, m.EndLine, m.Score, truncate(m.Content, snippetMaxChars))
	}
	ctx.WriteString("</rag_context>\n")
	if req.RecallContext != "" {
		fmt.Fprintf(&ctx, "<recall_context>\n%s\n</recall_context>\n", req.RecallContext)
	}

	msgs := []Message{}
	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.SystemPrompt})
	}
	msgs = append(msgs, Message{Role: "user", Content: ctx.String() + "\n" + req.Query})
	return msgs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func sources(matches []model.ChunkMatch) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = fmt.Sprintf("%s:%d-%d", m.FilePath, m.StartLine, m.EndLine)
	}
	return out
}

// fallbackAnswer builds the deterministic, LLM-free answer spec.md §4.8
// requires on any provider failure: "enumerates the top hydrated matches
// (file path, line range, score, truncated snippet)".
func fallbackAnswer(matches []model.ChunkMatch) string {
	if len(matches) == 0 {
		return "No matching content was found for this query."
	}
	var b strings.Builder
	b.WriteString("Retrieval-only results (no language model available):\n\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s:%d-%d (score %.4f)\n   %s\n", i+1, m.FilePath, m.StartLine, m.EndLine, m.Score, truncate(m.Content, snippetMaxChars))
	}
	return b.String()
}

// Compose runs the non-streaming path: route a provider, call it, and on any
// failure fall back to the deterministic retrieval-only answer. It never
// returns an error — spec.md §4.8's always-answer guarantee is unconditional.
func (c *Composer) Compose(ctx context.Context, req Request) Response {
	started := c.clock.Now()
	resp := Response{
		RunID:       uuid.NewString(),
		StartedAtMs: started.UnixMilli(),
		Sources:     sources(req.Matches),
	}

	provider, model, err := c.registry.Route(req.ModelOverride)
	if err != nil {
		resp.Answer = fallbackAnswer(req.Matches)
		resp.LLMUsed = false
		resp.LLMError = safeMessage(err)
		resp.EndedAtMs = c.clock.Now().UnixMilli()
		return resp
	}

	var out strings.Builder
	respID, err := provider.ChatStream(ctx, model, buildPrompt(req), func(d StreamDelta) {
		out.WriteString(d.Content)
	})
	if err != nil || out.Len() == 0 {
		c.log.Error("provider call failed, falling back to retrieval-only", map[string]any{"provider": provider.Name(), "error": safeMessage(err)})
		resp.Answer = fallbackAnswer(req.Matches)
		resp.LLMUsed = false
		resp.LLMError = safeMessage(err)
		resp.EndedAtMs = c.clock.Now().UnixMilli()
		return resp
	}

	resp.Answer = out.String()
	resp.LLMUsed = true
	resp.ProviderResponseID = respID
	resp.EndedAtMs = c.clock.Now().UnixMilli()
	return resp
}

// Stream runs the streaming path, writing text frames and a terminal done
// frame to w, both on success and on the retrieval-only fallback. If writing
// a fallback frame to w fails, Stream returns that error and writes nothing
// further; it never writes an error frame.
func (c *Composer) Stream(ctx context.Context, req Request, w *Writer) error {
	started := c.clock.Now()
	runID := uuid.NewString()
	sourceList := sources(req.Matches)

	provider, modelName, err := c.registry.Route(req.ModelOverride)
	if err != nil {
		return c.streamFallback(w, req, runID, started, sourceList, safeMessage(err))
	}

	var wroteAny bool
	respID, err := provider.ChatStream(ctx, modelName, buildPrompt(req), func(d StreamDelta) {
		if d.Content == "" {
			return
		}
		wroteAny = true
		_ = w.Text(d.Content)
	})
	if err != nil || !wroteAny {
		return c.streamFallback(w, req, runID, started, sourceList, safeMessage(err))
	}

	return w.Done(DoneEvent{
		RunID:              runID,
		StartedAtMs:        started.UnixMilli(),
		EndedAtMs:          c.clock.Now().UnixMilli(),
		Sources:            sourceList,
		ProviderResponseID: respID,
	})
}

func (c *Composer) streamFallback(w *Writer, req Request, runID string, started time.Time, sources []string, llmErr string) error {
	if llmErr != "" {
		c.log.Error("streaming provider call failed, falling back to retrieval-only", map[string]any{"error": llmErr})
	}
	if err := w.Text(fallbackAnswer(req.Matches)); err != nil {
		return err
	}
	return w.Done(DoneEvent{
		RunID:       runID,
		StartedAtMs: started.UnixMilli(),
		EndedAtMs:   c.clock.Now().UnixMilli(),
		Sources:     sources,
	})
}

func safeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const maxLen = 256
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
