// Package mcpserver exposes the retrieval fusion core over MCP (§6.4):
// search, answer, and list_corpora tools for agent clients (Claude Code,
// Cursor) that prefer the Model Context Protocol to raw HTTP.
// Grounded on Aman-CERP-amanmcp/internal/mcp/server.go's server shape
// (mcp.NewServer/mcp.AddTool, typed Input/Output structs with jsonschema
// tags), generalized to the retrieval-fusion domain.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"tribridrag/internal/answer"
	"tribridrag/internal/core"
	"tribridrag/internal/model"
	"tribridrag/internal/retrieval"
)

// CorpusLister backs the list_corpora tool. internal/store.CorpusStore
// implements this; tests substitute an in-memory fake.
type CorpusLister interface {
	List(ctx context.Context) ([]model.Corpus, error)
}

// Server bridges MCP clients to the retrieval and answer cores.
type Server struct {
	mcp      *mcp.Server
	service  *retrieval.Service
	composer *answer.Composer
	corpora  CorpusLister

	log core.Logger
}

// Option configures a Server via functional options.
type Option func(*Server)

func WithLogger(l core.Logger) Option { return func(s *Server) { s.log = l } }

// NewServer constructs the MCP server and registers its tools.
func NewServer(name, version string, svc *retrieval.Service, composer *answer.Composer, corpora CorpusLister, opts ...Option) *Server {
	s := &Server{
		service: svc, composer: composer, corpora: corpora,
		log: core.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s
}

// Serve runs the server over stdio, blocking until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && err != context.Canceled {
		s.log.Error("mcp server stopped with error", map[string]any{"error": err.Error()})
		return err
	}
	s.log.Info("mcp server stopped gracefully", nil)
	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search",
		Description: "Tri-source retrieval over one or more corpora: dense vector similarity, sparse lexical FTS, and k-hop graph traversal, fused and optionally reranked. Returns scored chunks with file/line provenance.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "answer",
		Description: "Retrieves relevant chunks and composes a cited natural-language answer. Always returns an answer, falling back to a retrieval-only summary if no model provider is configured or reachable.",
	}, s.answerHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_corpora",
		Description: "Lists the corpus IDs available for search/answer calls.",
	}, s.listCorporaHandler)
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string   `json:"query" jsonschema:"the search query"`
	CorpusIDs []string `json:"corpus_ids" jsonschema:"corpora to search"`
	TopK      int      `json:"top_k,omitempty" jsonschema:"maximum number of results, default from corpus config"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResult `json:"results"`
}

// SearchResult is a single scored chunk.
type SearchResult struct {
	ChunkID   string  `json:"chunk_id"`
	FilePath  string  `json:"file_path" jsonschema:"file path relative to the corpus root"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Content   string  `json:"content"`
	Score     float64 `json:"score" jsonschema:"fused/reranked relevance score"`
	Source    string  `json:"source" jsonschema:"match source: fused for every result of the fused search pipeline"`
}

func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult, SearchOutput, error,
) {
	if input.Query == "" {
		return nil, SearchOutput{}, fmt.Errorf("query is required")
	}
	if len(input.CorpusIDs) == 0 {
		return nil, SearchOutput{}, fmt.Errorf("corpus_ids is required")
	}

	req := model.RetrievalRequest{Query: input.Query, CorpusIDs: input.CorpusIDs, TopK: input.TopK}
	result, err := s.service.Search(ctx, req, nil)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	out := SearchOutput{Results: make([]SearchResult, 0, len(result.Matches))}
	for _, m := range result.Matches {
		out.Results = append(out.Results, SearchResult{
			ChunkID: m.ChunkID, FilePath: m.FilePath, StartLine: m.StartLine,
			EndLine: m.EndLine, Content: m.Content, Score: m.Score, Source: string(m.Source),
		})
	}
	return nil, out, nil
}

// AnswerInput is the input schema for the answer tool.
type AnswerInput struct {
	Query         string   `json:"query" jsonschema:"the question to answer"`
	CorpusIDs     []string `json:"corpus_ids" jsonschema:"corpora to ground the answer in"`
	SystemPrompt  string   `json:"system_prompt,omitempty"`
	ModelOverride string   `json:"model_override,omitempty" jsonschema:"e.g. local:llama3, openrouter:anthropic/claude-3.5-sonnet, or a bare provider/model pair"`
}

// AnswerOutput is the output schema for the answer tool.
type AnswerOutput struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources" jsonschema:"file:line citations referenced by the answer"`
	LLMUsed  bool     `json:"llm_used"`
	LLMError string   `json:"llm_error,omitempty"`
}

func (s *Server) answerHandler(ctx context.Context, _ *mcp.CallToolRequest, input AnswerInput) (
	*mcp.CallToolResult, AnswerOutput, error,
) {
	if input.Query == "" {
		return nil, AnswerOutput{}, fmt.Errorf("query is required")
	}
	if len(input.CorpusIDs) == 0 {
		return nil, AnswerOutput{}, fmt.Errorf("corpus_ids is required")
	}

	req := model.RetrievalRequest{Query: input.Query, CorpusIDs: input.CorpusIDs}
	result, err := s.service.Search(ctx, req, nil)
	if err != nil {
		return nil, AnswerOutput{}, err
	}

	resp := s.composer.Compose(ctx, answer.Request{
		Query: input.Query, Matches: result.Matches,
		SystemPrompt: input.SystemPrompt, ModelOverride: input.ModelOverride,
	})
	return nil, AnswerOutput{
		Answer: resp.Answer, Sources: resp.Sources,
		LLMUsed: resp.LLMUsed, LLMError: resp.LLMError,
	}, nil
}

// ListCorporaInput is the (empty) input schema for the list_corpora tool.
type ListCorporaInput struct{}

// ListCorporaOutput is the output schema for the list_corpora tool.
type ListCorporaOutput struct {
	CorpusIDs []string `json:"corpus_ids"`
}

func (s *Server) listCorporaHandler(ctx context.Context, _ *mcp.CallToolRequest, _ ListCorporaInput) (
	*mcp.CallToolResult, ListCorporaOutput, error,
) {
	corpora, err := s.corpora.List(ctx)
	if err != nil {
		return nil, ListCorporaOutput{}, err
	}
	ids := make([]string, len(corpora))
	for i, c := range corpora {
		ids[i] = c.CorpusID
	}
	return nil, ListCorporaOutput{CorpusIDs: ids}, nil
}
