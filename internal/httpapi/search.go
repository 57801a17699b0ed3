package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"tribridrag/internal/config"
	"tribridrag/internal/model"
	"tribridrag/internal/recall"
	"tribridrag/internal/retrieval"
)

// searchRequest is the common request body shape for /api/search,
// /api/answer, and /api/chat (§3, §6.1: "Request/response shapes follow §3").
type searchRequest struct {
	Query         string   `json:"query"`
	CorpusIDs     []string `json:"corpus_ids"`
	TopK          int      `json:"top_k,omitempty"`
	IncludeVector *bool    `json:"include_vector,omitempty"`
	IncludeSparse *bool    `json:"include_sparse,omitempty"`
	IncludeGraph  *bool    `json:"include_graph,omitempty"`
	DeadlineMs    int      `json:"deadline_ms,omitempty"`
}

func (r searchRequest) toRetrievalRequest() model.RetrievalRequest {
	return model.RetrievalRequest{
		Query:         r.Query,
		CorpusIDs:     r.CorpusIDs,
		IncludeVector: boolOr(r.IncludeVector, true),
		IncludeSparse: boolOr(r.IncludeSparse, true),
		IncludeGraph:  boolOr(r.IncludeGraph, true),
		TopK:          r.TopK,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func (r searchRequest) validate() error {
	if r.Query == "" {
		return errors.New("query is required")
	}
	if len(r.CorpusIDs) == 0 {
		return errors.New("corpus_ids must contain at least one id")
	}
	return nil
}

type searchResponse struct {
	CorpusIDs []string           `json:"corpus_ids"`
	Matches   []model.ChunkMatch `json:"matches"`
	Debug     model.FusionDebug  `json:"debug"`
	LatencyMs int64              `json:"latency_ms"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	started := s.clock.Now()
	ctx, cancel := requestDeadlineCtx(r.Context(), req.DeadlineMs)
	defer cancel()

	result, err := s.service.Search(ctx, req.toRetrievalRequest(), nil)
	if err != nil {
		s.metrics.IncCounter("tribrid_search_errors_total", nil)
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	s.metrics.IncCounter("tribrid_search_requests_total", nil)
	s.metrics.ObserveHistogram("tribrid_search_latency_seconds", s.clock.Now().Sub(started).Seconds(), nil)

	respondJSON(w, http.StatusOK, searchResponse{
		CorpusIDs: req.CorpusIDs,
		Matches:   result.Matches,
		Debug:     result.Debug,
		LatencyMs: s.clock.Now().Sub(started).Milliseconds(),
	})
}

func statusFromRetrievalError(err error) int {
	if errors.Is(err, retrieval.ErrCorpusNotFound) || errors.Is(err, config.ErrCorpusNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// resolveRecallConfig derives a recall.GateConfig from the corpus's chat
// config. Only used on the /api/chat path — /api/search and /api/answer
// never gate on recall (§4.2: "only applies to chat").
func resolveRecallConfig(chat config.ChatConfig) recall.GateConfig {
	return recall.GateConfig{
		Enabled:                 chat.RecallGateEnabled,
		DefaultIntensity:        recall.IntensityStandard,
		SkipGreetings:           true,
		SkipStandaloneQuestions: true,
		SkipWhenRAGActive:       true,
		LightForShortQuestions:  true,
		SkipMaxTokens:           chat.ShortMessageTokenThreshold,
		LightTopK:               chat.LightTopK,
		StandardTopK:            chat.StandardTopK,
		DeepTopK:                chat.DeepTopK,
		StandardRecencyWeight:   0.5,
		DeepRecencyWeight:       chat.DeepRecencyWeight,
	}
}
