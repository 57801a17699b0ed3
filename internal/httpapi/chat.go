package httpapi

import (
	"encoding/json"
	"net/http"

	"tribridrag/internal/answer"
	"tribridrag/internal/recall"
	"tribridrag/internal/retrieval"
)

// chatRequest extends answerRequest with the conversational-continuity
// fields the recall gate needs (§4.2). It is otherwise identical to
// /api/answer's body shape.
type chatRequest struct {
	answerRequest
	SessionID            string `json:"session_id,omitempty"`
	ConversationTurn     int    `json:"conversation_turn,omitempty"`
	LastRecallHadResults bool   `json:"last_recall_had_results,omitempty"`
	RAGCorporaActive     bool   `json:"rag_corpora_active,omitempty"`
	RecallOverride       string `json:"recall_override,omitempty"` // skip|light|standard|deep
}

// chatResponse adds session continuity metadata to the answerResponse shape.
type chatResponse struct {
	answerResponse
	SessionID string `json:"session_id,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	started := s.clock.Now()
	ctx, cancel := requestDeadlineCtx(r.Context(), req.DeadlineMs)
	defer cancel()

	result, err := s.service.Search(ctx, req.toRetrievalRequest(), chatContext(req, cfg))
	if err != nil {
		s.metrics.IncCounter("tribrid_search_errors_total", nil)
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	s.metrics.IncCounter("tribrid_search_requests_total", nil)

	// prior is looked up so a future provider wired for native thread
	// resumption can consume it; no current provider accepts it yet, so it
	// is recorded but not otherwise acted on (§7 "Chat session continuity").
	_, _ = s.sessions.Get(req.SessionID)

	resp := s.composer.Compose(ctx, answer.Request{
		Query:         req.Query,
		Matches:       result.Matches,
		SystemPrompt:  req.SystemPrompt,
		ModelOverride: req.ModelOverride,
	})

	modelLabel := "retrieval-only"
	if resp.LLMUsed {
		modelLabel = req.ModelOverride
		if modelLabel == "" {
			modelLabel = "default"
		}
	}
	s.sessions.Put(req.SessionID, modelLabel, resp.ProviderResponseID)

	respondJSON(w, http.StatusOK, chatResponse{
		answerResponse: answerResponse{
			Answer:    resp.Answer,
			Model:     modelLabel,
			RunID:     resp.RunID,
			Sources:   resp.Sources,
			LatencyMs: s.clock.Now().Sub(started).Milliseconds(),
			Debug:     answerDebug{LLMUsed: resp.LLMUsed, LLMError: resp.LLMError},
		},
		SessionID: req.SessionID,
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, cfg, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := requestDeadlineCtx(r.Context(), req.DeadlineMs)
	defer cancel()

	result, err := s.service.Search(ctx, req.toRetrievalRequest(), chatContext(req, cfg))
	if err != nil {
		s.metrics.IncCounter("tribrid_search_errors_total", nil)
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	s.metrics.IncCounter("tribrid_search_requests_total", nil)

	// Looked up (not yet consumed, see handleChat) for a future provider that
	// resumes a native thread. The streaming path's terminal "done" event
	// already carries ProviderResponseID to the client directly, so unlike
	// handleChat there is no server-side value to re-store here without also
	// having Stream report it back out-of-band.
	_, _ = s.sessions.Get(req.SessionID)

	writer, err := answer.NewWriter(w)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	if err := s.composer.Stream(ctx, answer.Request{
		Query:         req.Query,
		Matches:       result.Matches,
		SystemPrompt:  req.SystemPrompt,
		ModelOverride: req.ModelOverride,
	}, writer); err != nil {
		s.log.Error("chat stream write failed", map[string]any{"error": err.Error()})
	}
}

// decodeChatRequest decodes and validates the body, resolving the primary
// corpus's configuration so the recall gate config can be derived before the
// retrieval service resolves it again internally (cheap: read-through cache).
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatRequest, recall.GateConfig, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return chatRequest{}, recall.GateConfig{}, false
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return chatRequest{}, recall.GateConfig{}, false
	}

	cfg, err := s.resolver.Resolve(r.Context(), req.CorpusIDs[0], false)
	if err != nil {
		respondError(w, statusFromRetrievalError(err), err)
		return chatRequest{}, recall.GateConfig{}, false
	}
	return req, resolveRecallConfig(cfg.Chat), true
}

func chatContext(req chatRequest, recallCfg recall.GateConfig) *retrieval.ChatContext {
	return &retrieval.ChatContext{
		RecallConfig:         &recallCfg,
		Message:              req.Query,
		LastRecallHadResults: req.LastRecallHadResults,
		RAGCorporaActive:     req.RAGCorporaActive,
		UserOverride:         recall.Intensity(req.RecallOverride),
	}
}
