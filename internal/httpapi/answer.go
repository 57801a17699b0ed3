package httpapi

import (
	"encoding/json"
	"net/http"

	"tribridrag/internal/answer"
)

// answerRequest extends searchRequest with the composer-facing fields.
type answerRequest struct {
	searchRequest
	SystemPrompt  string `json:"system_prompt,omitempty"`
	ModelOverride string `json:"model_override,omitempty"`
}

type answerResponse struct {
	Answer             string `json:"answer"`
	Model              string `json:"model"`
	RunID              string `json:"run_id"`
	Sources            []string `json:"sources"`
	LatencyMs          int64  `json:"latency_ms"`
	Debug              answerDebug `json:"debug"`
}

type answerDebug struct {
	LLMUsed  bool   `json:"llm_used"`
	LLMError string `json:"llm_error,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
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

	respondJSON(w, http.StatusOK, answerResponse{
		Answer:    resp.Answer,
		Model:     modelLabel,
		RunID:     resp.RunID,
		Sources:   resp.Sources,
		LatencyMs: s.clock.Now().Sub(started).Milliseconds(),
		Debug:     answerDebug{LLMUsed: resp.LLMUsed, LLMError: resp.LLMError},
	})
}

func (s *Server) handleAnswerStream(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	ctx, cancel := requestDeadlineCtx(r.Context(), req.DeadlineMs)
	defer cancel()

	result, err := s.service.Search(ctx, req.toRetrievalRequest(), nil)
	if err != nil {
		s.metrics.IncCounter("tribrid_search_errors_total", nil)
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	s.metrics.IncCounter("tribrid_search_requests_total", nil)

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
		s.log.Error("answer stream write failed", map[string]any{"error": err.Error()})
	}
}
