package httpapi

import (
	"encoding/json"
	"net/http"

	"tribridrag/internal/feedback"
)

// testSuppressWriteHeader lets tests deterministically exercise the
// best-effort 202 path without needing a live Kafka broker (§9: "tests use a
// header to suppress writes"). Its absence lets a real write failure surface
// as a 500, matching original_source/tests/api/test_feedback_endpoints.py.
const testSuppressWriteHeader = "X-Test-Suppress-Feedback-Write"

type feedbackRequest struct {
	RunID    string   `json:"run_id"`
	CorpusID string   `json:"corpus_id"`
	Query    string   `json:"query"`
	ChunkID  string   `json:"chunk_id,omitempty"`
	Relevant *bool    `json:"relevant,omitempty"`
	Rating   int      `json:"rating,omitempty"`
	Comment  string   `json:"comment,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// handleFeedback backs POST /api/feedback. Best-effort: a disabled/no-op
// sink still returns 202 Accepted, since spec.md §6.1 requires the write path to
// "never 500 ... when disabled" — a real write failure otherwise surfaces as
// a 500, unless the test header is present to suppress the write entirely.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	suppress := r.Header.Get(testSuppressWriteHeader) != ""
	evt := feedback.Event{
		RunID: req.RunID, CorpusID: req.CorpusID, Query: req.Query,
		ChunkID: req.ChunkID, Relevant: req.Relevant, Rating: req.Rating,
		Comment: req.Comment, Tags: req.Tags, Timestamp: s.clock.Now().UnixMilli(),
	}
	if err := s.feedback.Publish(r.Context(), evt, suppress); err != nil {
		s.log.Error("feedback publish failed", map[string]any{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
}

// handleSecretsCheck backs GET /api/secrets/check — booleans only, never
// values (§6.5).
func (s *Server) handleSecretsCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.secrets.SecretsPresent())
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]any{"error": err.Error()})
}
