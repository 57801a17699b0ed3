package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"tribridrag/internal/config"
)

// handleGetConfig backs GET /api/config?corpus_id=... (§6.1). An unknown
// corpus_id 404s and never auto-creates a row (§8 invariant).
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	corpusID := r.URL.Query().Get("corpus_id")
	cfg, err := s.resolver.Resolve(r.Context(), corpusID, corpusID != "")
	if err != nil {
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// handlePutConfig backs PUT/POST/PATCH /api/config?corpus_id=... — saves a
// per-corpus override, applying Normalize's invariants at load time.
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	corpusID := r.URL.Query().Get("corpus_id")
	if corpusID == "" {
		respondError(w, http.StatusUnprocessableEntity, errors.New("corpus_id query parameter is required"))
		return
	}

	var cfg config.ScopedConfiguration
	if r.Method == http.MethodPatch {
		existing, err := s.resolver.Resolve(r.Context(), corpusID, false)
		if err != nil {
			respondError(w, statusFromRetrievalError(err), err)
			return
		}
		cfg = existing
	}
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if cfg.Archive.S3Bucket != "" && s.archive != nil {
		if err := s.archive.VerifyBucket(r.Context(), cfg.Archive.S3Bucket); err != nil {
			respondError(w, http.StatusUnprocessableEntity, err)
			return
		}
	}

	if err := s.resolver.Save(r.Context(), corpusID, cfg); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}
	saved, err := s.resolver.Resolve(r.Context(), corpusID, true)
	if err != nil {
		respondError(w, statusFromRetrievalError(err), err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

// handleResetConfig backs DELETE /api/config?corpus_id=... — reverts the
// corpus to the global default by removing its override.
func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	corpusID := r.URL.Query().Get("corpus_id")
	if corpusID == "" {
		respondError(w, http.StatusUnprocessableEntity, errors.New("corpus_id query parameter is required"))
		return
	}
	if err := s.resolver.Reset(r.Context(), corpusID); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, s.resolver.Defaults())
}
