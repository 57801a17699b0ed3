package httpapi

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type readinessCheck struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// handleReady probes every configured dependency (§6.1: "probes Postgres +
// Neo4j for optional corpus"). The graph check is skipped (reported ready)
// when no graph ping was wired — the graph leg is optional per corpus.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := []readinessCheck{}
	allReady := true

	if s.pingPostgres != nil {
		c := readinessCheck{Name: "postgres", Ready: true}
		if err := s.pingPostgres(ctx); err != nil {
			c.Ready, c.Error = false, err.Error()
			allReady = false
		}
		checks = append(checks, c)
	}
	if s.pingGraph != nil {
		c := readinessCheck{Name: "graph", Ready: true}
		if err := s.pingGraph(ctx); err != nil {
			c.Ready, c.Error = false, err.Error()
			allReady = false
		}
		checks = append(checks, c)
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{"ready": allReady, "checks": checks})
}
