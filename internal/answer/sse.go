package answer

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventType enumerates the SSE event frames the composer emits, per spec.md
// §4.8: "SSE envelope with event types text, done, error."
type EventType string

const (
	EventText  EventType = "text"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// DoneEvent is the terminal success payload.
type DoneEvent struct {
	RunID              string   `json:"run_id"`
	StartedAtMs        int64    `json:"started_at_ms"`
	EndedAtMs          int64    `json:"ended_at_ms"`
	Sources            []string `json:"sources"`
	ProviderResponseID string   `json:"provider_response_id,omitempty"`
}

// Writer frames typed SSE events over an http.ResponseWriter. Generalized
// from internal/a2a/sse.SSEWriter's Send/Close shape, extended with named
// `event:` lines (the teacher's writer only ever sends bare `data:` frames
// plus one hardcoded "close" event) so the reader can dispatch on event type
// without parsing the payload first.
type Writer struct {
	w http.ResponseWriter
	f http.Flusher
}

// NewWriter prepares w for SSE output. Returns an error instead of panicking
// when the underlying ResponseWriter can't flush, so callers can fall back
// to a non-streaming response.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	f, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming unsupported by response writer")
	}
	return &Writer{w: w, f: f}, nil
}

func (s *Writer) send(event EventType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sse payload: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

func (s *Writer) Text(delta string) error {
	return s.send(EventText, map[string]string{"content": delta})
}

func (s *Writer) Done(evt DoneEvent) error {
	return s.send(EventDone, evt)
}

func (s *Writer) Error(message string) error {
	return s.send(EventError, map[string]string{"message": message})
}
