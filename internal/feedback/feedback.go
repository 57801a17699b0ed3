// Package feedback implements the best-effort user/relevance feedback sink
// behind POST /api/feedback (§6.1, §9 open question on disk-full semantics).
// Grounded on internal/orchestrator/kafka.go's kafka.Writer usage — the only
// Kafka producer pattern in the teacher's tree — generalized from a
// fire-and-forget command bus write to a feedback-event publish.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Event is one feedback record: a relevance judgment on a prior search/answer
// turn, keyed by the run_id the caller got back in the response/debug block.
type Event struct {
	RunID     string   `json:"run_id"`
	CorpusID  string   `json:"corpus_id"`
	Query     string   `json:"query"`
	ChunkID   string   `json:"chunk_id,omitempty"`
	Relevant  *bool    `json:"relevant,omitempty"`
	Rating    int      `json:"rating,omitempty"` // 1-5, 0 if unset
	Comment   string   `json:"comment,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Timestamp int64    `json:"timestamp_ms"`
}

// Sink publishes feedback events. A nil *Sink (no Kafka brokers configured)
// makes Publish a no-op that still returns nil — feedback is explicitly
// best-effort per spec.md §6.1.
type Sink struct {
	writer *kafka.Writer
	topic  string
}

// New builds a Sink against brokers/topic. Pass an empty brokers string to
// get a disabled (no-op) sink — used when KAFKA_BROKERS is unset.
func New(brokers, topic string) *Sink {
	if brokers == "" {
		return nil
	}
	return &Sink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			Async:        false,
		},
		topic: topic,
	}
}

// Publish writes evt to the configured topic. suppress, set by the test
// header the spec carves out (§9: "tests use a header to suppress writes"),
// skips the network write entirely and reports success, so tests can assert
// the 202 best-effort path deterministically without a live broker. Absent
// that header, a real write failure is returned as-is and surfaces as a 500.
func (s *Sink) Publish(ctx context.Context, evt Event, suppress bool) error {
	if suppress {
		return nil
	}
	if s == nil {
		return nil
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode feedback event: %w", err)
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.RunID),
		Value: body,
		Time:  time.UnixMilli(evt.Timestamp),
	})
}

// Close releases the underlying writer's connections.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	return s.writer.Close()
}
