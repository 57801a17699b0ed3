package observability

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/rs/zerolog"

	"tribridrag/internal/model"
)

// AnalyticsSink appends each request's FusionDebug to ClickHouse for offline
// analysis. It is fire-and-forget: Record never blocks the request path and
// never surfaces an error to the caller, per spec.md §5/§7's
// "recoverable... never fails the request" policy applied to telemetry.
type AnalyticsSink struct {
	conn   clickhouse.Conn
	log    zerolog.Logger
	events chan analyticsEvent
	done   chan struct{}
}

type analyticsEvent struct {
	runID     string
	corpusID  string
	query     string
	debug     model.FusionDebug
	timestamp time.Time
}

// NewAnalyticsSink connects to ClickHouse, bootstraps the target table, and
// starts a background flusher. bufferSize bounds the in-flight queue; once
// full, Record drops the event rather than blocking the request.
func NewAnalyticsSink(ctx context.Context, dsn string, bufferSize int, log zerolog.Logger) (*AnalyticsSink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}
	if err := conn.Exec(ctx, `
CREATE TABLE IF NOT EXISTS fusion_debug_events (
  run_id String,
  corpus_id String,
  query String,
  debug_json String,
  recorded_at DateTime
) ENGINE = MergeTree()
ORDER BY recorded_at
`); err != nil {
		return nil, err
	}

	if bufferSize <= 0 {
		bufferSize = 1024
	}
	sink := &AnalyticsSink{
		conn:   conn,
		log:    log,
		events: make(chan analyticsEvent, bufferSize),
		done:   make(chan struct{}),
	}
	go sink.flush()
	return sink, nil
}

// Record enqueues an event without blocking; a full buffer drops the event
// and logs at debug level — analytics loss is never a request-path failure.
func (s *AnalyticsSink) Record(runID, corpusID, query string, debug model.FusionDebug, now time.Time) {
	select {
	case s.events <- analyticsEvent{runID: runID, corpusID: corpusID, query: query, debug: debug, timestamp: now}:
	default:
		s.log.Debug().Str("run_id", runID).Msg("analytics buffer full, dropping event")
	}
}

func (s *AnalyticsSink) flush() {
	for {
		select {
		case evt, ok := <-s.events:
			if !ok {
				close(s.done)
				return
			}
			s.write(evt)
		}
	}
}

func (s *AnalyticsSink) write(evt analyticsEvent) {
	raw, err := json.Marshal(evt.debug)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal fusion debug for analytics")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.conn.Exec(ctx, `
INSERT INTO fusion_debug_events (run_id, corpus_id, query, debug_json, recorded_at) VALUES (?, ?, ?, ?, ?)
`, evt.runID, evt.corpusID, evt.query, string(raw), evt.timestamp); err != nil {
		s.log.Warn().Err(err).Msg("analytics insert failed, dropping event")
	}
}

// Close stops the flusher and drains in-flight events once.
func (s *AnalyticsSink) Close() {
	close(s.events)
	<-s.done
	_ = s.conn.Close()
}
