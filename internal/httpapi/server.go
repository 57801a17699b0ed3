// Package httpapi exposes the retrieval fusion core over HTTP (§6.1):
// /api/search, /api/answer[/stream], /api/chat[/stream], /api/health,
// /api/ready, /metrics, /api/config*, /api/feedback, /api/secrets/check.
// Grounded on the teacher's Go 1.22 ServeMux method-pattern routing and
// respondJSON/respondError helpers (internal/httpapi/server.go,handlers.go's
// original playground-API shape), generalized to the retrieval-fusion domain.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"tribridrag/internal/answer"
	"tribridrag/internal/chatsession"
	"tribridrag/internal/config"
	"tribridrag/internal/core"
	"tribridrag/internal/feedback"
	"tribridrag/internal/observability"
	"tribridrag/internal/retrieval"
)

// defaultRequestDeadline bounds the whole request (§5: "request_deadline -
// safety_margin" feeds each leg's individual timeout); callers may shorten it
// via the deadline_ms request field but never lengthen it past this cap.
const defaultRequestDeadline = 8 * time.Second

// Pinger checks a dependency's liveness for GET /api/ready.
type Pinger func(ctx context.Context) error

// Server wires the retrieval/answer cores to HTTP handlers.
type Server struct {
	service  *retrieval.Service
	composer *answer.Composer
	resolver *config.Resolver
	metrics  *observability.PrometheusMetrics
	feedback *feedback.Sink

	pingPostgres Pinger
	pingGraph    Pinger

	archive  ArchiveVerifier
	sessions *chatsession.Store

	secrets config.ProcessConfig

	log   core.Logger
	clock core.Clock

	mux *http.ServeMux
}

// Option configures a Server via functional options (teacher's
// internal/rag/service/options.go idiom).
type Option func(*Server)

func WithLogger(l core.Logger) Option       { return func(s *Server) { s.log = l } }
func WithClock(c core.Clock) Option         { return func(s *Server) { s.clock = c } }
func WithFeedbackSink(f *feedback.Sink) Option { return func(s *Server) { s.feedback = f } }
func WithPostgresPing(p Pinger) Option      { return func(s *Server) { s.pingPostgres = p } }
func WithGraphPing(p Pinger) Option         { return func(s *Server) { s.pingGraph = p } }
func WithProcessConfig(c config.ProcessConfig) Option { return func(s *Server) { s.secrets = c } }
func WithArchiveVerifier(a ArchiveVerifier) Option { return func(s *Server) { s.archive = a } }

// ArchiveVerifier confirms an S3 archive bucket is reachable before a
// corpus config referencing it is saved (store.S3ArchiveStore.VerifyBucket).
type ArchiveVerifier interface {
	VerifyBucket(ctx context.Context, bucket string) error
}

// NewServer constructs the HTTP API server.
func NewServer(svc *retrieval.Service, composer *answer.Composer, resolver *config.Resolver, metrics *observability.PrometheusMetrics, opts ...Option) *Server {
	s := &Server{
		service: svc, composer: composer, resolver: resolver, metrics: metrics,
		log: core.NopLogger{}, clock: core.SystemClock{},
		sessions: chatsession.New(),
		mux:      http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the server's mux as an http.Handler, wrapped with otelhttp
// tracing.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "tribridrag.http")
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/search", s.handleSearch)
	s.mux.HandleFunc("POST /api/answer", s.handleAnswer)
	s.mux.HandleFunc("POST /api/answer/stream", s.handleAnswerStream)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)

	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/ready", s.handleReady)

	s.mux.Handle("GET /metrics", s.metrics.Handler())

	s.mux.HandleFunc("GET /api/config", s.handleGetConfig)
	s.mux.HandleFunc("PUT /api/config", s.handlePutConfig)
	s.mux.HandleFunc("POST /api/config", s.handlePutConfig)
	s.mux.HandleFunc("PATCH /api/config", s.handlePutConfig)
	s.mux.HandleFunc("DELETE /api/config", s.handleResetConfig)

	s.mux.HandleFunc("POST /api/feedback", s.handleFeedback)
	s.mux.HandleFunc("GET /api/secrets/check", s.handleSecretsCheck)
}

func requestDeadlineCtx(ctx context.Context, deadlineMs int) (context.Context, context.CancelFunc) {
	d := defaultRequestDeadline
	if deadlineMs > 0 && time.Duration(deadlineMs)*time.Millisecond < d {
		d = time.Duration(deadlineMs) * time.Millisecond
	}
	return context.WithTimeout(ctx, d)
}
