// Package retrieval wires the seven upstream components (C1-C7) into the
// single orchestration spec.md §2's data-flow diagram describes: Request →
// Config Resolver → Query Planner → Leg Dispatcher (vector ∥ sparse ∥ graph)
// → Fusion & Rerank → Response. The Answer Composer (C8) is driven from the
// same Search result by internal/httpapi, which owns the /api/answer edges.
// Grounded on internal/rag/service/service.go's top-level orchestration
// shape (resolve → plan → fan-out → combine), generalized to the tri-source
// model the teacher's single-path RAG service does not have.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"tribridrag/internal/config"
	"tribridrag/internal/core"
	"tribridrag/internal/dispatch"
	"tribridrag/internal/fusion"
	"tribridrag/internal/legs/graph"
	"tribridrag/internal/legs/sparse"
	"tribridrag/internal/legs/vector"
	"tribridrag/internal/model"
	"tribridrag/internal/planner"
	"tribridrag/internal/recall"
	"tribridrag/internal/rerank"
)

// ErrCorpusNotFound is surfaced as HTTP 404 at the edge (§4.1, §7).
var ErrCorpusNotFound = config.ErrCorpusNotFound

// ChunkHydrator reads full chunk content/metadata given chunk ids, scoped to
// a corpus (§4.7 step 2). internal/store.PostgresChunkStore implements this.
type ChunkHydrator interface {
	GetByIDs(ctx context.Context, corpusID string, ids []string, maxChars int) (map[string]model.Chunk, error)
}

// RerankerFactory builds the per-call reranker Options from the resolved
// config — it is a factory rather than a static value because the encoder
// used (local/learning/cloud) depends on corpus-scoped config fields
// (artifact path, cloud endpoint) the service does not otherwise know about.
type RerankerFactory func(cfg config.ScopedConfiguration) rerank.Options

// AnalyticsRecorder is the offline telemetry sink for FusionDebug (§6's
// ClickHouse analytics line). Nil disables recording entirely.
type AnalyticsRecorder interface {
	Record(runID, corpusID, query string, debug model.FusionDebug, now time.Time)
}

// Service is the retrieval fusion core, C1 through the rerank stage of C7.
type Service struct {
	Resolver   *config.Resolver
	Dispatcher *dispatch.Dispatcher
	Vector     *vector.Leg
	Sparse     *sparse.Leg
	Graph      *graph.Leg
	Hydrator   ChunkHydrator
	Rerank     RerankerFactory

	Clock   core.Clock
	Log     core.Logger
	Metrics core.Metrics

	Analytics AnalyticsRecorder

	// SafetyMargin is subtracted from the request deadline to compute each
	// leg's individual timeout (§5: "request_deadline - safety_margin").
	SafetyMargin time.Duration
}

// Option configures a Service via functional options, following the
// teacher's options idiom (internal/rag/service/options.go).
type Option func(*Service)

func WithClock(c core.Clock) Option         { return func(s *Service) { s.Clock = c } }
func WithLogger(l core.Logger) Option       { return func(s *Service) { s.Log = l } }
func WithMetrics(m core.Metrics) Option     { return func(s *Service) { s.Metrics = m } }
func WithAnalytics(a AnalyticsRecorder) Option { return func(s *Service) { s.Analytics = a } }

func New(resolver *config.Resolver, dispatcher *dispatch.Dispatcher, vectorLeg *vector.Leg, sparseLeg *sparse.Leg, graphLeg *graph.Leg, hydrator ChunkHydrator, rerankFactory RerankerFactory, opts ...Option) *Service {
	s := &Service{
		Resolver: resolver, Dispatcher: dispatcher,
		Vector: vectorLeg, Sparse: sparseLeg, Graph: graphLeg,
		Hydrator: hydrator, Rerank: rerankFactory,
		Clock: core.SystemClock{}, Log: core.NopLogger{}, Metrics: core.NopMetrics{},
		SafetyMargin: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChatContext carries the extra inputs only chat callers supply; Search
// leaves this nil for plain /api/search requests (§4.2: recall gating "only
// applies to chat").
type ChatContext struct {
	RecallConfig         *recall.GateConfig
	Message              string
	LastRecallHadResults bool
	RAGCorporaActive     bool
	UserOverride         recall.Intensity
}

// Result is what Search returns: the final, hydrated, reranked, truncated
// match list plus the full FusionDebug telemetry (§3).
type Result struct {
	Matches []model.ChunkMatch
	Debug   model.FusionDebug
	Plan    planner.Plan
}

// Search runs the full C1→C7 pipeline for req, scoped to its primary corpus
// (req.CorpusIDs[0]); additional corpus ids are fanned out per leg and their
// chunk-id-only results concatenated before fusion, since spec.md §3 only
// requires "a single logical search plan" across the set, not per-corpus
// independent fusion.
func (s *Service) Search(ctx context.Context, req model.RetrievalRequest, chat *ChatContext) (Result, error) {
	if len(req.CorpusIDs) == 0 {
		return Result{}, errors.New("retrieval: at least one corpus_id is required")
	}
	primary := req.CorpusIDs[0]

	// requireCorpus=false: a corpus with no saved override still falls back
	// to the global default document. §8's "unknown corpus_id on reads ->
	// 404" invariant is scoped to GET /api/config, which calls Resolve with
	// requireCorpus=true itself; Search never 404s on an unconfigured corpus.
	cfg, err := s.Resolver.Resolve(ctx, primary, false)
	if err != nil {
		return Result{}, err
	}

	var recallCfg *recall.GateConfig
	var recallMsg string
	var lastHadResults, ragActive bool
	var userOverride recall.Intensity
	if chat != nil {
		recallCfg = chat.RecallConfig
		recallMsg = chat.Message
		lastHadResults = chat.LastRecallHadResults
		ragActive = chat.RAGCorporaActive
		userOverride = chat.UserOverride
	}

	plan := planner.Build(req, cfg, recallCfg, recallMsg, lastHadResults, ragActive, userOverride)

	legDeadline := s.perLegTimeout(ctx)
	dispatchResult := s.Dispatcher.Run(ctx, dispatch.Request{
		IncludeVector: plan.IncludeVector,
		IncludeSparse: plan.IncludeSparse,
		IncludeGraph:  plan.IncludeGraph,
		PerLegTimeout: legDeadline,
		Vector:        s.vectorLegFunc(req.CorpusIDs, plan.Query, cfg),
		Sparse:        s.sparseLegFunc(req.CorpusIDs, plan.Query, cfg),
		Graph:         s.graphLegFunc(req.CorpusIDs, plan.Query, cfg),
	})

	legs := []fusion.LegResult{
		{Source: model.SourceVector, Chunks: dispatchResult.Vector},
		{Source: model.SourceSparse, Chunks: dispatchResult.Sparse},
		{Source: model.SourceGraph, Chunks: dispatchResult.Graph},
	}
	method := fusion.RRF
	if cfg.Fusion.Method == config.FusionWeighted {
		method = fusion.Weighted
	}
	fused := fusion.Fuse(method, legs, cfg.Fusion.RRFK, fusion.Weights{
		Vector: cfg.Fusion.VectorWeight,
		Sparse: cfg.Fusion.BM25Weight,
		Graph:  cfg.Fusion.GraphWeight,
	})

	poolSize := cfg.Fusion.RerankerTopN
	if poolSize <= 0 {
		poolSize = plan.FinalK * 3
	}
	if poolSize > len(fused) {
		poolSize = len(fused)
	}
	pool := fused[:poolSize]

	pool = s.hydrate(ctx, primary, pool, cfg)
	pool = applyLayerBonuses(pool, cfg)

	var rerankDebug model.RerankDebugInfo
	if s.Rerank != nil && cfg.Rerank.Mode != config.RerankNone {
		reranked, dbg := rerank.Rerank(ctx, plan.Query, pool, s.Rerank(cfg))
		pool = reranked
		rerankDebug = dbg
	} else {
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })
		rerankDebug = model.RerankDebugInfo{Applied: false, SkippedReason: "mode_none"}
	}

	finalK := plan.FinalK
	if finalK <= 0 || finalK > 100 {
		finalK = cfg.Retrieval.FinalK
	}
	if finalK > len(pool) {
		finalK = len(pool)
	}
	matches := pool[:finalK]

	debug := model.FusionDebug{
		Vector:               dispatchResult.VectorDebug,
		Sparse:                dispatchResult.SparseDebug,
		Graph:                 dispatchResult.GraphDebug,
		FusionMethod:          string(cfg.Fusion.Method),
		FinalK:                finalK,
		Rerank:                rerankDebug,
		Top1Score:             topNAvg(matches, 1),
		AvgTop5Score:          topNAvg(matches, 5),
		NormalizedConfidence:  confidence(matches),
	}
	if s.Analytics != nil {
		s.Analytics.Record(uuid.NewString(), primary, req.Query, debug, s.Clock.Now())
	}

	return Result{Matches: matches, Debug: debug, Plan: plan}, nil
}

// perLegTimeout derives each leg's individual budget from the request's
// remaining deadline minus SafetyMargin (§5). With no deadline set, legs run
// unbounded aside from their own internal timeouts.
func (s *Service) perLegTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	remaining := time.Until(deadline) - s.SafetyMargin
	if remaining <= 0 {
		return time.Millisecond // still attempt, but fail fast rather than block
	}
	return remaining
}

func (s *Service) vectorLegFunc(corpusIDs []string, query string, cfg config.ScopedConfiguration) dispatch.LegFunc {
	if s.Vector == nil {
		return nil
	}
	return func(ctx context.Context) ([]model.ChunkMatch, model.LegDebug, error) {
		var all []model.ChunkMatch
		var firstErr error
		for _, corpusID := range corpusIDs {
			m, err := s.Vector.Run(ctx, query, vector.Options{
				CorpusID:            corpusID,
				TopKDense:           cfg.Retrieval.TopKDense,
				SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
			})
			if err != nil && firstErr == nil {
				firstErr = err
				continue
			}
			all = append(all, m...)
		}
		return all, model.LegDebug{}, firstErr
	}
}

func (s *Service) sparseLegFunc(corpusIDs []string, query string, cfg config.ScopedConfiguration) dispatch.LegFunc {
	if s.Sparse == nil {
		return nil
	}
	return func(ctx context.Context) ([]model.ChunkMatch, model.LegDebug, error) {
		var all []model.ChunkMatch
		var combined model.LegDebug
		var firstErr error
		for _, corpusID := range corpusIDs {
			m, dbg, err := s.Sparse.Run(ctx, query, sparse.Options{
				CorpusID:             corpusID,
				MaxTerms:             cfg.Retrieval.MaxTerms,
				FilenameBoostExact:   cfg.Scoring.FilenameBoostExact,
				FilenameBoostPartial: cfg.Scoring.FilenameBoostPartial,
			})
			if err != nil && firstErr == nil {
				firstErr = err
				continue
			}
			all = append(all, m...)
			if dbg.SparseEngine != "" {
				combined.SparseEngine = dbg.SparseEngine
				combined.SparseRelaxed = combined.SparseRelaxed || dbg.SparseRelaxed
			}
		}
		return all, combined, firstErr
	}
}

func (s *Service) graphLegFunc(corpusIDs []string, query string, cfg config.ScopedConfiguration) dispatch.LegFunc {
	if s.Graph == nil {
		return nil
	}
	return func(ctx context.Context) ([]model.ChunkMatch, model.LegDebug, error) {
		var all []model.ChunkMatch
		var firstErr error
		for _, corpusID := range corpusIDs {
			m, err := s.Graph.Run(ctx, query, graph.Options{
				CorpusID:         corpusID,
				MaxHops:          cfg.Retrieval.MaxHops,
				BaseBoost:        cfg.Scoring.GraphBaseBoost,
				Decay:            cfg.Scoring.GraphDecay,
				DirectMatchBoost: cfg.Scoring.DirectMatchBoost,
				Weights: graph.EdgeWeights{
					Contains: cfg.Scoring.ASTContainsWeight,
					Inherits: cfg.Scoring.ASTInheritsWeight,
					Imports:  cfg.Scoring.ASTImportsWeight,
					Calls:    cfg.Scoring.ASTCallsWeight,
				},
			})
			if err != nil && firstErr == nil {
				firstErr = err
				continue
			}
			all = append(all, m...)
		}
		return all, model.LegDebug{}, firstErr
	}
}

// hydrate fills Content/FilePath/StartLine/EndLine/Metadata for each fused
// match per the configured hydration mode (§4.7 step 2). "none" skips the
// read entirely and leaves matches chunk-id-only.
func (s *Service) hydrate(ctx context.Context, corpusID string, matches []model.ChunkMatch, cfg config.ScopedConfiguration) []model.ChunkMatch {
	if cfg.Fusion.HydrationMode == "none" || s.Hydrator == nil || len(matches) == 0 {
		return matches
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ChunkID
	}
	chunks, err := s.Hydrator.GetByIDs(ctx, corpusID, ids, cfg.Fusion.HydrationMaxChars)
	if err != nil {
		s.Log.Error("hydration failed, serving chunk-id-only matches", map[string]any{"error": err.Error()})
		return matches
	}
	out := make([]model.ChunkMatch, len(matches))
	for i, m := range matches {
		if c, ok := chunks[m.ChunkID]; ok {
			m.Chunk = c
		}
		out[i] = m
	}
	return out
}

func topNAvg(matches []model.ChunkMatch, n int) float64 {
	if len(matches) == 0 {
		return 0
	}
	if n > len(matches) {
		n = len(matches)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += matches[i].Score
	}
	return sum / float64(n)
}

// confidence normalizes the top score into [0,1) as top/(top+1) —
// RRF/weighted scores have no natural upper bound, so a hard cap would
// saturate too easily for small leg counts.
func confidence(matches []model.ChunkMatch) float64 {
	if len(matches) == 0 {
		return 0
	}
	top := matches[0].Score
	return top / (top + 1)
}
