// Package dispatch implements the Leg Dispatcher (C3): parallel fan-out of
// the enabled legs with per-leg timeout budgets, deterministic
// (vector, sparse, graph) reordering for downstream fusion, and fail-open
// error capture — a leg failure never fails the request (spec.md §4.3).
// Grounded on the teacher's orchestration/options idiom
// (internal/rag/service/service.go, options.go) and golang.org/x/sync/errgroup
// for the fan-out itself.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"tribridrag/internal/core"
	"tribridrag/internal/model"
)

// LegFunc runs one leg to completion or ctx cancellation.
type LegFunc func(ctx context.Context) ([]model.ChunkMatch, model.LegDebug, error)

// Request describes one dispatch invocation.
type Request struct {
	IncludeVector bool
	IncludeSparse bool
	IncludeGraph  bool

	Vector LegFunc
	Sparse LegFunc
	Graph  LegFunc

	// PerLegTimeout is the individual deadline applied to every enabled leg
	// (request_deadline - safety_margin, computed by the caller per spec.md §5).
	PerLegTimeout time.Duration
}

// Result is the dispatcher's output: chunk_id-only matches per leg, always in
// (vector, sparse, graph) order regardless of completion order, plus the
// per-leg debug telemetry.
type Result struct {
	Vector []model.ChunkMatch
	Sparse []model.ChunkMatch
	Graph  []model.ChunkMatch

	VectorDebug model.LegDebug
	SparseDebug model.LegDebug
	GraphDebug  model.LegDebug
}

// Dispatcher runs legs concurrently.
type Dispatcher struct {
	log     core.Logger
	metrics core.Metrics
	clock   core.Clock
}

type Option func(*Dispatcher)

func WithLogger(l core.Logger) Option   { return func(d *Dispatcher) { d.log = l } }
func WithMetrics(m core.Metrics) Option { return func(d *Dispatcher) { d.metrics = m } }
func WithClock(c core.Clock) Option     { return func(d *Dispatcher) { d.clock = c } }

func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{log: core.NopLogger{}, metrics: core.NopMetrics{}, clock: core.SystemClock{}}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run launches every enabled leg in req concurrently, each under its own
// cooperatively-cancellable timeout context derived from ctx (so a client
// disconnect propagates to every in-flight leg, per spec.md §5). A leg
// failure — including timeout — is recorded in the corresponding LegDebug and
// never aborts the others or fails the request; if a leg is disabled it is
// simply omitted with Enabled=false.
func (d *Dispatcher) Run(ctx context.Context, req Request) Result {
	var result Result
	group, gctx := errgroup.WithContext(detachCancel(ctx))

	runLeg := func(name string, enabled bool, fn LegFunc, matches *[]model.ChunkMatch, debug *model.LegDebug) {
		if !enabled || fn == nil {
			*debug = model.LegDebug{Attempted: false, Enabled: false}
			return
		}
		group.Go(func() error {
			legCtx := gctx
			var cancel context.CancelFunc
			if req.PerLegTimeout > 0 {
				legCtx, cancel = context.WithTimeout(gctx, req.PerLegTimeout)
				defer cancel()
			}
			start := d.clock.Now()
			matchesOut, legDebug, err := fn(legCtx)
			legDebug.Attempted = true
			legDebug.Enabled = true
			if err != nil {
				legDebug.Error = safeMessage(err)
				d.log.Error("leg failed", map[string]any{"leg": name, "error": legDebug.Error})
			}
			*matches = matchesOut
			legDebug.Results = len(matchesOut)
			*debug = legDebug
			d.metrics.ObserveHistogram("tribrid_"+name+"_leg_latency_seconds", d.clock.Now().Sub(start).Seconds(), nil)
			// A leg failure is recorded but never propagated as a group error —
			// surviving legs must proceed (spec.md §4.3).
			return nil
		})
	}

	runLeg("vector", req.IncludeVector, req.Vector, &result.Vector, &result.VectorDebug)
	runLeg("sparse", req.IncludeSparse, req.Sparse, &result.Sparse, &result.SparseDebug)
	runLeg("graph", req.IncludeGraph, req.Graph, &result.Graph, &result.GraphDebug)

	_ = group.Wait()
	return result
}

// detachCancel returns ctx as-is; kept as a named seam so a future
// cooperative-cancellation propagation hook (e.g. driver-level cancel
// notification) has one call site to extend, per spec.md §5's "Stored-
// procedure/driver cancellation must be propagated."
func detachCancel(ctx context.Context) context.Context { return ctx }

func safeMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	const maxLen = 256
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}
