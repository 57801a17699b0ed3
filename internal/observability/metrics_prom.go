package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tribridrag/internal/core"
)

// PrometheusMetrics exposes the exact low-cardinality metric names from
// spec.md §6.3 — no per-corpus, per-query, or per-file labels. Exposition
// (`/metrics` via promhttp.Handler()) is grounded on
// antflydb-antfly-go/libaf/healthserver/healthserver.go's health/metrics
// server pattern.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	searchRequestsTotal *prometheus.CounterVec
	searchErrorsTotal   *prometheus.CounterVec
	indexRunsTotal      *prometheus.CounterVec

	searchLatency *prometheus.HistogramVec
	vectorLegLatency *prometheus.HistogramVec
	sparseLegLatency *prometheus.HistogramVec
	graphLegLatency  *prometheus.HistogramVec

	chunksIndexed     prometheus.Gauge
	graphEntities     prometheus.Gauge
	graphRelationships prometheus.Gauge
}

func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &PrometheusMetrics{
		registry: reg,
		searchRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tribrid_search_requests_total",
			Help: "Total successful retrieval requests served (/api/search, /api/answer, /api/chat).",
		}, nil),
		searchErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tribrid_search_errors_total",
			Help: "Total retrieval requests (/api/search, /api/answer, /api/chat) whose search call failed.",
		}, nil),
		indexRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tribrid_index_runs_total",
			Help: "Total indexing runs completed.",
		}, nil),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tribrid_search_latency_seconds",
			Help:    "End-to-end /api/search request latency.",
			Buckets: prometheus.DefBuckets,
		}, nil),
		vectorLegLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tribrid_vector_leg_latency_seconds",
			Help:    "Vector leg retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}, nil),
		sparseLegLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tribrid_sparse_leg_latency_seconds",
			Help:    "Sparse leg retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}, nil),
		graphLegLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tribrid_graph_leg_latency_seconds",
			Help:    "Graph leg retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}, nil),
		chunksIndexed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tribrid_chunks_indexed_current",
			Help: "Current count of indexed chunks.",
		}),
		graphEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tribrid_graph_entities_current",
			Help: "Current count of graph entities.",
		}),
		graphRelationships: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tribrid_graph_relationships_current",
			Help: "Current count of graph relationships.",
		}),
	}
	reg.MustRegister(
		m.searchRequestsTotal, m.searchErrorsTotal, m.indexRunsTotal,
		m.searchLatency, m.vectorLegLatency, m.sparseLegLatency, m.graphLegLatency,
		m.chunksIndexed, m.graphEntities, m.graphRelationships,
	)
	return m
}

// Handler serves the Prometheus text exposition format at /metrics.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncCounter implements core.Metrics. name must be one of the three counters
// above (tribrid_{vector,sparse,graph}_leg_latency_seconds are histograms,
// not counters — see ObserveHistogram).
func (m *PrometheusMetrics) IncCounter(name string, _ map[string]string) {
	switch name {
	case "tribrid_search_requests_total":
		m.searchRequestsTotal.WithLabelValues().Inc()
	case "tribrid_search_errors_total":
		m.searchErrorsTotal.WithLabelValues().Inc()
	case "tribrid_index_runs_total":
		m.indexRunsTotal.WithLabelValues().Inc()
	}
}

// ObserveHistogram implements core.Metrics, dispatching on the exact metric
// names spec.md §6.3 lists — each leg gets its own histogram, not a shared
// one with a label, since §6.3 names them as three distinct metrics.
func (m *PrometheusMetrics) ObserveHistogram(name string, value float64, _ map[string]string) {
	switch name {
	case "tribrid_search_latency_seconds":
		m.searchLatency.WithLabelValues().Observe(value)
	case "tribrid_vector_leg_latency_seconds":
		m.vectorLegLatency.WithLabelValues().Observe(value)
	case "tribrid_sparse_leg_latency_seconds":
		m.sparseLegLatency.WithLabelValues().Observe(value)
	case "tribrid_graph_leg_latency_seconds":
		m.graphLegLatency.WithLabelValues().Observe(value)
	}
}

func (m *PrometheusMetrics) SetChunksIndexed(n float64)      { m.chunksIndexed.Set(n) }
func (m *PrometheusMetrics) SetGraphEntities(n float64)      { m.graphEntities.Set(n) }
func (m *PrometheusMetrics) SetGraphRelationships(n float64) { m.graphRelationships.Set(n) }

var _ core.Metrics = (*PrometheusMetrics)(nil)
