package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors SPEC_FULL.md's DOMAIN STACK
// section names: wave-parallelism (how many nodes a Doer wave actually ran
// concurrently) and block-latency (per block_id execution duration),
// generalizing the teacher's hand-rolled WorkflowMetrics/NodeMetrics into
// real Prometheus vectors, grouped by the same dimensions.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	waveSize      prometheus.Histogram
	nodeDuration  *prometheus.HistogramVec
	nodeErrors    *prometheus.CounterVec
	thinkerStage  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// NewMetrics builds and registers every collector on a fresh registry, so
// a test can construct an isolated Metrics without colliding with the
// process-global default registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentflow",
		Subsystem: "doer",
		Name:      "runs_total",
		Help:      "Total number of pipeline runs, by terminal status.",
	}, []string{"status"})

	m.waveSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "intentflow",
		Subsystem: "doer",
		Name:      "wave_size",
		Help:      "Number of nodes executed concurrently per level batch.",
		Buckets:   prometheus.LinearBuckets(1, 2, 10),
	})

	m.nodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intentflow",
		Subsystem: "doer",
		Name:      "node_duration_seconds",
		Help:      "Per-node execution duration in seconds, by block_id and status.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
	}, []string{"block_id", "status"})

	m.nodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentflow",
		Subsystem: "doer",
		Name:      "node_errors_total",
		Help:      "Total node failures, by block_id.",
	}, []string{"block_id"})

	m.thinkerStage = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentflow",
		Subsystem: "thinker",
		Name:      "stage_transitions_total",
		Help:      "Total Thinker state-machine stage transitions, by stage.",
	}, []string{"stage"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intentflow",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests, by route and status.",
	}, []string{"route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "intentflow",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds, by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.runsTotal, m.waveSize, m.nodeDuration, m.nodeErrors,
		m.thinkerStage, m.httpRequests, m.httpDuration,
	)
	return m
}

// Handler exposes the registry on /metrics for Prometheus scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRun records one completed run's terminal status.
func (m *Metrics) ObserveRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// ObserveWave records how many nodes one level batch ran concurrently.
func (m *Metrics) ObserveWave(size int) {
	m.waveSize.Observe(float64(size))
}

// ObserveNode records one node's execution outcome and duration.
func (m *Metrics) ObserveNode(blockID, status string, seconds float64) {
	m.nodeDuration.WithLabelValues(blockID, status).Observe(seconds)
	if status != "completed" {
		m.nodeErrors.WithLabelValues(blockID).Inc()
	}
}

// ObserveThinkerStage records one Decompose/Search/Synthesize/Wire
// transition.
func (m *Metrics) ObserveThinkerStage(stage string) {
	m.thinkerStage.WithLabelValues(stage).Inc()
}

// ObserveHTTPRequest records one request's route, status, and duration —
// the metrics counterpart to middleware.go's loggingMiddleware. No
// middleware in cmd/server calls it, so the served process records no
// HTTP request metrics.
func (m *Metrics) ObserveHTTPRequest(route, status string, seconds float64) {
	m.httpRequests.WithLabelValues(route, status).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}
