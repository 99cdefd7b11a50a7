// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the retrieval pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge

	searchTotal    *prometheus.CounterVec
	searchHits     *prometheus.HistogramVec
	searchDuration *prometheus.HistogramVec
	branchFailures *prometheus.CounterVec
}

func NewServerMetrics(namespace string) *ServerMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &ServerMetrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, path and status code.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),
		searchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Completed search requests by collection and whether the reranker ran.",
		}, []string{"collection", "reranked"}),
		searchHits: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_hits",
			Help:      "Hits returned per search request.",
			Buckets:   []float64{0, 1, 2, 4, 6, 8, 10},
		}, []string{"collection"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency including fusion and reranking.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"collection"}),
		branchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_branch_failures_total",
			Help:      "Degraded retrieval branches (embed, vector, lexical, rerank).",
		}, []string{"collection", "branch"}),
	}
	registry.MustRegister(
		m.requestTotal, m.requestDuration, m.inFlight,
		m.searchTotal, m.searchHits, m.searchDuration, m.branchFailures,
	)
	return m
}

func (m *ServerMetrics) SearchCompleted(collection string, hits int, reranked bool, duration time.Duration) {
	m.searchTotal.WithLabelValues(collection, strconv.FormatBool(reranked)).Inc()
	m.searchHits.WithLabelValues(collection).Observe(float64(hits))
	m.searchDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

func (m *ServerMetrics) SearchBranchFailed(collection, branch string) {
	m.branchFailures.WithLabelValues(collection, branch).Inc()
}

// Middleware instruments an HTTP handler. The path label uses the routing
// pattern, not the raw URL, to keep cardinality bounded.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		started := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(started).Seconds())
	})
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
