// Package metrics defines the Prometheus collectors for the harmony server and exposes an
// HTTP handler for scraping.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soundprediction/harmony/pkg/types"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	MatchRunsTotal       *prometheus.CounterVec
	MatchDuration        prometheus.Histogram
	QuestionsMatched     prometheus.Histogram
	VectorCacheHits      prometheus.Counter
	TextsVectorised      prometheus.Counter
	ClustersProduced     prometheus.Histogram

	gatherer prometheus.Gatherer
}

// New creates all collectors and registers them with reg. A nil reg uses a fresh registry,
// so tests and multiple servers do not collide on the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmony_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harmony_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "harmony_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		MatchRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harmony_match_runs_total",
				Help: "Matching engine runs by outcome (ok, error).",
			},
			[]string{"outcome"},
		),
		MatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harmony_match_duration_seconds",
				Help:    "Matching engine latency in seconds, including vectorisation.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
		),
		QuestionsMatched: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harmony_questions_per_match",
				Help:    "Number of questions per matching run.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		VectorCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "harmony_vector_cache_hits_total",
				Help: "Distinct texts served from the vector cache.",
			},
		),
		TextsVectorised: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "harmony_texts_vectorised_total",
				Help: "Distinct texts sent to the embedding provider.",
			},
		),
		ClustersProduced: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harmony_clusters_per_run",
				Help:    "Number of clusters produced per clustering run.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.MatchRunsTotal,
		m.MatchDuration,
		m.QuestionsMatched,
		m.VectorCacheHits,
		m.TextsVectorised,
		m.ClustersProduced,
	)
	return m
}

// ObserveMatch records one matching run. A nil stats records a failed run.
func (m *Metrics) ObserveMatch(stats *types.MatchStats, elapsed time.Duration) {
	if stats == nil {
		m.MatchRunsTotal.WithLabelValues("error").Inc()
		return
	}
	m.MatchRunsTotal.WithLabelValues("ok").Inc()
	m.MatchDuration.Observe(elapsed.Seconds())
	m.QuestionsMatched.Observe(float64(stats.Questions))
	m.VectorCacheHits.Add(float64(stats.CacheHits))
	m.TextsVectorised.Add(float64(stats.Vectorised))
}

// Handler returns the scrape handler for the registry the metrics were registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records HTTP request count, latency and the in-flight gauge.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
