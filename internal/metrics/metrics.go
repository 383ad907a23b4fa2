package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing, so services can be built without it in tests.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	generations *prometheus.CounterVec
	genLatency  *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	scores      prometheus.Histogram
	ingestRows  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillway_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillway_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"method", "route"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillway_generations_total",
			Help: "Test generations by kind/outcome.",
		}, []string{"kind", "outcome"}),
		genLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillway_generation_duration_seconds",
			Help:    "End-to-end generation latency by kind.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"kind"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillway_submissions_total",
			Help: "Graded submissions by pass/overtime.",
		}, []string{"passed", "overtime"}),
		scores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillway_submission_score_percent",
			Help:    "Distribution of submission scores.",
			Buckets: prometheus.LinearBuckets(10, 10, 10),
		}),
		ingestRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skillway_ingest_rows_total",
			Help: "Curriculum rows processed by stage.",
		}, []string{"stage"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency,
		m.generations, m.genLatency,
		m.submissions, m.scores,
		m.ingestRows,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

// ObserveGeneration records one generation attempt. outcome is "ok" or an
// error code.
func (m *Metrics) ObserveGeneration(kind, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
	if dur > 0 {
		m.genLatency.WithLabelValues(kind).Observe(dur.Seconds())
	}
}

func (m *Metrics) ObserveSubmission(score int, passed, overTime bool) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(strconv.FormatBool(passed), strconv.FormatBool(overTime)).Inc()
	m.scores.Observe(float64(score))
}

func (m *Metrics) AddIngestRows(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ingestRows.WithLabelValues(stage).Add(float64(n))
}
