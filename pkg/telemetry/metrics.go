package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recalld_http_requests_total",
		Help: "HTTP requests by method, path and status.",
	}, []string{"method", "path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recalld_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recalld_turns_total",
		Help: "Completed turns by outcome (answered, clarification, refusal, error).",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recalld_stage_duration_seconds",
		Help:    "Pipeline stage latency by stage (triage, retrieval, synthesis).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	scanSnippets = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recalld_retrieval_snippets",
		Help:    "Snippets returned per retrieval scan.",
		Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24, 32},
	})
)

// RequestObserved records one served HTTP request.
func RequestObserved(method, path string, status int, d time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// TurnFinished records a completed turn outcome.
func TurnFinished(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

// StageObserved records the latency of one pipeline stage run.
func StageObserved(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ScanObserved records the snippet count of one retrieval scan.
func ScanObserved(n int) {
	scanSnippets.Observe(float64(n))
}
