package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the fulcrum pipeline.
type Metrics struct {
	RunsTotal          *prometheus.CounterVec
	StageDurationMs    *prometheus.HistogramVec
	ValidationRetries  prometheus.Histogram
	CandidatesReturned prometheus.Histogram
	CandidateScore     prometheus.Histogram
	SubmissionsTotal   *prometheus.CounterVec
	RateLimitHits      *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulcrum_runs_total",
			Help: "Total pipeline runs by terminal outcome.",
		}, []string{"outcome", "error_kind"}),

		StageDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fulcrum_stage_duration_ms",
			Help:    "Per-stage execution time in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000},
		}, []string{"stage"}),

		ValidationRetries: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulcrum_validation_retries",
			Help:    "Validation retries consumed per run.",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		}),

		CandidatesReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulcrum_candidates_returned",
			Help:    "Catalog candidates surviving score filtering per run.",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		}),

		CandidateScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "fulcrum_candidate_score",
			Help:    "Similarity score of returned candidates.",
			Buckets: []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1.0},
		}),

		SubmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulcrum_submissions_total",
			Help: "Order submissions to the provisioning platform by result.",
		}, []string{"result"}),

		RateLimitHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fulcrum_ratelimit_hits_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"client"}),
	}
}

// RecordRun records the terminal outcome of one pipeline run.
func (m *Metrics) RecordRun(outcome, errorKind string, retries int) {
	m.RunsTotal.WithLabelValues(outcome, errorKind).Inc()
	m.ValidationRetries.Observe(float64(retries))
}

// RecordStage records one stage execution.
func (m *Metrics) RecordStage(stage string, durationMs float64) {
	m.StageDurationMs.WithLabelValues(stage).Observe(durationMs)
}

// RecordCandidates records a retrieval result.
func (m *Metrics) RecordCandidates(count int, scores []float64) {
	m.CandidatesReturned.Observe(float64(count))
	for _, s := range scores {
		m.CandidateScore.Observe(s)
	}
}

// RecordSubmission records one gateway submission attempt.
func (m *Metrics) RecordSubmission(result string) {
	m.SubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimitHit records a request rejected by the rate limiter.
func (m *Metrics) RecordRateLimitHit(client string) {
	m.RateLimitHits.WithLabelValues(client).Inc()
}
