package enrichment

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRunsTotal          = "enrichment_runs_total"
	MetricRunDuration        = "enrichment_run_duration_seconds"
	MetricURLsTotal          = "enrichment_urls_total"
	MetricCandidatesTotal    = "enrichment_candidates_total"
	MetricEmbeddingsBackfill = "enrichment_embeddings_backfilled_total"
	MetricLocationsBackfill  = "enrichment_locations_backfilled_total"
)

// Run outcome labels.
const (
	OutcomeCompleted     = "completed"
	OutcomeNotConfigured = "not_configured"
	OutcomeSearchFailed  = "search_failed"
)

// URL outcome labels.
const (
	URLProcessed        = "processed"
	URLSkipped          = "skipped"
	URLExtractionFailed = "extraction_failed"
)

// Candidate outcome labels.
const (
	CandidateInserted  = "inserted"
	CandidateDuplicate = "duplicate"
	CandidateInvalid   = "invalid"
	CandidateFailed    = "failed"
)

// Metrics contains Prometheus metrics for the enrichment pipeline.
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	urls       *prometheus.CounterVec
	candidates *prometheus.CounterVec
	embeddings *prometheus.CounterVec
	locations  *prometheus.CounterVec
}

// NewMetrics creates the enrichment collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRunsTotal,
				Help: "Total number of enrichment runs by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRunDuration,
				Help:    "Histogram of enrichment run duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		urls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricURLsTotal,
				Help: "Total number of candidate URLs by outcome",
			},
			[]string{"outcome"},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCandidatesTotal,
				Help: "Total number of extracted candidate events by outcome",
			},
			[]string{"outcome"},
		),
		embeddings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricEmbeddingsBackfill,
				Help: "Total number of embedding backfill attempts by status",
			},
			[]string{"status"},
		),
		locations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricLocationsBackfill,
				Help: "Total number of location backfill attempts by status",
			},
			[]string{"status"},
		),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.runs, m.duration, m.urls, m.candidates, m.embeddings, m.locations}
}

func (m *Metrics) observeRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) incURL(outcome string) {
	if m == nil {
		return
	}
	m.urls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incCandidate(outcome string) {
	if m == nil {
		return
	}
	m.candidates.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incEmbedding(status string) {
	if m == nil {
		return
	}
	m.embeddings.WithLabelValues(status).Inc()
}

func (m *Metrics) incLocation(status string) {
	if m == nil {
		return
	}
	m.locations.WithLabelValues(status).Inc()
}
