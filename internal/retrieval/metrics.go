package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricRetrievalsTotal     = "retrieval_requests_total"
	MetricRetrievalCandidates = "retrieval_candidates"
	MetricFilteredTotal       = "retrieval_filtered_total"
)

// Branch labels.
const (
	BranchDate   = "date"
	BranchHybrid = "hybrid"
)

// Metrics contains Prometheus metrics for retrieval.
type Metrics struct {
	retrievals *prometheus.CounterVec
	candidates *prometheus.HistogramVec
	filtered   *prometheus.CounterVec
}

// NewMetrics creates the retrieval collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		retrievals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRetrievalsTotal,
				Help: "Total number of retrievals by branch",
			},
			[]string{"branch"},
		),
		candidates: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRetrievalCandidates,
				Help:    "Number of results returned after post-filters by branch",
				Buckets: []float64{0, 1, 3, 5, 10, 20, 50, 100},
			},
			[]string{"branch"},
		),
		filtered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFilteredTotal,
				Help: "Total number of candidates removed by each post-filter",
			},
			[]string{"filter"},
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
	return []prometheus.Collector{m.retrievals, m.candidates, m.filtered}
}

func (m *Metrics) observe(branch string, n int) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(branch).Inc()
	m.candidates.WithLabelValues(branch).Observe(float64(n))
}

func (m *Metrics) addFiltered(filter string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.filtered.WithLabelValues(filter).Add(float64(n))
}
