package chat

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/agenda/internal/enrichment"
)

// Metric names.
const (
	MetricGateDecisions     = "chat_gate_decisions_total"
	MetricEnrichmentsTotal  = "chat_enrichments_total"
	MetricEnrichedEventsNew = "chat_enrichment_new_events"
)

// Metrics contains Prometheus metrics for chat resolution.
type Metrics struct {
	gate        *prometheus.CounterVec
	enrichments prometheus.Counter
	newEvents   prometheus.Histogram
}

// NewMetrics creates the chat collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		gate: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGateDecisions,
				Help: "Total number of quality gate decisions by adequacy",
			},
			[]string{"adequate"},
		),
		enrichments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricEnrichmentsTotal,
				Help: "Total number of enrichment passes triggered by chat requests",
			},
		),
		newEvents: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricEnrichedEventsNew,
				Help:    "Number of new events found per enrichment pass",
				Buckets: []float64{0, 1, 2, 5, 10, 20},
			},
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
	return []prometheus.Collector{m.gate, m.enrichments, m.newEvents}
}

func (m *Metrics) observeGate(adequate bool) {
	if m == nil {
		return
	}
	m.gate.WithLabelValues(strconv.FormatBool(adequate)).Inc()
}

func (m *Metrics) observeEnrichment(s enrichment.Stats) {
	if m == nil {
		return
	}
	m.enrichments.Inc()
	m.newEvents.Observe(float64(s.NewEventsFound))
}
