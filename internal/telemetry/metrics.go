package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	CalculationsTotal   *prometheus.CounterVec
	CalculationDuration *prometheus.HistogramVec
	RulesLoaded         prometheus.Gauge
}

// NewMetrics creates Prometheus metrics registered against reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		CalculationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipby_calculations_total",
				Help: "Total ship-by calculations by operation and outcome (ok or error kind)",
			},
			[]string{"operation", "outcome"},
		),
		CalculationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shipby_calculation_duration_seconds",
				Help:    "Ship-by calculation duration in seconds by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		RulesLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "shipby_ruleset_rules",
				Help: "Number of lead-time rules in the loaded ruleset snapshot",
			},
		),
	}
}

// RecordCalculation records one calculation outcome.
func (m *Metrics) RecordCalculation(operation, outcome string, duration float64) {
	m.CalculationsTotal.WithLabelValues(operation, outcome).Inc()
	m.CalculationDuration.WithLabelValues(operation).Observe(duration)
}

// SetRuleCount records the size of the active ruleset snapshot.
func (m *Metrics) SetRuleCount(n int) {
	m.RulesLoaded.Set(float64(n))
}
