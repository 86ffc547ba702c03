// Package metrics provides convergence engine metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConvergenceMetrics contains Prometheus metrics for the matching, fusion
// and auto-apply pipeline
type ConvergenceMetrics struct {
	registry *prometheus.Registry

	// Matching metrics
	matchOutcomesTotal *prometheus.CounterVec
	matchConfidence    *prometheus.HistogramVec

	// Fusion and refresh metrics
	refreshRunsTotal   *prometheus.CounterVec
	refreshErrorsTotal *prometheus.CounterVec

	// Change detection metrics
	changeDetectionsTotal *prometheus.CounterVec

	// Auto-apply workflow metrics
	autoApplyDecisionsTotal *prometheus.CounterVec

	// Per-record failure isolation metrics
	recordFailuresTotal *prometheus.CounterVec
}

// NewConvergenceMetrics creates and registers new convergence metrics
func NewConvergenceMetrics(registry *prometheus.Registry) (*ConvergenceMetrics, error) {
	m := &ConvergenceMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *ConvergenceMetrics) initMetrics() error {
	m.matchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_match_outcomes_total",
			Help: "Total number of matcher decisions per entity kind",
		},
		[]string{"kind", "outcome"}, // outcome: matched, created, near_duplicate
	)

	m.matchConfidence = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "convergence_match_confidence",
			Help:    "Confidence of accepted matches",
			Buckets: prometheus.LinearBuckets(0.5, 0.05, 11),
		},
		[]string{"kind"},
	)

	m.refreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_refresh_runs_total",
			Help: "Total number of canonical refresh runs",
		},
		[]string{"kind"},
	)

	m.refreshErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_refresh_errors_total",
			Help: "Total number of failed canonical refresh runs",
		},
		[]string{"kind"},
	)

	m.changeDetectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_change_detections_total",
			Help: "Total number of change detection comparisons",
		},
		[]string{"kind", "result"}, // result: changed, unchanged
	)

	m.autoApplyDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_auto_apply_decisions_total",
			Help: "Total number of auto-apply gate decisions",
		},
		[]string{"kind", "decision"}, // decision: applied, pending
	)

	m.recordFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convergence_record_failures_total",
			Help: "Total number of per-record failures isolated by the pipeline",
		},
		[]string{"kind", "stage"},
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *ConvergenceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.matchOutcomesTotal.Describe(ch)
	m.matchConfidence.Describe(ch)
	m.refreshRunsTotal.Describe(ch)
	m.refreshErrorsTotal.Describe(ch)
	m.changeDetectionsTotal.Describe(ch)
	m.autoApplyDecisionsTotal.Describe(ch)
	m.recordFailuresTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *ConvergenceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.matchOutcomesTotal.Collect(ch)
	m.matchConfidence.Collect(ch)
	m.refreshRunsTotal.Collect(ch)
	m.refreshErrorsTotal.Collect(ch)
	m.changeDetectionsTotal.Collect(ch)
	m.autoApplyDecisionsTotal.Collect(ch)
	m.recordFailuresTotal.Collect(ch)
}

// RecordMatchOutcome records one matcher decision
func (m *ConvergenceMetrics) RecordMatchOutcome(kind, outcome string, confidence float64) {
	m.matchOutcomesTotal.WithLabelValues(kind, outcome).Inc()
	m.matchConfidence.WithLabelValues(kind).Observe(confidence)
}

// RecordRefresh records one canonical refresh run
func (m *ConvergenceMetrics) RecordRefresh(kind string, err error) {
	m.refreshRunsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.refreshErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// RecordChangeDetection records one change detection comparison
func (m *ConvergenceMetrics) RecordChangeDetection(kind string, changed bool) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	m.changeDetectionsTotal.WithLabelValues(kind, result).Inc()
}

// RecordAutoApplyDecision records one auto-apply gate decision
func (m *ConvergenceMetrics) RecordAutoApplyDecision(kind string, applied bool) {
	decision := "pending"
	if applied {
		decision = "applied"
	}
	m.autoApplyDecisionsTotal.WithLabelValues(kind, decision).Inc()
}

// RecordFailure records one isolated per-record failure
func (m *ConvergenceMetrics) RecordFailure(kind, stage string) {
	m.recordFailuresTotal.WithLabelValues(kind, stage).Inc()
}
