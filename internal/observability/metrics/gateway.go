package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics contains Prometheus metrics for the external data gateways
// (geocoding and enrichment clients)
type GatewayMetrics struct {
	registry *prometheus.Registry

	geocodeRequestsTotal   *prometheus.CounterVec
	geocodeDuration        prometheus.Histogram
	enrichmentLookupsTotal *prometheus.CounterVec
	cacheHitsTotal         *prometheus.CounterVec
}

// NewGatewayMetrics creates and registers new gateway metrics
func NewGatewayMetrics(registry *prometheus.Registry) (*GatewayMetrics, error) {
	m := &GatewayMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GatewayMetrics) initMetrics() error {
	m.geocodeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_geocode_requests_total",
			Help: "Total number of geocoding requests",
		},
		[]string{"status"}, // status: success, miss, error
	)

	m.geocodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gateway_geocode_duration_seconds",
			Help:    "Geocoding request duration including rate limit wait",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	m.enrichmentLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_enrichment_lookups_total",
			Help: "Total number of enrichment lookups",
		},
		[]string{"provider", "status"}, // status: success, miss, error
	)

	m.cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Total number of gateway cache hits",
		},
		[]string{"gateway"},
	)

	return nil
}

// Describe implements the prometheus.Collector interface
func (m *GatewayMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.geocodeRequestsTotal.Describe(ch)
	m.geocodeDuration.Describe(ch)
	m.enrichmentLookupsTotal.Describe(ch)
	m.cacheHitsTotal.Describe(ch)
}

// Collect implements the prometheus.Collector interface
func (m *GatewayMetrics) Collect(ch chan<- prometheus.Metric) {
	m.geocodeRequestsTotal.Collect(ch)
	m.geocodeDuration.Collect(ch)
	m.enrichmentLookupsTotal.Collect(ch)
	m.cacheHitsTotal.Collect(ch)
}

// RecordGeocodeRequest records one geocoding request with its duration
func (m *GatewayMetrics) RecordGeocodeRequest(status string, seconds float64) {
	m.geocodeRequestsTotal.WithLabelValues(status).Inc()
	m.geocodeDuration.Observe(seconds)
}

// RecordEnrichmentLookup records one enrichment lookup
func (m *GatewayMetrics) RecordEnrichmentLookup(provider, status string) {
	m.enrichmentLookupsTotal.WithLabelValues(provider, status).Inc()
}

// RecordCacheHit records one gateway cache hit
func (m *GatewayMetrics) RecordCacheHit(gateway string) {
	m.cacheHitsTotal.WithLabelValues(gateway).Inc()
}
