package observability

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)
	require.NotNil(t, m.Convergence)
	require.NotNil(t, m.Gateway)
}

func TestMetricsHandlerServesRegistry(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.Convergence.RecordMatchOutcome("event", "matched", 0.92)
	m.Gateway.RecordGeocodeRequest("success", 1.2)

	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "convergence_match_outcomes_total")
	assert.Contains(t, body, "gateway_geocode_requests_total")
}

func TestMetricsConcurrentRecording(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Convergence.RecordMatchOutcome("venue", "created", 1.0)
			m.Convergence.RecordRefresh("event", nil)
			m.Convergence.RecordAutoApplyDecision("event", true)
			m.Gateway.RecordEnrichmentLookup("musicbrainz", "success")
			m.Gateway.RecordCacheHit("geocoding")
		}()
	}
	wg.Wait()
}
