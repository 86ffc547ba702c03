// encyclopedia.go fetches short biography summaries from a Wikipedia-style
// REST endpoint.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/errors"
	"github.com/tkoskela/scenefuse/internal/observability/metrics"
)

// Summary is a short encyclopedia abstract for an artist or organizer.
type Summary struct {
	Title      string
	Extract    string
	ContentURL string
}

// EncyclopediaClient queries a page-summary REST endpoint with request
// pacing and response caching.
type EncyclopediaClient struct {
	settings   conf.ClientSettings
	httpClient *http.Client
	cache      *cache.Cache
	pacer      *pacer
	metrics    *metrics.GatewayMetrics
}

// SetMetrics sets the gateway metrics instance for lookup tracking.
func (c *EncyclopediaClient) SetMetrics(m *metrics.GatewayMetrics) {
	c.metrics = m
}

// NewEncyclopediaClient creates an encyclopedia client, filling in defaults
// for anything unset.
func NewEncyclopediaClient(settings conf.ClientSettings) *EncyclopediaClient {
	if settings.BaseURL == "" {
		settings.BaseURL = "https://en.wikipedia.org/api/rest_v1"
	}
	if settings.MinIntervalMS == 0 {
		settings.MinIntervalMS = 500
	}
	if settings.CacheTTLMinutes == 0 {
		settings.CacheTTLMinutes = 24 * 60
	}
	if settings.TimeoutSeconds == 0 {
		settings.TimeoutSeconds = 10
	}

	ttl := time.Duration(settings.CacheTTLMinutes) * time.Minute
	client := &EncyclopediaClient{
		settings:   settings,
		httpClient: &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		cache:      cache.New(ttl, ttl*2),
		pacer:      newPacer(settings.MinIntervalMS),
	}

	logger.Info("encyclopedia client initialized",
		"base_url", settings.BaseURL,
		"min_interval_ms", settings.MinIntervalMS)

	return client
}

// summaryResponse mirrors the page-summary payload.
type summaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Type    string `json:"type"`
	Content struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Summary fetches the abstract for a page title. Unknown pages and
// disambiguation pages return (nil, nil).
func (c *EncyclopediaClient) Summary(ctx context.Context, title string) (*Summary, error) {
	if title == "" {
		return nil, nil
	}

	cacheKey := "summary:" + title
	if cached, found := c.cache.Get(cacheKey); found {
		logger.Debug("encyclopedia cache hit", "title", title)
		if c.metrics != nil {
			c.metrics.RecordCacheHit("encyclopedia")
		}
		if _, negative := cached.(negativeLookup); negative {
			return nil, nil
		}
		if summary, ok := cached.(*Summary); ok {
			return summary, nil
		}
	}

	c.pacer.wait()

	requestURL := fmt.Sprintf("%s/page/summary/%s", c.settings.BaseURL, url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create summary request: %w", err).
			Category(errors.CategoryEnrichment).
			Component("enrichment").
			Build()
	}
	req.Header.Set("User-Agent", musicUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("encyclopedia request failed", "error", err, "title", title)
		return nil, errors.Newf("summary request failed: %w", err).
			Category(errors.CategoryNetwork).
			NetworkContext(requestURL, c.httpClient.Timeout).
			Component("enrichment").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	// Unknown pages are an expected miss, not an error.
	if resp.StatusCode == http.StatusNotFound {
		c.cache.Set(cacheKey, negativeLookup{}, cache.DefaultExpiration)
		logger.Debug("encyclopedia page not found", "title", title)
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("encyclopedia", "miss")
		}
		return nil, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf("failed to read summary response: %w", err).
			Category(errors.CategoryNetwork).
			Component("enrichment").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("encyclopedia service returned status %d", resp.StatusCode).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("title", title).
			Component("enrichment").
			Build()
	}

	var parsed summaryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Newf("failed to parse summary response: %w", err).
			Category(errors.CategoryEnrichment).
			Context("title", title).
			Component("enrichment").
			Build()
	}

	// A disambiguation page is not a usable biography.
	if parsed.Type == "disambiguation" || parsed.Extract == "" {
		c.cache.Set(cacheKey, negativeLookup{}, cache.DefaultExpiration)
		return nil, nil
	}

	summary := &Summary{
		Title:      parsed.Title,
		Extract:    parsed.Extract,
		ContentURL: parsed.Content.Desktop.Page,
	}
	c.cache.Set(cacheKey, summary, cache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.RecordEnrichmentLookup("encyclopedia", "success")
	}
	return summary, nil
}
