// nominatim.go implements the Geocoder interface against a Nominatim-style
// search endpoint.
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/errors"
	"github.com/tkoskela/scenefuse/internal/observability/metrics"
)

const userAgent = "scenefuse/1.0"

// negativeResult is the cache sentinel for queries that matched nothing, so
// repeated misses do not burn rate-limited requests.
type negativeResult struct{}

// Client is a rate-limited, caching Nominatim client. Pacing is shared across
// all lookups through the client: a request never starts sooner than the
// configured minimum interval after the previous one.
type Client struct {
	settings   conf.ClientSettings
	httpClient *http.Client
	cache      *cache.Cache
	metrics    *metrics.GatewayMetrics

	mu          sync.Mutex
	lastRequest time.Time

	// Injectable clock for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewClient creates a Nominatim client from the given settings, filling in
// defaults for anything unset.
func NewClient(settings conf.ClientSettings) *Client {
	if settings.BaseURL == "" {
		settings.BaseURL = "https://nominatim.openstreetmap.org"
	}
	if settings.MinIntervalMS == 0 {
		settings.MinIntervalMS = 1100
	}
	if settings.CacheTTLMinutes == 0 {
		settings.CacheTTLMinutes = 24 * 60
	}
	if settings.TimeoutSeconds == 0 {
		settings.TimeoutSeconds = 10
	}

	ttl := time.Duration(settings.CacheTTLMinutes) * time.Minute
	client := &Client{
		settings:   settings,
		httpClient: &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		cache:      cache.New(ttl, ttl*2),
		now:        time.Now,
		sleep:      time.Sleep,
	}

	logger.Info("geocoding client initialized",
		"base_url", settings.BaseURL,
		"min_interval_ms", settings.MinIntervalMS,
		"cache_ttl_minutes", settings.CacheTTLMinutes)

	return client
}

// SetMetrics sets the gateway metrics instance for request tracking.
func (c *Client) SetMetrics(m *metrics.GatewayMetrics) {
	c.metrics = m
}

// Geocode resolves a free-text query. Results, including misses, are cached
// for the configured TTL. A miss returns (nil, nil).
func (c *Client) Geocode(ctx context.Context, query string) (*Result, error) {
	if query == "" {
		return nil, nil
	}

	cacheKey := "geocode:" + query
	if cached, found := c.cache.Get(cacheKey); found {
		logger.Debug("geocoding cache hit", "query", query)
		if c.metrics != nil {
			c.metrics.RecordCacheHit("geocoding")
		}
		if _, negative := cached.(negativeResult); negative {
			return nil, nil
		}
		if result, ok := cached.(*Result); ok {
			return result, nil
		}
	}

	c.waitForSlot()

	start := c.now()
	result, err := c.search(ctx, query)
	if c.metrics != nil {
		c.metrics.RecordGeocodeRequest(geocodeStatus(result, err), c.now().Sub(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if result == nil {
		c.cache.Set(cacheKey, negativeResult{}, cache.DefaultExpiration)
		logger.Debug("geocoding miss cached", "query", query)
		return nil, nil
	}

	c.cache.Set(cacheKey, result, cache.DefaultExpiration)
	logger.Debug("geocoding result cached",
		"query", query,
		"lat", result.Latitude,
		"lon", result.Longitude)
	return result, nil
}

func geocodeStatus(result *Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case result == nil:
		return "miss"
	default:
		return "success"
	}
}

// waitForSlot blocks until the minimum interval since the last request has
// elapsed, then claims the slot.
func (c *Client) waitForSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()

	minInterval := time.Duration(c.settings.MinIntervalMS) * time.Millisecond
	if wait := minInterval - c.now().Sub(c.lastRequest); wait > 0 {
		c.sleep(wait)
	}
	c.lastRequest = c.now()
}

// nominatimPlace is one entry of a Nominatim search response.
type nominatimPlace struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		Postcode string `json:"postcode"`
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		Country  string `json:"country"`
	} `json:"address"`
}

// search performs one rate-limited lookup against the search endpoint.
func (c *Client) search(ctx context.Context, query string) (*Result, error) {
	start := c.now()
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("addressdetails", "1")
	params.Set("limit", "1")
	requestURL := fmt.Sprintf("%s/search?%s", c.settings.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return nil, errors.Newf("failed to create geocoding request: %w", err).
			Category(errors.CategoryGeocoding).
			Context("query", query).
			Component("geocoding").
			Build()
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("geocoding request failed", "error", err, "query", query)
		return nil, errors.Newf("geocoding request failed: %w", err).
			Category(errors.CategoryNetwork).
			NetworkContext(requestURL, c.httpClient.Timeout).
			Timing("geocode-request", c.now().Sub(start)).
			Context("query", query).
			Component("geocoding").
			Build()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf("failed to read geocoding response: %w", err).
			Category(errors.CategoryNetwork).
			Context("query", query).
			Component("geocoding").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("geocoding service returned error",
			"status_code", resp.StatusCode,
			"query", query)
		return nil, errors.Newf("geocoding service returned status %d", resp.StatusCode).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("query", query).
			Component("geocoding").
			Build()
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, errors.Newf("failed to parse geocoding response: %w", err).
			Category(errors.CategoryGeocoding).
			Context("query", query).
			Component("geocoding").
			Build()
	}

	if len(places) == 0 {
		return nil, nil
	}

	place := places[0]
	lat, latErr := strconv.ParseFloat(place.Lat, 64)
	lon, lonErr := strconv.ParseFloat(place.Lon, 64)
	if latErr != nil || lonErr != nil {
		return nil, errors.Newf("geocoding response carries unparseable coordinates").
			Category(errors.CategoryGeocoding).
			Context("lat", place.Lat).
			Context("lon", place.Lon).
			Component("geocoding").
			Build()
	}

	city := place.Address.City
	if city == "" {
		city = place.Address.Town
	}
	if city == "" {
		city = place.Address.Village
	}

	return &Result{
		DisplayName: place.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		PostalCode:  place.Address.Postcode,
		City:        city,
		Country:     place.Address.Country,
	}, nil
}

// Close releases client resources.
func (c *Client) Close() {
	logger.Info("closing geocoding client")
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing geocoding logger: %v", err)
		}
	}
}
