// music.go looks up artist metadata in a MusicBrainz-style web service.
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

const musicUserAgent = "scenefuse/1.0 (https://github.com/tkoskela/scenefuse)"

// minArtistScore is the search score below which a hit is considered a
// different artist that merely shares some tokens.
const minArtistScore = 90

// ArtistInfo is the metadata a music database lookup can contribute.
type ArtistInfo struct {
	ID      string
	Name    string
	Country string
	Type    string
	Genres  []string
}

// MusicClient queries a MusicBrainz-style search endpoint with request
// pacing and response caching.
type MusicClient struct {
	settings   conf.ClientSettings
	httpClient *http.Client
	cache      *cache.Cache
	pacer      *pacer
	metrics    *metrics.GatewayMetrics
}

// SetMetrics sets the gateway metrics instance for lookup tracking.
func (c *MusicClient) SetMetrics(m *metrics.GatewayMetrics) {
	c.metrics = m
}

// NewMusicClient creates a music metadata client, filling in defaults for
// anything unset.
func NewMusicClient(settings conf.ClientSettings) *MusicClient {
	if settings.BaseURL == "" {
		settings.BaseURL = "https://musicbrainz.org/ws/2"
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
	client := &MusicClient{
		settings:   settings,
		httpClient: &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		cache:      cache.New(ttl, ttl*2),
		pacer:      newPacer(settings.MinIntervalMS),
	}

	logger.Info("music metadata client initialized",
		"base_url", settings.BaseURL,
		"min_interval_ms", settings.MinIntervalMS)

	return client
}

// musicSearchResponse mirrors the artist search payload.
type musicSearchResponse struct {
	Artists []struct {
		ID      string `json:"id"`
		Score   int    `json:"score"`
		Name    string `json:"name"`
		Country string `json:"country"`
		Type    string `json:"type"`
		Tags    []struct {
			Name string `json:"name"`
		} `json:"tags"`
	} `json:"artists"`
}

// SearchArtist looks up an artist by name. Unknown artists and low-scoring
// hits return (nil, nil).
func (c *MusicClient) SearchArtist(ctx context.Context, name string) (*ArtistInfo, error) {
	if name == "" {
		return nil, nil
	}

	cacheKey := "artist:" + name
	if cached, found := c.cache.Get(cacheKey); found {
		logger.Debug("music artist cache hit", "name", name)
		if c.metrics != nil {
			c.metrics.RecordCacheHit("music")
		}
		if _, negative := cached.(negativeLookup); negative {
			return nil, nil
		}
		if info, ok := cached.(*ArtistInfo); ok {
			return info, nil
		}
	}

	c.pacer.wait()

	params := url.Values{}
	params.Set("query", fmt.Sprintf("artist:%q", name))
	params.Set("fmt", "json")
	params.Set("limit", "1")
	requestURL := fmt.Sprintf("%s/artist?%s", c.settings.BaseURL, params.Encode())

	var parsed musicSearchResponse
	if err := c.getJSON(ctx, requestURL, &parsed); err != nil {
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("music", "error")
		}
		return nil, err
	}

	if len(parsed.Artists) == 0 || parsed.Artists[0].Score < minArtistScore {
		c.cache.Set(cacheKey, negativeLookup{}, cache.DefaultExpiration)
		logger.Debug("music artist not found", "name", name)
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("music", "miss")
		}
		return nil, nil
	}

	hit := parsed.Artists[0]
	info := &ArtistInfo{
		ID:      hit.ID,
		Name:    hit.Name,
		Country: hit.Country,
		Type:    hit.Type,
	}
	for _, tag := range hit.Tags {
		info.Genres = append(info.Genres, tag.Name)
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)
	logger.Debug("music artist resolved", "name", name, "id", info.ID)
	if c.metrics != nil {
		c.metrics.RecordEnrichmentLookup("music", "success")
	}
	return info, nil
}

// musicArtistResponse mirrors a direct artist fetch.
type musicArtistResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Type    string `json:"type"`
	Tags    []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// LookupArtist fetches an artist by its upstream identifier.
func (c *MusicClient) LookupArtist(ctx context.Context, id string) (*ArtistInfo, error) {
	if id == "" {
		return nil, nil
	}

	cacheKey := "artist-id:" + id
	if cached, found := c.cache.Get(cacheKey); found {
		if info, ok := cached.(*ArtistInfo); ok {
			return info, nil
		}
	}

	c.pacer.wait()

	params := url.Values{}
	params.Set("fmt", "json")
	params.Set("inc", "tags")
	requestURL := fmt.Sprintf("%s/artist/%s?%s", c.settings.BaseURL, url.PathEscape(id), params.Encode())

	var parsed musicArtistResponse
	if err := c.getJSON(ctx, requestURL, &parsed); err != nil {
		if c.metrics != nil {
			c.metrics.RecordEnrichmentLookup("music", "error")
		}
		return nil, err
	}

	info := &ArtistInfo{
		ID:      parsed.ID,
		Name:    parsed.Name,
		Country: parsed.Country,
		Type:    parsed.Type,
	}
	for _, tag := range parsed.Tags {
		info.Genres = append(info.Genres, tag.Name)
	}

	c.cache.Set(cacheKey, info, cache.DefaultExpiration)
	if c.metrics != nil {
		c.metrics.RecordEnrichmentLookup("music", "success")
	}
	return info, nil
}

// negativeLookup is the cache sentinel for names the upstream does not know.
type negativeLookup struct{}

// getJSON performs one GET request and decodes the JSON body into out.
func (c *MusicClient) getJSON(ctx context.Context, requestURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
	if err != nil {
		return errors.Newf("failed to create enrichment request: %w", err).
			Category(errors.CategoryEnrichment).
			Component("enrichment").
			Build()
	}
	req.Header.Set("User-Agent", musicUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("music metadata request failed", "error", err, "url", requestURL)
		return errors.NetworkError(err, requestURL, c.httpClient.Timeout)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Newf("failed to read enrichment response: %w", err).
			Category(errors.CategoryNetwork).
			Component("enrichment").
			Build()
	}

	if resp.StatusCode != http.StatusOK {
		logger.Error("music metadata service returned error",
			"status_code", resp.StatusCode,
			"url", requestURL)
		return errors.Newf("enrichment service returned status %d", resp.StatusCode).
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Component("enrichment").
			Build()
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Newf("failed to parse enrichment response: %w", err).
			Category(errors.CategoryEnrichment).
			Component("enrichment").
			Build()
	}
	return nil
}
