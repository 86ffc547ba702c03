// Package venues resolves scraped venue references to canonical venues,
// creating and geocoding new ones on demand.
package venues

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/errors"
	"github.com/tkoskela/scenefuse/internal/geocoding"
	"github.com/tkoskela/scenefuse/internal/logging"
)

// Package-level logger specific to venue resolution
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "venues.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "venues", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize venues file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "venues")
		closeLogger = func() error { return nil }
	}
}

// Resolver finds or creates canonical venues. The geocoder is optional: with
// a nil geocoder new venues are simply created without coordinates.
type Resolver struct {
	ds       datastore.Interface
	geocoder geocoding.Geocoder
}

// NewResolver creates a venue resolver.
func NewResolver(ds datastore.Interface, geocoder geocoding.Geocoder) *Resolver {
	return &Resolver{ds: ds, geocoder: geocoder}
}

// Ref is the venue information a scraped record carries.
type Ref struct {
	Name      string
	Address   string
	City      string
	Country   string
	Latitude  float64
	Longitude float64
}

// Resolve finds the canonical venue matching the ref by case-insensitive
// (name, city), creating one when nothing matches. A ref with neither name
// nor address is rejected as unusable.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (*datastore.Venue, error) {
	if strings.TrimSpace(ref.Name) == "" && strings.TrimSpace(ref.Address) == "" {
		return nil, errors.Newf("venue reference carries neither name nor address").
			Category(errors.CategoryValidation).
			Component("venues").
			Build()
	}

	existing, err := r.ds.FindVenueByNameCity(ref.Name, ref.City)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	return r.create(ctx, ref)
}

// create builds a new canonical venue from the ref, cleaning the address and
// geocoding when no coordinates were supplied. Geocoding failures are logged
// and the venue is created without coordinates.
func (r *Resolver) create(ctx context.Context, ref Ref) (*datastore.Venue, error) {
	address, postalCode := CleanAddress(ref.Address, ref.City, ref.Country)

	venue := &datastore.Venue{
		Name:       ref.Name,
		Address:    address,
		PostalCode: postalCode,
		City:       ref.City,
		Country:    ref.Country,
		Latitude:   ref.Latitude,
		Longitude:  ref.Longitude,
		Status:     datastore.StatusDraftScraped,
	}

	if venue.Latitude == 0 && venue.Longitude == 0 && r.geocoder != nil {
		if result := r.geocode(ctx, venue); result != nil {
			venue.Latitude = result.Latitude
			venue.Longitude = result.Longitude
			if venue.PostalCode == "" {
				venue.PostalCode = result.PostalCode
			}
			if venue.Country == "" {
				venue.Country = result.Country
			}
		}
	}

	if err := r.ds.SaveVenue(venue); err != nil {
		return nil, err
	}

	logger.Info("canonical venue created",
		"venue_id", venue.ID,
		"name", venue.Name,
		"city", venue.City,
		"geocoded", venue.Latitude != 0 || venue.Longitude != 0)

	return venue, nil
}

// geocode tries three degrading query strategies and accepts the first hit.
// Any failure is logged and swallowed.
func (r *Resolver) geocode(ctx context.Context, venue *datastore.Venue) *geocoding.Result {
	queries := []string{
		joinNonEmpty(venue.Address, venue.City, venue.Country),
		joinNonEmpty(venue.Address, venue.City),
		joinNonEmpty(venue.City, venue.Country),
	}

	for _, query := range queries {
		if query == "" {
			continue
		}
		result, err := r.geocoder.Geocode(ctx, query)
		if err != nil {
			logger.Warn("geocoding attempt failed",
				"venue", venue.Name,
				"query", query,
				"error", err)
			continue
		}
		if result != nil {
			return result
		}
	}

	logger.Warn("venue could not be geocoded",
		"venue", venue.Name,
		"city", venue.City)
	return nil
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// postalCodeRe matches common European postal codes: 4-5 digits, or a Dutch
// style digit block followed by two letters.
var postalCodeRe = regexp.MustCompile(`\b(\d{4,5}(?:\s?[A-Z]{2})?)\b`)

// CleanAddress strips the postal code and trailing city/country tokens out of
// a free-text address line, returning the cleaned street address and the
// extracted postal code.
func CleanAddress(address, city, country string) (cleaned, postalCode string) {
	cleaned = strings.TrimSpace(address)
	if cleaned == "" {
		return "", ""
	}

	if m := postalCodeRe.FindString(cleaned); m != "" {
		postalCode = m
		cleaned = strings.Replace(cleaned, m, "", 1)
	}

	// Drop comma-separated segments that merely repeat the city or country.
	segments := strings.Split(cleaned, ",")
	kept := segments[:0]
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		if strings.EqualFold(trimmed, city) || strings.EqualFold(trimmed, country) {
			continue
		}
		kept = append(kept, trimmed)
	}
	cleaned = strings.Join(kept, ", ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	return cleaned, postalCode
}
