// Package geocoding resolves free-text addresses to coordinates through a
// rate-limited, caching gateway. The public geocoding services it talks to
// enforce strict request pacing, so all lookups funnel through one shared
// gateway per process.
package geocoding

import (
	"context"
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/tkoskela/scenefuse/internal/logging"
)

// Package-level logger specific to the geocoding service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "geocoding.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "geocoding", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize geocoding file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "geocoding")
		closeLogger = func() error { return nil }
	}
}

// Result is one geocoding hit. The address components beyond the coordinates
// are filled on a best-effort basis.
type Result struct {
	DisplayName string
	Latitude    float64
	Longitude   float64
	PostalCode  string
	City        string
	Country     string
}

// Geocoder resolves a free-text query to a location. A query that matches
// nothing returns (nil, nil): no match is an expected outcome, not an error.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Result, error)
}
