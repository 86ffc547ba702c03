// Package matcher links unlinked scraped records to canonical entities. Each
// entity kind gets a scoring pass over a narrowed candidate set; records that
// match nothing become new canonical entities.
package matcher

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/logging"
	"github.com/tkoskela/scenefuse/internal/venues"
)

// Package-level logger specific to the matcher service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "matcher.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "matcher", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize matcher file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "matcher")
		closeLogger = func() error { return nil }
	}
}

// NearDuplicateConfidence is the fixed link confidence assigned by the
// near-duplicate fallback. It stays below every acceptance threshold so the
// heuristic nature of the link remains visible.
const NearDuplicateConfidence = 0.5

// timeBonus is added to a weighted event score when the start times fall
// within the configured bonus window.
const timeBonus = 0.1

// Result describes what the matcher did with one scraped record.
type Result struct {
	CanonicalID   uint
	Confidence    float64
	Created       bool // a new canonical entity was created
	NearDuplicate bool // linked through the near-duplicate fallback
}

// Matcher scores scraped records against canonical entities and links or
// creates accordingly.
type Matcher struct {
	ds       datastore.Interface
	settings conf.MatchingSettings
	resolver *venues.Resolver
	auditor  *audit.Writer

	// Injectable clock for the past-date publish check.
	now func() time.Time
}

// New creates a matcher.
func New(ds datastore.Interface, settings conf.MatchingSettings, resolver *venues.Resolver, auditor *audit.Writer) *Matcher {
	return &Matcher{
		ds:       ds,
		settings: settings,
		resolver: resolver,
		auditor:  auditor,
		now:      time.Now,
	}
}

// link persists the association between a scraped record and its canonical
// entity. Idempotent: re-linking an already linked record is a no-op because
// the existing link stands.
func (m *Matcher) link(entityType string, scrapedID, canonicalID uint, confidence float64, isPrimary bool) error {
	return m.ds.CreateLink(&datastore.SourceLink{
		EntityType:      entityType,
		CanonicalID:     canonicalID,
		ScrapedID:       scrapedID,
		MatchConfidence: confidence,
		IsPrimary:       isPrimary,
	})
}
