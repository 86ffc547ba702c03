// interfaces.go defines the persistence interface for the convergence engine.
package datastore

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// Scraped events
	GetScrapedEvent(sourceCode, sourceEventID string) (*ScrapedEvent, error)
	GetScrapedEventByID(id uint) (*ScrapedEvent, error)
	SaveScrapedEvent(rec *ScrapedEvent) error
	GetUnlinkedScrapedEvents() ([]ScrapedEvent, error)
	GetScrapedEventsByIDs(ids []uint) ([]ScrapedEvent, error)
	GetLinkedScrapedEventsByDateVenue(date, venueName string) ([]ScrapedEvent, error)

	// Scraped venues
	GetScrapedVenue(sourceCode, sourceVenueID string) (*ScrapedVenue, error)
	SaveScrapedVenue(rec *ScrapedVenue) error
	GetUnlinkedScrapedVenues() ([]ScrapedVenue, error)
	GetScrapedVenuesByIDs(ids []uint) ([]ScrapedVenue, error)

	// Scraped artists
	GetScrapedArtist(sourceCode, sourceArtistID string) (*ScrapedArtist, error)
	SaveScrapedArtist(rec *ScrapedArtist) error
	GetUnlinkedScrapedArtists() ([]ScrapedArtist, error)
	GetScrapedArtistsByIDs(ids []uint) ([]ScrapedArtist, error)

	// Scraped organizers
	GetScrapedOrganizer(sourceCode, sourceID string) (*ScrapedOrganizer, error)
	SaveScrapedOrganizer(rec *ScrapedOrganizer) error
	GetUnlinkedScrapedOrganizers() ([]ScrapedOrganizer, error)
	GetScrapedOrganizersByIDs(ids []uint) ([]ScrapedOrganizer, error)

	// Canonical entities
	GetEvent(id uint) (*Event, error)
	SaveEvent(ev *Event) error
	EventCandidatesByDate(date string) ([]Event, error)
	GetVenue(id uint) (*Venue, error)
	SaveVenue(v *Venue) error
	FindVenueByNameCity(name, city string) (*Venue, error)
	VenueCandidates(city string) ([]Venue, error)
	GetArtist(id uint) (*Artist, error)
	SaveArtist(a *Artist) error
	ArtistCandidates(name string) ([]Artist, error)
	GetOrganizer(id uint) (*Organizer, error)
	SaveOrganizer(o *Organizer) error
	OrganizerCandidates(name string) ([]Organizer, error)

	// Links
	CreateLink(link *SourceLink) error
	GetLinkForScraped(entityType string, scrapedID uint) (*SourceLink, error)
	GetLinksForCanonical(entityType string, canonicalID uint) ([]SourceLink, error)
	StampLinksSynced(linkIDs []uint, ts time.Time) error

	// Audit log
	SaveAuditLogEntry(entry *AuditLogEntry) error
	GetAuditLog(entityType string, entityID uint, limit int) ([]AuditLogEntry, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a store instance for the configured backend. Returns nil if no
// backend is enabled.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Database.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Database.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// dbError wraps a gorm error in the house error type, mapping record-not-found
// and unique-violation onto their categories.
func dbError(err error, operation string) error {
	if err == nil {
		return nil
	}
	category := errors.CategoryDatabase
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		category = errors.CategoryNotFound
	case isUniqueViolation(err):
		category = errors.CategoryConflict
	}
	return errors.New(err).
		Component("datastore").
		Category(category).
		Context("operation", operation).
		Build()
}

// isNotFound reports whether err is gorm's record-not-found.
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// isUniqueViolation detects unique-constraint failures across SQLite and MySQL.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry")
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() logger.Interface {
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)
}
