// manage.go handles schema migration for the configured backend.
package datastore

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(
		&ScrapedEvent{},
		&ScrapedVenue{},
		&ScrapedArtist{},
		&ScrapedOrganizer{},
		&Event{},
		&Venue{},
		&Artist{},
		&Organizer{},
		&SourceLink{},
		&AuditLogEntry{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}
