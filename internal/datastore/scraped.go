// scraped.go implements persistence for per-source scraped records.
package datastore

import (
	"gorm.io/gorm"
)

// saveWithConflictRetry creates or updates a record. A unique-key race on
// first insert is resolved by adopting the winning row's primary key and
// saving again, so callers never see a conflict error.
func (ds *DataStore) saveWithConflictRetry(rec any, reload func() (uint, error)) error {
	err := ds.DB.Save(rec).Error
	if err == nil {
		return nil
	}
	if !isUniqueViolation(err) {
		return dbError(err, "save")
	}

	id, lookupErr := reload()
	if lookupErr != nil {
		return dbError(err, "save")
	}
	setPrimaryKey(rec, id)
	if err := ds.DB.Save(rec).Error; err != nil {
		return dbError(err, "save-after-conflict")
	}
	return nil
}

// setPrimaryKey assigns the adopted primary key to a scraped record.
func setPrimaryKey(rec any, id uint) {
	switch r := rec.(type) {
	case *ScrapedEvent:
		r.ID = id
	case *ScrapedVenue:
		r.ID = id
	case *ScrapedArtist:
		r.ID = id
	case *ScrapedOrganizer:
		r.ID = id
	}
}

// --- Scraped events ---

// GetScrapedEvent fetches a scraped event by its source key. Missing rows
// return (nil, nil): absence is an expected condition during ingestion.
func (ds *DataStore) GetScrapedEvent(sourceCode, sourceEventID string) (*ScrapedEvent, error) {
	var rec ScrapedEvent
	err := ds.DB.Where("source_code = ? AND source_event_id = ?", sourceCode, sourceEventID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, dbError(err, "get-scraped-event")
	}
	return &rec, nil
}

// GetScrapedEventByID fetches a scraped event by primary key.
func (ds *DataStore) GetScrapedEventByID(id uint) (*ScrapedEvent, error) {
	var rec ScrapedEvent
	if err := ds.DB.First(&rec, id).Error; err != nil {
		return nil, dbError(err, "get-scraped-event-by-id")
	}
	return &rec, nil
}

// SaveScrapedEvent upserts a scraped event by its source key.
func (ds *DataStore) SaveScrapedEvent(rec *ScrapedEvent) error {
	return ds.saveWithConflictRetry(rec, func() (uint, error) {
		existing, err := ds.GetScrapedEvent(rec.SourceCode, rec.SourceEventID)
		if err != nil || existing == nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

// GetUnlinkedScrapedEvents returns scraped events that have no SourceLink.
// Only these are ever considered by the candidate matcher.
func (ds *DataStore) GetUnlinkedScrapedEvents() ([]ScrapedEvent, error) {
	var recs []ScrapedEvent
	sub := ds.DB.Model(&SourceLink{}).Select("scraped_id").Where("entity_type = ?", EntityEvent)
	if err := ds.DB.Where("id NOT IN (?)", sub).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-unlinked-scraped-events")
	}
	return recs, nil
}

// GetScrapedEventsByIDs fetches scraped events by primary key.
func (ds *DataStore) GetScrapedEventsByIDs(ids []uint) ([]ScrapedEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []ScrapedEvent
	if err := ds.DB.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-scraped-events-by-ids")
	}
	return recs, nil
}

// GetLinkedScrapedEventsByDateVenue returns already-linked scraped events
// sharing the given date and venue name. This feeds the near-duplicate
// fallback pass.
func (ds *DataStore) GetLinkedScrapedEventsByDateVenue(date, venueName string) ([]ScrapedEvent, error) {
	var recs []ScrapedEvent
	err := ds.DB.
		Joins("JOIN source_links ON source_links.scraped_id = scraped_events.id AND source_links.entity_type = ?", EntityEvent).
		Where("scraped_events.date = ? AND LOWER(scraped_events.venue_name) = LOWER(?)", date, venueName).
		Find(&recs).Error
	if err != nil {
		return nil, dbError(err, "get-linked-scraped-events-by-date-venue")
	}
	return recs, nil
}

// --- Scraped venues ---

// GetScrapedVenue fetches a scraped venue by its source key; nil when absent.
func (ds *DataStore) GetScrapedVenue(sourceCode, sourceVenueID string) (*ScrapedVenue, error) {
	var rec ScrapedVenue
	err := ds.DB.Where("source_code = ? AND source_venue_id = ?", sourceCode, sourceVenueID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, dbError(err, "get-scraped-venue")
	}
	return &rec, nil
}

// SaveScrapedVenue upserts a scraped venue by its source key.
func (ds *DataStore) SaveScrapedVenue(rec *ScrapedVenue) error {
	return ds.saveWithConflictRetry(rec, func() (uint, error) {
		existing, err := ds.GetScrapedVenue(rec.SourceCode, rec.SourceVenueID)
		if err != nil || existing == nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

// GetUnlinkedScrapedVenues returns scraped venues that have no SourceLink.
func (ds *DataStore) GetUnlinkedScrapedVenues() ([]ScrapedVenue, error) {
	var recs []ScrapedVenue
	sub := ds.DB.Model(&SourceLink{}).Select("scraped_id").Where("entity_type = ?", EntityVenue)
	if err := ds.DB.Where("id NOT IN (?)", sub).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-unlinked-scraped-venues")
	}
	return recs, nil
}

// GetScrapedVenuesByIDs fetches scraped venues by primary key.
func (ds *DataStore) GetScrapedVenuesByIDs(ids []uint) ([]ScrapedVenue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []ScrapedVenue
	if err := ds.DB.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-scraped-venues-by-ids")
	}
	return recs, nil
}

// --- Scraped artists ---

// GetScrapedArtist fetches a scraped artist by its source key; nil when absent.
func (ds *DataStore) GetScrapedArtist(sourceCode, sourceArtistID string) (*ScrapedArtist, error) {
	var rec ScrapedArtist
	err := ds.DB.Where("source_code = ? AND source_artist_id = ?", sourceCode, sourceArtistID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, dbError(err, "get-scraped-artist")
	}
	return &rec, nil
}

// SaveScrapedArtist upserts a scraped artist by its source key.
func (ds *DataStore) SaveScrapedArtist(rec *ScrapedArtist) error {
	return ds.saveWithConflictRetry(rec, func() (uint, error) {
		existing, err := ds.GetScrapedArtist(rec.SourceCode, rec.SourceArtistID)
		if err != nil || existing == nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

// GetUnlinkedScrapedArtists returns scraped artists that have no SourceLink.
func (ds *DataStore) GetUnlinkedScrapedArtists() ([]ScrapedArtist, error) {
	var recs []ScrapedArtist
	sub := ds.DB.Model(&SourceLink{}).Select("scraped_id").Where("entity_type = ?", EntityArtist)
	if err := ds.DB.Where("id NOT IN (?)", sub).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-unlinked-scraped-artists")
	}
	return recs, nil
}

// GetScrapedArtistsByIDs fetches scraped artists by primary key.
func (ds *DataStore) GetScrapedArtistsByIDs(ids []uint) ([]ScrapedArtist, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []ScrapedArtist
	if err := ds.DB.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-scraped-artists-by-ids")
	}
	return recs, nil
}

// --- Scraped organizers ---

// GetScrapedOrganizer fetches a scraped organizer by its source key; nil when absent.
func (ds *DataStore) GetScrapedOrganizer(sourceCode, sourceID string) (*ScrapedOrganizer, error) {
	var rec ScrapedOrganizer
	err := ds.DB.Where("source_code = ? AND source_id = ?", sourceCode, sourceID).
		First(&rec).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, dbError(err, "get-scraped-organizer")
	}
	return &rec, nil
}

// SaveScrapedOrganizer upserts a scraped organizer by its source key.
func (ds *DataStore) SaveScrapedOrganizer(rec *ScrapedOrganizer) error {
	return ds.saveWithConflictRetry(rec, func() (uint, error) {
		existing, err := ds.GetScrapedOrganizer(rec.SourceCode, rec.SourceID)
		if err != nil || existing == nil {
			return 0, err
		}
		return existing.ID, nil
	})
}

// GetUnlinkedScrapedOrganizers returns scraped organizers that have no SourceLink.
func (ds *DataStore) GetUnlinkedScrapedOrganizers() ([]ScrapedOrganizer, error) {
	var recs []ScrapedOrganizer
	sub := ds.DB.Model(&SourceLink{}).Select("scraped_id").Where("entity_type = ?", EntityOrganizer)
	if err := ds.DB.Where("id NOT IN (?)", sub).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-unlinked-scraped-organizers")
	}
	return recs, nil
}

// GetScrapedOrganizersByIDs fetches scraped organizers by primary key.
func (ds *DataStore) GetScrapedOrganizersByIDs(ids []uint) ([]ScrapedOrganizer, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var recs []ScrapedOrganizer
	if err := ds.DB.Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, dbError(err, "get-scraped-organizers-by-ids")
	}
	return recs, nil
}
