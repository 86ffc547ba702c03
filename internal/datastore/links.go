// links.go implements the fan-in relationship between canonical entities and
// scraped records.
package datastore

import (
	"time"
)

// CreateLink persists a new SourceLink. A concurrent insert for the same
// scraped record loses silently: the unique index on (entity_type,
// scraped_id) guarantees at most one link, and the race winner's link stands.
func (ds *DataStore) CreateLink(link *SourceLink) error {
	if err := ds.DB.Create(link).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return dbError(err, "create-link")
	}
	return nil
}

// GetLinkForScraped returns the link for a scraped record, or (nil, nil) if
// the record is unlinked.
func (ds *DataStore) GetLinkForScraped(entityType string, scrapedID uint) (*SourceLink, error) {
	var link SourceLink
	err := ds.DB.Where("entity_type = ? AND scraped_id = ?", entityType, scrapedID).
		First(&link).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "get-link-for-scraped")
	}
	return &link, nil
}

// GetLinksForCanonical returns all links fanning in to a canonical entity,
// primary link first.
func (ds *DataStore) GetLinksForCanonical(entityType string, canonicalID uint) ([]SourceLink, error) {
	var links []SourceLink
	err := ds.DB.Where("entity_type = ? AND canonical_id = ?", entityType, canonicalID).
		Order("is_primary DESC, id ASC").
		Find(&links).Error
	if err != nil {
		return nil, dbError(err, "get-links-for-canonical")
	}
	return links, nil
}

// StampLinksSynced sets last_synced_at on the given links. The refresher
// calls this for every link whose source contributed at least one field.
func (ds *DataStore) StampLinksSynced(linkIDs []uint, ts time.Time) error {
	if len(linkIDs) == 0 {
		return nil
	}
	err := ds.DB.Model(&SourceLink{}).
		Where("id IN ?", linkIDs).
		Update("last_synced_at", ts).Error
	if err != nil {
		return dbError(err, "stamp-links-synced")
	}
	return nil
}
