// audit.go implements the append-only audit log.
package datastore

// SaveAuditLogEntry appends one audit entry. Entries are never updated or
// deleted by the engine.
func (ds *DataStore) SaveAuditLogEntry(entry *AuditLogEntry) error {
	if err := ds.DB.Create(entry).Error; err != nil {
		return dbError(err, "save-audit-log-entry")
	}
	return nil
}

// GetAuditLog returns the most recent audit entries for one entity.
func (ds *DataStore) GetAuditLog(entityType string, entityID uint, limit int) ([]AuditLogEntry, error) {
	var entries []AuditLogEntry
	q := ds.DB.Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, dbError(err, "get-audit-log")
	}
	return entries, nil
}
