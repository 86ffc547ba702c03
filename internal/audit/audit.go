// Package audit appends system-action entries to the audit log. All entries
// are attributed to the system actor; human actions are recorded elsewhere.
package audit

import (
	"encoding/json"
	"log/slog"

	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/logging"
)

// SystemActor is the performed_by value for engine-driven mutations.
const SystemActor = "system"

// Writer appends audit entries through the datastore.
type Writer struct {
	ds     datastore.Interface
	logger *slog.Logger
}

// NewWriter creates an audit writer.
func NewWriter(ds datastore.Interface) *Writer {
	l := logging.ForService("audit")
	if l == nil {
		l = slog.Default()
	}
	return &Writer{ds: ds, logger: l}
}

// save persists one entry and traces it.
func (w *Writer) save(entry *datastore.AuditLogEntry) error {
	if err := w.ds.SaveAuditLogEntry(entry); err != nil {
		return err
	}
	w.logger.Debug("audit entry recorded",
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"action", entry.Action)
	return nil
}

// Created records the creation of a canonical entity.
func (w *Writer) Created(entityType string, entityID uint, sourceCode string) error {
	changes, _ := json.Marshal(map[string]string{"source_code": sourceCode})
	return w.save(&datastore.AuditLogEntry{
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      datastore.AuditActionCreate,
		Changes:     string(changes),
		PerformedBy: SystemActor,
	})
}

// SystemUpdate records an automatic refresh that changed headline fields.
func (w *Writer) SystemUpdate(entityType string, entityID uint, changes map[string]datastore.FieldChange) error {
	encoded := ""
	if len(changes) > 0 {
		if data, err := json.Marshal(changes); err == nil {
			encoded = string(data)
		}
	}
	return w.save(&datastore.AuditLogEntry{
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      datastore.AuditActionSystemUpdate,
		Changes:     encoded,
		PerformedBy: SystemActor,
	})
}

// AutoRejection records that a freshly created event was rejected for
// publishing without review, with the reason.
func (w *Writer) AutoRejection(entityType string, entityID uint, reason string) error {
	changes, _ := json.Marshal(map[string]string{"reason": reason})
	return w.save(&datastore.AuditLogEntry{
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      datastore.AuditActionAutoRejection,
		Changes:     string(changes),
		PerformedBy: SystemActor,
	})
}
