// Package workflow decides what happens to a detected source change: apply
// it to the canonical entity immediately, or leave it attached to the
// scraped record as a pending review suggestion. Only the canonical entity's
// lifecycle state drives the decision — draft entities absorb changes
// silently, everything past draft goes through review.
package workflow

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/logging"
	"github.com/tkoskela/scenefuse/internal/refresher"
)

// Package-level logger specific to the workflow service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "workflow.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "workflow", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize workflow file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "workflow")
		closeLogger = func() error { return nil }
	}
}

// Workflow is the auto-apply gate. Application itself is delegated to the
// refresher, which audits headline changes; the workflow audits applied
// diffs the refresher's headline rule does not cover.
type Workflow struct {
	ds        datastore.Interface
	refresher *refresher.Refresher
	auditor   *audit.Writer
}

// New creates the auto-apply workflow.
func New(ds datastore.Interface, r *refresher.Refresher, auditor *audit.Writer) *Workflow {
	return &Workflow{ds: ds, refresher: r, auditor: auditor}
}

// auditNonHeadline records an applied diff that touches no headline field.
// Diffs with headline fields are audited by the refresher's own rule.
func (w *Workflow) auditNonHeadline(entityType string, entityID uint, changes map[string]datastore.FieldChange, headline []string) error {
	if len(changes) == 0 {
		return nil
	}
	for _, field := range headline {
		if _, ok := changes[field]; ok {
			return nil
		}
	}
	return w.auditor.SystemUpdate(entityType, entityID, changes)
}

// ProcessEventChange handles a scraped event with a pending diff. Returns
// true when the change was applied to the canonical event.
func (w *Workflow) ProcessEventChange(rec *datastore.ScrapedEvent) (bool, error) {
	if !rec.HasChanges {
		return false, nil
	}
	if rec.IsDismissed {
		logger.Debug("change on dismissed record ignored",
			"scraped_id", rec.ID, "source_code", rec.SourceCode)
		return false, nil
	}

	link, err := w.ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, nil
	}

	ev, err := w.ds.GetEvent(link.CanonicalID)
	if err != nil {
		return false, err
	}
	if !datastore.IsDraftStatus(ev.Status) {
		logger.Info("change left pending for review",
			"scraped_id", rec.ID,
			"canonical_id", ev.ID,
			"status", ev.Status)
		return false, nil
	}

	changes, err := rec.ChangeMap()
	if err != nil {
		return false, err
	}
	if err := w.refresher.RefreshEvent(link.CanonicalID); err != nil {
		return false, err
	}
	if err := w.auditNonHeadline(datastore.EntityEvent, ev.ID, changes, datastore.EventHeadlineFields); err != nil {
		return false, err
	}
	if err := w.clearEventChanges(rec); err != nil {
		return false, err
	}

	logger.Info("change auto-applied to draft event",
		"scraped_id", rec.ID,
		"canonical_id", ev.ID)
	return true, nil
}

func (w *Workflow) clearEventChanges(rec *datastore.ScrapedEvent) error {
	if err := rec.SetChangeMap(nil); err != nil {
		return err
	}
	return w.ds.SaveScrapedEvent(rec)
}

// ProcessVenueChange handles a scraped venue with a pending diff.
func (w *Workflow) ProcessVenueChange(rec *datastore.ScrapedVenue) (bool, error) {
	if !rec.HasChanges {
		return false, nil
	}

	link, err := w.ds.GetLinkForScraped(datastore.EntityVenue, rec.ID)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, nil
	}

	venue, err := w.ds.GetVenue(link.CanonicalID)
	if err != nil {
		return false, err
	}
	if !datastore.IsDraftStatus(venue.Status) {
		return false, nil
	}

	changes, err := rec.ChangeMap()
	if err != nil {
		return false, err
	}
	if err := w.refresher.RefreshVenue(link.CanonicalID); err != nil {
		return false, err
	}
	if err := w.auditNonHeadline(datastore.EntityVenue, venue.ID, changes, datastore.VenueHeadlineFields); err != nil {
		return false, err
	}
	if err := rec.SetChangeMap(nil); err != nil {
		return false, err
	}
	if err := w.ds.SaveScrapedVenue(rec); err != nil {
		return false, err
	}
	return true, nil
}

// ProcessArtistChange handles a scraped artist with a pending diff.
func (w *Workflow) ProcessArtistChange(rec *datastore.ScrapedArtist) (bool, error) {
	if !rec.HasChanges {
		return false, nil
	}

	link, err := w.ds.GetLinkForScraped(datastore.EntityArtist, rec.ID)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, nil
	}

	artist, err := w.ds.GetArtist(link.CanonicalID)
	if err != nil {
		return false, err
	}
	if !datastore.IsDraftStatus(artist.Status) {
		return false, nil
	}

	changes, err := rec.ChangeMap()
	if err != nil {
		return false, err
	}
	if err := w.refresher.RefreshArtist(link.CanonicalID); err != nil {
		return false, err
	}
	if err := w.auditNonHeadline(datastore.EntityArtist, artist.ID, changes, datastore.ArtistHeadlineFields); err != nil {
		return false, err
	}
	if err := rec.SetChangeMap(nil); err != nil {
		return false, err
	}
	if err := w.ds.SaveScrapedArtist(rec); err != nil {
		return false, err
	}
	return true, nil
}

// ProcessOrganizerChange handles a scraped organizer with a pending diff.
func (w *Workflow) ProcessOrganizerChange(rec *datastore.ScrapedOrganizer) (bool, error) {
	if !rec.HasChanges {
		return false, nil
	}

	link, err := w.ds.GetLinkForScraped(datastore.EntityOrganizer, rec.ID)
	if err != nil {
		return false, err
	}
	if link == nil {
		return false, nil
	}

	organizer, err := w.ds.GetOrganizer(link.CanonicalID)
	if err != nil {
		return false, err
	}
	if !datastore.IsDraftStatus(organizer.Status) {
		return false, nil
	}

	changes, err := rec.ChangeMap()
	if err != nil {
		return false, err
	}
	if err := w.refresher.RefreshOrganizer(link.CanonicalID); err != nil {
		return false, err
	}
	if err := w.auditNonHeadline(datastore.EntityOrganizer, organizer.ID, changes, datastore.OrganizerHeadlineFields); err != nil {
		return false, err
	}
	if err := rec.SetChangeMap(nil); err != nil {
		return false, err
	}
	if err := w.ds.SaveScrapedOrganizer(rec); err != nil {
		return false, err
	}
	return true, nil
}
