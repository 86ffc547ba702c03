// refresh.go implements the per-kind refresh operations.
package refresher

import (
	"fmt"

	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/fusion"
)

// RefreshEvent re-fuses a canonical event from its linked scraped events plus
// the synthesized manual source.
func (r *Refresher) RefreshEvent(canonicalID uint) error {
	unlock := r.locks.lock(fmt.Sprintf("%s:%d", datastore.EntityEvent, canonicalID))
	defer unlock()

	ev, err := r.ds.GetEvent(canonicalID)
	if err != nil {
		return err
	}

	links, err := r.ds.GetLinksForCanonical(datastore.EntityEvent, canonicalID)
	if err != nil {
		return err
	}

	scrapedIDs := make([]uint, 0, len(links))
	for _, link := range links {
		scrapedIDs = append(scrapedIDs, link.ScrapedID)
	}
	scraped, err := r.ds.GetScrapedEventsByIDs(scrapedIDs)
	if err != nil {
		return err
	}

	sources := make([]fusion.Source, 0, len(scraped)+1)
	sourceByScraped := make(map[uint]string, len(scraped))
	for i := range scraped {
		rec := &scraped[i]
		sourceByScraped[rec.ID] = rec.SourceCode
		sources = append(sources, fusion.EventSource(rec, fusion.PriorityFor(rec.SourceCode, r.priorities)))
	}
	if manual, ok := fusion.ManualSource(ev, datastore.EventFields); ok {
		sources = append(sources, manual)
	}

	before := snapshotFields(ev, datastore.EventHeadlineFields)
	merged, provenance := fusion.Merge(sources, datastore.EventFields)
	applyMerged(ev, merged, provenance, datastore.EventFields)

	if err := r.ds.SaveEvent(ev); err != nil {
		return err
	}

	if ids := contributingLinks(links, sourceByScraped, provenance); len(ids) > 0 {
		if err := r.ds.StampLinksSynced(ids, r.now()); err != nil {
			return err
		}
	}

	if changes := headlineChanges(before, ev, datastore.EventHeadlineFields); len(changes) > 0 {
		if err := r.auditor.SystemUpdate(datastore.EntityEvent, ev.ID, changes); err != nil {
			return err
		}
		logger.Info("canonical event refreshed with headline changes",
			"canonical_id", ev.ID,
			"changed_fields", len(changes))
	} else {
		logger.Debug("canonical event refreshed", "canonical_id", ev.ID)
	}
	return nil
}

// RefreshVenue re-fuses a canonical venue from its linked scraped venues.
func (r *Refresher) RefreshVenue(canonicalID uint) error {
	unlock := r.locks.lock(fmt.Sprintf("%s:%d", datastore.EntityVenue, canonicalID))
	defer unlock()

	venue, err := r.ds.GetVenue(canonicalID)
	if err != nil {
		return err
	}

	links, err := r.ds.GetLinksForCanonical(datastore.EntityVenue, canonicalID)
	if err != nil {
		return err
	}

	scrapedIDs := make([]uint, 0, len(links))
	for _, link := range links {
		scrapedIDs = append(scrapedIDs, link.ScrapedID)
	}
	scraped, err := r.ds.GetScrapedVenuesByIDs(scrapedIDs)
	if err != nil {
		return err
	}

	sources := make([]fusion.Source, 0, len(scraped)+1)
	sourceByScraped := make(map[uint]string, len(scraped))
	for i := range scraped {
		rec := &scraped[i]
		sourceByScraped[rec.ID] = rec.SourceCode
		sources = append(sources, fusion.VenueSource(rec, fusion.PriorityFor(rec.SourceCode, r.priorities)))
	}
	if manual, ok := fusion.ManualSource(venue, datastore.VenueFields); ok {
		sources = append(sources, manual)
	}

	before := snapshotFields(venue, datastore.VenueHeadlineFields)
	merged, provenance := fusion.Merge(sources, datastore.VenueFields)
	applyMerged(venue, merged, provenance, datastore.VenueFields)

	if err := r.ds.SaveVenue(venue); err != nil {
		return err
	}

	if ids := contributingLinks(links, sourceByScraped, provenance); len(ids) > 0 {
		if err := r.ds.StampLinksSynced(ids, r.now()); err != nil {
			return err
		}
	}

	if changes := headlineChanges(before, venue, datastore.VenueHeadlineFields); len(changes) > 0 {
		if err := r.auditor.SystemUpdate(datastore.EntityVenue, venue.ID, changes); err != nil {
			return err
		}
	}
	return nil
}

// RefreshArtist re-fuses a canonical artist from its linked scraped artists.
func (r *Refresher) RefreshArtist(canonicalID uint) error {
	unlock := r.locks.lock(fmt.Sprintf("%s:%d", datastore.EntityArtist, canonicalID))
	defer unlock()

	artist, err := r.ds.GetArtist(canonicalID)
	if err != nil {
		return err
	}

	links, err := r.ds.GetLinksForCanonical(datastore.EntityArtist, canonicalID)
	if err != nil {
		return err
	}

	scrapedIDs := make([]uint, 0, len(links))
	for _, link := range links {
		scrapedIDs = append(scrapedIDs, link.ScrapedID)
	}
	scraped, err := r.ds.GetScrapedArtistsByIDs(scrapedIDs)
	if err != nil {
		return err
	}

	sources := make([]fusion.Source, 0, len(scraped)+1)
	sourceByScraped := make(map[uint]string, len(scraped))
	for i := range scraped {
		rec := &scraped[i]
		sourceByScraped[rec.ID] = rec.SourceCode
		sources = append(sources, fusion.ArtistSource(rec, fusion.PriorityFor(rec.SourceCode, r.priorities)))
	}
	if manual, ok := fusion.ManualSource(artist, datastore.ArtistFields); ok {
		sources = append(sources, manual)
	}

	before := snapshotFields(artist, datastore.ArtistHeadlineFields)
	merged, provenance := fusion.Merge(sources, datastore.ArtistFields)
	applyMerged(artist, merged, provenance, datastore.ArtistFields)

	if err := r.ds.SaveArtist(artist); err != nil {
		return err
	}

	if ids := contributingLinks(links, sourceByScraped, provenance); len(ids) > 0 {
		if err := r.ds.StampLinksSynced(ids, r.now()); err != nil {
			return err
		}
	}

	if changes := headlineChanges(before, artist, datastore.ArtistHeadlineFields); len(changes) > 0 {
		if err := r.auditor.SystemUpdate(datastore.EntityArtist, artist.ID, changes); err != nil {
			return err
		}
	}
	return nil
}

// RefreshOrganizer re-fuses a canonical organizer from its linked scraped
// organizers.
func (r *Refresher) RefreshOrganizer(canonicalID uint) error {
	unlock := r.locks.lock(fmt.Sprintf("%s:%d", datastore.EntityOrganizer, canonicalID))
	defer unlock()

	organizer, err := r.ds.GetOrganizer(canonicalID)
	if err != nil {
		return err
	}

	links, err := r.ds.GetLinksForCanonical(datastore.EntityOrganizer, canonicalID)
	if err != nil {
		return err
	}

	scrapedIDs := make([]uint, 0, len(links))
	for _, link := range links {
		scrapedIDs = append(scrapedIDs, link.ScrapedID)
	}
	scraped, err := r.ds.GetScrapedOrganizersByIDs(scrapedIDs)
	if err != nil {
		return err
	}

	sources := make([]fusion.Source, 0, len(scraped)+1)
	sourceByScraped := make(map[uint]string, len(scraped))
	for i := range scraped {
		rec := &scraped[i]
		sourceByScraped[rec.ID] = rec.SourceCode
		sources = append(sources, fusion.OrganizerSource(rec, fusion.PriorityFor(rec.SourceCode, r.priorities)))
	}
	if manual, ok := fusion.ManualSource(organizer, datastore.OrganizerFields); ok {
		sources = append(sources, manual)
	}

	before := snapshotFields(organizer, datastore.OrganizerHeadlineFields)
	merged, provenance := fusion.Merge(sources, datastore.OrganizerFields)
	applyMerged(organizer, merged, provenance, datastore.OrganizerFields)

	if err := r.ds.SaveOrganizer(organizer); err != nil {
		return err
	}

	if ids := contributingLinks(links, sourceByScraped, provenance); len(ids) > 0 {
		if err := r.ds.StampLinksSynced(ids, r.now()); err != nil {
			return err
		}
	}

	if changes := headlineChanges(before, organizer, datastore.OrganizerHeadlineFields); len(changes) > 0 {
		if err := r.auditor.SystemUpdate(datastore.EntityOrganizer, organizer.ID, changes); err != nil {
			return err
		}
	}
	return nil
}
