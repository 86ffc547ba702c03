// create.go builds new canonical entities from scraped records that matched
// nothing.
package matcher

import (
	"context"

	"github.com/tkoskela/scenefuse/internal/changedetect"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/fusion"
	"github.com/tkoskela/scenefuse/internal/similarity"
	"github.com/tkoskela/scenefuse/internal/venues"
)

// createEvent builds a new canonical event from a scraped record. A venue
// resolution failure is recorded as a processing warning; the event proceeds
// with no venue reference.
func (m *Matcher) createEvent(ctx context.Context, rec *datastore.ScrapedEvent, scrapedArtists []datastore.EventArtistRef) (*Result, error) {
	ev := &datastore.Event{Status: datastore.StatusDraftScraped}

	merged, provenance := fusion.Merge(
		[]fusion.Source{fusion.EventSource(rec, fusion.DefaultPriority)},
		datastore.EventFields,
	)
	for field, value := range merged {
		ev.ApplyField(field, value)
	}
	ev.Date = changedetect.NormalizeDate(ev.Date)
	ev.StartTime = changedetect.NormalizeTime(ev.StartTime)
	ev.EndTime = changedetect.NormalizeTime(ev.EndTime)
	ev.SetFieldSourceMap(provenance)

	if rec.VenueName != "" || rec.VenueAddress != "" {
		venue, err := m.resolver.Resolve(ctx, venues.Ref{
			Name:      rec.VenueName,
			Address:   rec.VenueAddress,
			City:      rec.VenueCity,
			Country:   rec.VenueCountry,
			Latitude:  rec.VenueLatitude,
			Longitude: rec.VenueLongitude,
		})
		if err != nil {
			logger.Warn("venue resolution failed, creating event without venue",
				"scraped_id", rec.ID,
				"venue_name", rec.VenueName,
				"error", err)
			rec.AppendProcessingError("venue-resolution", err.Error())
			if saveErr := m.ds.SaveScrapedEvent(rec); saveErr != nil {
				return nil, saveErr
			}
		} else {
			ev.VenueID = &venue.ID
		}
	}

	for _, ref := range scrapedArtists {
		artist, err := m.findOrCreateArtistByName(ref, rec.SourceCode)
		if err != nil {
			return nil, err
		}
		if artist != nil {
			ev.Artists = append(ev.Artists, *artist)
		}
	}

	scrapedOrganizers, err := rec.Organizers()
	if err != nil {
		return nil, err
	}
	for _, ref := range scrapedOrganizers {
		organizer, err := m.findOrCreateOrganizerByName(ref, rec.SourceCode)
		if err != nil {
			return nil, err
		}
		if organizer != nil {
			ev.Organizers = append(ev.Organizers, *organizer)
		}
	}

	ev.PublishStatus = datastore.PublishPending
	past := ev.Date != "" && ev.Date < m.now().Format("2006-01-02")
	if past {
		ev.PublishStatus = datastore.PublishRejected
	}

	if err := m.ds.SaveEvent(ev); err != nil {
		return nil, err
	}
	if err := m.auditor.Created(datastore.EntityEvent, ev.ID, rec.SourceCode); err != nil {
		return nil, err
	}
	if past {
		if err := m.auditor.AutoRejection(datastore.EntityEvent, ev.ID, "event date already past at creation"); err != nil {
			return nil, err
		}
	}
	if err := m.link(datastore.EntityEvent, rec.ID, ev.ID, 1.0, true); err != nil {
		return nil, err
	}

	logger.Info("canonical event created",
		"scraped_id", rec.ID,
		"source_code", rec.SourceCode,
		"canonical_id", ev.ID,
		"publish_status", ev.PublishStatus)

	return &Result{CanonicalID: ev.ID, Confidence: 1.0, Created: true}, nil
}

// findOrCreateArtistByName reuses a canonical artist whose name clears the
// artist threshold, creating one otherwise. Nameless refs are skipped.
func (m *Matcher) findOrCreateArtistByName(ref datastore.EventArtistRef, sourceCode string) (*datastore.Artist, error) {
	if similarity.Normalize(ref.Name) == "" {
		return nil, nil
	}

	candidates, err := m.ds.ArtistCandidates(ref.Name)
	if err != nil {
		return nil, err
	}

	var best *datastore.Artist
	bestScore := 0.0
	for i := range candidates {
		if score := similarity.Score(ref.Name, candidates[i].Name); score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best != nil && bestScore >= m.settings.ArtistThreshold {
		return best, nil
	}

	artist := &datastore.Artist{
		Name:       ref.Name,
		ImageURL:   ref.ImageURL,
		ContentURL: ref.ContentURL,
		Status:     datastore.StatusDraftScraped,
	}
	artist.SetGenres(ref.Genres)
	artist.SetFieldSourceMap(artistRefProvenance(ref, sourceCode))
	if err := m.ds.SaveArtist(artist); err != nil {
		return nil, err
	}
	if err := m.auditor.Created(datastore.EntityArtist, artist.ID, ""); err != nil {
		return nil, err
	}
	return artist, nil
}

// artistRefProvenance attributes an embedded artist ref's filled fields to
// the event's source, pending a scraped artist record of its own.
func artistRefProvenance(ref datastore.EventArtistRef, sourceCode string) map[string]string {
	provenance := map[string]string{}
	mark := func(field string, filled bool) {
		if filled {
			provenance[field] = sourceCode
		}
	}
	mark(datastore.FieldName, ref.Name != "")
	mark(datastore.FieldGenres, len(ref.Genres) > 0)
	mark(datastore.FieldImageURL, ref.ImageURL != "")
	mark(datastore.FieldContentURL, ref.ContentURL != "")
	return provenance
}

// organizerRefProvenance attributes an embedded organizer ref's filled fields
// to the event's source, pending a scraped organizer record of its own.
func organizerRefProvenance(ref datastore.EventOrganizerRef, sourceCode string) map[string]string {
	provenance := map[string]string{}
	mark := func(field string, filled bool) {
		if filled {
			provenance[field] = sourceCode
		}
	}
	mark(datastore.FieldName, ref.Name != "")
	mark(datastore.FieldDescription, ref.Description != "")
	mark(datastore.FieldURL, ref.ContentURL != "")
	return provenance
}

// findOrCreateOrganizerByName mirrors findOrCreateArtistByName for
// organizers.
func (m *Matcher) findOrCreateOrganizerByName(ref datastore.EventOrganizerRef, sourceCode string) (*datastore.Organizer, error) {
	if similarity.Normalize(ref.Name) == "" {
		return nil, nil
	}

	candidates, err := m.ds.OrganizerCandidates(ref.Name)
	if err != nil {
		return nil, err
	}

	var best *datastore.Organizer
	bestScore := 0.0
	for i := range candidates {
		if score := similarity.Score(ref.Name, candidates[i].Name); score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best != nil && bestScore >= m.settings.OrganizerThreshold {
		return best, nil
	}

	organizer := &datastore.Organizer{
		Name:        ref.Name,
		Description: ref.Description,
		URL:         ref.ContentURL,
		Status:      datastore.StatusDraftScraped,
	}
	organizer.SetFieldSourceMap(organizerRefProvenance(ref, sourceCode))
	if err := m.ds.SaveOrganizer(organizer); err != nil {
		return nil, err
	}
	if err := m.auditor.Created(datastore.EntityOrganizer, organizer.ID, ""); err != nil {
		return nil, err
	}
	return organizer, nil
}
