// entity.go implements matching for standalone scraped venues, artists and
// organizers: single-signal name similarity, blended with a city check for
// venues.
package matcher

import (
	"context"
	"strings"

	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/fusion"
	"github.com/tkoskela/scenefuse/internal/similarity"
	"github.com/tkoskela/scenefuse/internal/venues"
)

// MatchVenue links an unlinked scraped venue to a canonical venue, creating
// one through the venue resolver when nothing scores above the threshold.
func (m *Matcher) MatchVenue(ctx context.Context, rec *datastore.ScrapedVenue) (*Result, error) {
	candidates, err := m.ds.VenueCandidates(rec.City)
	if err != nil {
		return nil, err
	}

	var bestID uint
	bestScore := 0.0
	for i := range candidates {
		score := venueScore(rec, &candidates[i])
		if bestID == 0 || score > bestScore {
			bestID = candidates[i].ID
			bestScore = score
		}
	}

	if bestID != 0 && bestScore >= m.settings.VenueThreshold {
		if err := m.link(datastore.EntityVenue, rec.ID, bestID, bestScore, false); err != nil {
			return nil, err
		}
		logger.Info("scraped venue matched",
			"scraped_id", rec.ID,
			"source_code", rec.SourceCode,
			"canonical_id", bestID,
			"confidence", bestScore)
		return &Result{CanonicalID: bestID, Confidence: bestScore}, nil
	}

	venue, err := m.resolver.Resolve(ctx, venues.Ref{
		Name:      rec.Name,
		Address:   rec.Address,
		City:      rec.City,
		Country:   rec.Country,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
	})
	if err != nil {
		return nil, err
	}

	merged, provenance := fusion.Merge(
		[]fusion.Source{fusion.VenueSource(rec, fusion.DefaultPriority)},
		datastore.VenueFields,
	)
	// Keep resolver-derived values (cleaned address, geocoded coordinates)
	// over the raw scrape.
	for field, value := range merged {
		if fusion.IsEmpty(venue.FieldValue(field)) {
			venue.ApplyField(field, value)
		}
	}
	venue.SetFieldSourceMap(provenance)
	if err := m.ds.SaveVenue(venue); err != nil {
		return nil, err
	}

	if err := m.auditor.Created(datastore.EntityVenue, venue.ID, rec.SourceCode); err != nil {
		return nil, err
	}
	if err := m.link(datastore.EntityVenue, rec.ID, venue.ID, 1.0, true); err != nil {
		return nil, err
	}

	logger.Info("canonical venue linked from scrape",
		"scraped_id", rec.ID,
		"source_code", rec.SourceCode,
		"canonical_id", venue.ID)
	return &Result{CanonicalID: venue.ID, Confidence: 1.0, Created: true}, nil
}

// venueScore blends name similarity with a city agreement check. Identical
// names in the same city score 1.0; a city mismatch halves the name signal.
func venueScore(rec *datastore.ScrapedVenue, cand *datastore.Venue) float64 {
	score := similarity.Score(rec.Name, cand.Name)
	if rec.City != "" && cand.City != "" {
		if strings.EqualFold(strings.TrimSpace(rec.City), strings.TrimSpace(cand.City)) {
			score = min(1.0, score+0.1)
		} else {
			score /= 2
		}
	}
	return score
}

// MatchArtist links an unlinked scraped artist to a canonical artist,
// creating one when nothing scores above the threshold.
func (m *Matcher) MatchArtist(_ context.Context, rec *datastore.ScrapedArtist) (*Result, error) {
	candidates, err := m.ds.ArtistCandidates(rec.Name)
	if err != nil {
		return nil, err
	}

	var bestID uint
	bestScore := 0.0
	for i := range candidates {
		if score := similarity.Score(rec.Name, candidates[i].Name); bestID == 0 || score > bestScore {
			bestID = candidates[i].ID
			bestScore = score
		}
	}

	if bestID != 0 && bestScore >= m.settings.ArtistThreshold {
		if err := m.link(datastore.EntityArtist, rec.ID, bestID, bestScore, false); err != nil {
			return nil, err
		}
		logger.Info("scraped artist matched",
			"scraped_id", rec.ID,
			"source_code", rec.SourceCode,
			"canonical_id", bestID,
			"confidence", bestScore)
		return &Result{CanonicalID: bestID, Confidence: bestScore}, nil
	}

	artist := &datastore.Artist{Status: datastore.StatusDraftScraped}
	merged, provenance := fusion.Merge(
		[]fusion.Source{fusion.ArtistSource(rec, fusion.DefaultPriority)},
		datastore.ArtistFields,
	)
	for field, value := range merged {
		artist.ApplyField(field, value)
	}
	artist.SetFieldSourceMap(provenance)
	if err := m.ds.SaveArtist(artist); err != nil {
		return nil, err
	}

	if err := m.auditor.Created(datastore.EntityArtist, artist.ID, rec.SourceCode); err != nil {
		return nil, err
	}
	if err := m.link(datastore.EntityArtist, rec.ID, artist.ID, 1.0, true); err != nil {
		return nil, err
	}

	logger.Info("canonical artist created",
		"scraped_id", rec.ID,
		"source_code", rec.SourceCode,
		"canonical_id", artist.ID)
	return &Result{CanonicalID: artist.ID, Confidence: 1.0, Created: true}, nil
}

// MatchOrganizer links an unlinked scraped organizer to a canonical
// organizer, creating one when nothing scores above the threshold.
func (m *Matcher) MatchOrganizer(_ context.Context, rec *datastore.ScrapedOrganizer) (*Result, error) {
	candidates, err := m.ds.OrganizerCandidates(rec.Name)
	if err != nil {
		return nil, err
	}

	var bestID uint
	bestScore := 0.0
	for i := range candidates {
		if score := similarity.Score(rec.Name, candidates[i].Name); bestID == 0 || score > bestScore {
			bestID = candidates[i].ID
			bestScore = score
		}
	}

	if bestID != 0 && bestScore >= m.settings.OrganizerThreshold {
		if err := m.link(datastore.EntityOrganizer, rec.ID, bestID, bestScore, false); err != nil {
			return nil, err
		}
		logger.Info("scraped organizer matched",
			"scraped_id", rec.ID,
			"source_code", rec.SourceCode,
			"canonical_id", bestID,
			"confidence", bestScore)
		return &Result{CanonicalID: bestID, Confidence: bestScore}, nil
	}

	organizer := &datastore.Organizer{Status: datastore.StatusDraftScraped}
	merged, provenance := fusion.Merge(
		[]fusion.Source{fusion.OrganizerSource(rec, fusion.DefaultPriority)},
		datastore.OrganizerFields,
	)
	for field, value := range merged {
		organizer.ApplyField(field, value)
	}
	organizer.SetFieldSourceMap(provenance)
	if err := m.ds.SaveOrganizer(organizer); err != nil {
		return nil, err
	}

	if err := m.auditor.Created(datastore.EntityOrganizer, organizer.ID, rec.SourceCode); err != nil {
		return nil, err
	}
	if err := m.link(datastore.EntityOrganizer, rec.ID, organizer.ID, 1.0, true); err != nil {
		return nil, err
	}

	logger.Info("canonical organizer created",
		"scraped_id", rec.ID,
		"source_code", rec.SourceCode,
		"canonical_id", organizer.ID)
	return &Result{CanonicalID: organizer.ID, Confidence: 1.0, Created: true}, nil
}
