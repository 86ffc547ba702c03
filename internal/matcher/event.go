// event.go implements event candidate scoring: weighted title/venue/artist
// similarity with a start-time compatibility check and explicit override
// rules for strong venue+artist agreement.
package matcher

import (
	"context"
	"strconv"
	"strings"

	"github.com/tkoskela/scenefuse/internal/changedetect"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/similarity"
)

// Weighting of the three similarity signals in the composite event score.
const (
	titleWeight  = 0.4
	venueWeight  = 0.3
	artistWeight = 0.3
)

// auxiliaryKeywords mark listings for parking, upgrades and similar add-ons
// that legitimately share an event's venue and date while starting at a very
// different hour, so time incompatibility is waived for them.
var auxiliaryKeywords = []string{
	"package", "upgrade", "vip", "parking", "shuttle", "add-on", "addon", "aftershow",
}

// eventScore carries the per-signal breakdown for one candidate.
type eventScore struct {
	title          float64
	venue          float64
	artist         float64
	timeBonus      float64
	timeCompatible bool
	final          float64
}

// MatchEvent links an unlinked scraped event to an existing canonical event,
// or creates a new one. The near-duplicate fallback runs between the two.
func (m *Matcher) MatchEvent(ctx context.Context, rec *datastore.ScrapedEvent) (*Result, error) {
	date := changedetect.NormalizeDate(rec.Date)

	candidates, err := m.ds.EventCandidatesByDate(date)
	if err != nil {
		return nil, err
	}

	scrapedArtists, err := rec.Artists()
	if err != nil {
		return nil, err
	}

	var bestID uint
	var best eventScore
	for i := range candidates {
		cand := &candidates[i]
		if !m.eventCandidateEligible(rec, cand) {
			continue
		}

		// Reload with artist associations for the artist signal.
		full, err := m.ds.GetEvent(cand.ID)
		if err != nil {
			return nil, err
		}

		score := m.scoreEventCandidate(rec, scrapedArtists, full)
		logger.Debug("event candidate scored",
			"scraped_id", rec.ID,
			"candidate_id", cand.ID,
			"title_score", score.title,
			"venue_score", score.venue,
			"artist_score", score.artist,
			"time_compatible", score.timeCompatible,
			"final", score.final)

		if bestID == 0 || score.final > best.final {
			bestID = cand.ID
			best = score
		}
	}

	if bestID != 0 && best.final >= m.settings.EventThreshold {
		if err := m.link(datastore.EntityEvent, rec.ID, bestID, best.final, false); err != nil {
			return nil, err
		}
		logger.Info("scraped event matched",
			"scraped_id", rec.ID,
			"source_code", rec.SourceCode,
			"canonical_id", bestID,
			"confidence", best.final)
		return &Result{CanonicalID: bestID, Confidence: best.final}, nil
	}

	if result, err := m.nearDuplicateFallback(rec, date); err != nil || result != nil {
		return result, err
	}

	return m.createEvent(ctx, rec, scrapedArtists)
}

// eventCandidateEligible is the in-memory narrowing filter: candidates must
// share the city (case-insensitive) or have venue names containing one
// another.
func (m *Matcher) eventCandidateEligible(rec *datastore.ScrapedEvent, cand *datastore.Event) bool {
	if rec.VenueCity != "" && cand.VenueCity != "" &&
		strings.EqualFold(strings.TrimSpace(rec.VenueCity), strings.TrimSpace(cand.VenueCity)) {
		return true
	}
	return similarity.Contains(rec.VenueName, cand.VenueName) ||
		similarity.Contains(cand.VenueName, rec.VenueName)
}

// scoreEventCandidate computes the weighted composite score with overrides.
func (m *Matcher) scoreEventCandidate(rec *datastore.ScrapedEvent, scrapedArtists []datastore.EventArtistRef, cand *datastore.Event) eventScore {
	s := eventScore{
		title: similarity.Score(rec.Title, cand.Title),
		venue: similarity.Score(rec.VenueName, cand.VenueName),
	}
	s.artist = m.artistSignal(rec, scrapedArtists, cand)
	s.timeBonus, s.timeCompatible = m.timeSignal(rec, cand)

	s.final = titleWeight*s.title + venueWeight*s.venue + artistWeight*s.artist + s.timeBonus

	// Override rules, applied in order; a later rule may raise the score.
	if s.timeCompatible && s.venue > 0.8 && s.artist > 0.85 {
		s.final = 0.95
	}
	if s.timeCompatible && s.venue > 0.8 && s.artist >= 0.8 {
		s.final = max(s.final, 0.9)
	}
	if s.venue > 0.8 && s.timeBonus > 0 && s.artist >= 0.4 {
		s.final = max(s.final, 0.9)
	}
	if s.venue > 0.85 && s.artist > 0.85 && s.timeBonus > 0 {
		s.final = 1.0
	}

	if !s.timeCompatible {
		s.final /= 2
	}
	return s
}

// artistSignal is the best pairwise name similarity across the two artist
// lists. When one side has no list, a directional substring check against
// the other side's title substitutes for it.
func (m *Matcher) artistSignal(rec *datastore.ScrapedEvent, scrapedArtists []datastore.EventArtistRef, cand *datastore.Event) float64 {
	scrapedNames := make([]string, 0, len(scrapedArtists))
	for _, ref := range scrapedArtists {
		scrapedNames = append(scrapedNames, ref.Name)
	}
	candNames := make([]string, 0, len(cand.Artists))
	for _, a := range cand.Artists {
		candNames = append(candNames, a.Name)
	}

	if len(scrapedNames) > 0 && len(candNames) > 0 {
		return similarity.BestPairScore(scrapedNames, candNames)
	}

	// Directional substring fallbacks for one-sided lists.
	for _, name := range scrapedNames {
		if similarity.Contains(cand.Title, name) {
			return 0.9
		}
	}
	for _, name := range candNames {
		if similarity.Contains(rec.Title, name) {
			return 0.9
		}
	}
	return 0
}

// timeSignal compares start times with wrap-aware minute arithmetic. Close
// starts earn a bonus; far-apart starts mark the pair incompatible unless
// the scraped title names an auxiliary ticket.
func (m *Matcher) timeSignal(rec *datastore.ScrapedEvent, cand *datastore.Event) (bonus float64, compatible bool) {
	recMinutes, okA := minutesFromMidnight(rec.StartTime)
	candMinutes, okB := minutesFromMidnight(cand.StartTime)
	if !okA || !okB {
		// Missing start times are neutral.
		return 0, true
	}

	diff := recMinutes - candMinutes
	if diff < 0 {
		diff = -diff
	}
	if wrapped := 1440 - diff; wrapped < diff {
		diff = wrapped
	}

	if diff <= m.settings.TimeBonusMinutes {
		return timeBonus, true
	}
	if diff > m.settings.TimeMaxMinutes && !hasAuxiliaryKeyword(rec.Title) {
		return 0, false
	}
	return 0, true
}

// minutesFromMidnight parses an HH:MM clock time into minutes.
func minutesFromMidnight(clock string) (int, bool) {
	clock = changedetect.NormalizeTime(clock)
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

func hasAuxiliaryKeyword(title string) bool {
	title = strings.ToLower(title)
	for _, kw := range auxiliaryKeywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// nearDuplicateFallback links a record that matched no canonical candidate
// to the canonical entity of an already-linked scraped record with the same
// date and venue and a near-identical title. Returns nil when the fallback
// does not apply.
func (m *Matcher) nearDuplicateFallback(rec *datastore.ScrapedEvent, date string) (*Result, error) {
	if rec.VenueName == "" {
		return nil, nil
	}

	linked, err := m.ds.GetLinkedScrapedEventsByDateVenue(date, rec.VenueName)
	if err != nil {
		return nil, err
	}

	for i := range linked {
		other := &linked[i]
		if similarity.Score(rec.Title, other.Title) < m.settings.NearDuplicateTitle {
			continue
		}
		link, err := m.ds.GetLinkForScraped(datastore.EntityEvent, other.ID)
		if err != nil {
			return nil, err
		}
		if link == nil {
			continue
		}
		if err := m.link(datastore.EntityEvent, rec.ID, link.CanonicalID, NearDuplicateConfidence, false); err != nil {
			return nil, err
		}
		rec.AppendProcessingError("matching",
			"near-duplicate of scraped event "+strconv.FormatUint(uint64(other.ID), 10))
		if err := m.ds.SaveScrapedEvent(rec); err != nil {
			return nil, err
		}
		logger.Info("scraped event linked via near-duplicate fallback",
			"scraped_id", rec.ID,
			"other_scraped_id", other.ID,
			"canonical_id", link.CanonicalID)
		return &Result{
			CanonicalID:   link.CanonicalID,
			Confidence:    NearDuplicateConfidence,
			NearDuplicate: true,
		}, nil
	}
	return nil, nil
}
