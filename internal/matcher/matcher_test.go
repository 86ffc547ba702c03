package matcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/venues"
)

func testSettings() conf.MatchingSettings {
	return conf.MatchingSettings{
		EventThreshold:     0.6,
		VenueThreshold:     0.7,
		ArtistThreshold:    0.7,
		OrganizerThreshold: 0.7,
		NearDuplicateTitle: 0.8,
		TimeBonusMinutes:   60,
		TimeMaxMinutes:     180,
	}
}

func newTestMatcher(t *testing.T) (*Matcher, *datastore.SQLiteStore) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = ":memory:"

	ds := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, ds.Open())

	m := New(ds, testSettings(), venues.NewResolver(ds, nil), audit.NewWriter(ds))
	// A fixed clock keeps the past-date check deterministic.
	m.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return m, ds
}

func saveCanonicalEvent(t *testing.T, ds datastore.Interface, ev *datastore.Event) *datastore.Event {
	t.Helper()
	ev.Status = datastore.StatusDraftScraped
	require.NoError(t, ds.SaveEvent(ev))
	return ev
}

func TestMatchEventCrossSourceScenario(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	hauff := &datastore.Artist{Name: "Helena Hauff", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveArtist(hauff))
	saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Techno Night", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
		Artists: []datastore.Artist{*hauff},
	})

	rec := &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-1",
		Title: "Techno Night Special", Date: "2026-09-12", StartTime: "23:10",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, rec.SetArtists([]datastore.EventArtistRef{{Name: "Helena Hauff"}}))
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Created)
	assert.GreaterOrEqual(t, result.Confidence, 0.9)

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, result.CanonicalID, link.CanonicalID)
	assert.False(t, link.IsPrimary)
}

func TestMatchEventIsIdempotent(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	canonical := saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	})

	rec := &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, ds.SaveScrapedEvent(rec))

	first, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	second, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, first.CanonicalID, second.CanonicalID)
	assert.Equal(t, canonical.ID, first.CanonicalID)

	var linkCount int64
	require.NoError(t, ds.DB.Model(&datastore.SourceLink{}).Count(&linkCount).Error)
	assert.EqualValues(t, 1, linkCount, "re-matching must not create a second link")
}

func TestMatchEventTimeIncompatibilityHalvesScore(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Open Air", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Sisyphos", VenueCity: "Berlin",
	})

	// Identical title and venue but a start time ten hours away: the halved
	// score falls under the threshold and a new canonical event is created.
	rec := &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-2",
		Title: "Open Air", Date: "2026-09-12", StartTime: "13:00",
		VenueName: "Sisyphos", VenueCity: "Berlin",
	}
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, result.Created)
}

func TestMatchEventAuxiliaryTicketWaivesIncompatibility(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	klock := &datastore.Artist{Name: "Ben Klock", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveArtist(klock))
	canonical := saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Open Air", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Sisyphos", VenueCity: "Berlin",
		Artists: []datastore.Artist{*klock},
	})

	rec := &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-3",
		Title: "Open Air - Parking Pass", Date: "2026-09-12", StartTime: "13:00",
		VenueName: "Sisyphos", VenueCity: "Berlin",
	}
	require.NoError(t, rec.SetArtists([]datastore.EventArtistRef{{Name: "Ben Klock"}}))
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, canonical.ID, result.CanonicalID)
}

func TestMatchEventStrongAgreementFullConfidence(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	hauff := &datastore.Artist{Name: "Helena Hauff", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveArtist(hauff))
	canonical := saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
		Artists: []datastore.Artist{*hauff},
	})

	rec := &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-40",
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:10",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, rec.SetArtists([]datastore.EventArtistRef{{Name: "Helena Hauff"}}))
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, canonical.ID, result.CanonicalID)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9,
		"identical venue and artists with close starts yield full confidence")

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.InDelta(t, 1.0, link.MatchConfidence, 1e-9)
}

func TestScoreEventCandidateOverrideOrder(t *testing.T) {
	t.Parallel()
	m, _ := newTestMatcher(t)

	cand := &datastore.Event{
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
		Artists: []datastore.Artist{{Name: "Helena Hauff"}},
	}
	rec := &datastore.ScrapedEvent{
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:10",
		VenueName: "Berghain", VenueCity: "Berlin",
	}

	score := m.scoreEventCandidate(rec, []datastore.EventArtistRef{{Name: "Helena Hauff"}}, cand)
	assert.True(t, score.timeCompatible)
	assert.Greater(t, score.timeBonus, 0.0)
	assert.InDelta(t, 1.0, score.final, 1e-9,
		"the strong venue+artist+time rule must win over the earlier 0.95 rule")
}

func TestMatchEventNearDuplicateFallback(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	// A canonical event on another calendar date, reachable only through its
	// linked scraped record.
	canonical := saveCanonicalEvent(t, ds, &datastore.Event{
		Title: "Klubnacht", Date: "2026-09-13", StartTime: "00:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	})
	linked := &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-10",
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:55",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, ds.SaveScrapedEvent(linked))
	require.NoError(t, ds.CreateLink(&datastore.SourceLink{
		EntityType: datastore.EntityEvent, CanonicalID: canonical.ID,
		ScrapedID: linked.ID, MatchConfidence: 1.0, IsPrimary: true,
	}))

	rec := &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-10",
		Title: "Klubnacht!", Date: "2026-09-12", StartTime: "23:50",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)

	assert.True(t, result.NearDuplicate)
	assert.Equal(t, canonical.ID, result.CanonicalID)
	assert.InDelta(t, NearDuplicateConfidence, result.Confidence, 1e-9)

	// The fallback records a processing note on the scraped record.
	stored, err := ds.GetScrapedEvent("tm", "tm-10")
	require.NoError(t, err)
	assert.Contains(t, stored.ProcessingErrors, "near-duplicate")
}

func TestMatchEventCreatesCanonicalWithVenueAndArtists(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	rec := &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-20",
		Title: "Nachtdigital", Date: "2026-09-12", StartTime: "22:00",
		VenueName: "Klub X", VenueCity: "Berlin",
	}
	require.NoError(t, rec.SetArtists([]datastore.EventArtistRef{
		{Name: "Helena Hauff", Genres: []string{"electro"}},
	}))
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, result.Created)
	assert.InDelta(t, 1.0, result.Confidence, 1e-9)

	ev, err := ds.GetEvent(result.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Nachtdigital", ev.Title)
	assert.Equal(t, datastore.PublishPending, ev.PublishStatus)
	require.NotNil(t, ev.VenueID)
	require.Len(t, ev.Artists, 1)
	assert.Equal(t, "Helena Hauff", ev.Artists[0].Name)

	// Provenance is attributed to the contributing source.
	assert.Equal(t, "ra", ev.FieldSourceMap()[datastore.FieldTitle])

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.True(t, link.IsPrimary)
	assert.InDelta(t, 1.0, link.MatchConfidence, 1e-9)

	entries, err := ds.GetAuditLog(datastore.EntityEvent, ev.ID, 10)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, datastore.AuditActionCreate, entries[len(entries)-1].Action)
}

func TestCreateEventOrganizerProvenance(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	rec := &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-60",
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, rec.SetOrganizers([]datastore.EventOrganizerRef{
		{Name: "Ostgut Ton", ContentURL: "https://ostgut.de"},
	}))
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, result.Created)

	ev, err := ds.GetEvent(result.CanonicalID)
	require.NoError(t, err)
	require.Len(t, ev.Organizers, 1)

	org, err := ds.GetOrganizer(ev.Organizers[0].ID)
	require.NoError(t, err)
	sources := org.FieldSourceMap()
	assert.Equal(t, "ra", sources[datastore.FieldName])
	assert.Equal(t, "ra", sources[datastore.FieldURL])
	assert.NotContains(t, sources, datastore.FieldDescription)
}

func TestMatchEventPastDateAutoRejected(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	rec := &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-30",
		Title: "Archive Night", Date: "2024-05-01", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	}
	require.NoError(t, ds.SaveScrapedEvent(rec))

	result, err := m.MatchEvent(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, result.Created)

	ev, err := ds.GetEvent(result.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, datastore.PublishRejected, ev.PublishStatus)

	entries, err := ds.GetAuditLog(datastore.EntityEvent, ev.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, datastore.AuditActionAutoRejection, entries[0].Action)
}

func TestMatchVenueIdenticalNameAndCity(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	existing := &datastore.Venue{Name: "Berghain", City: "Berlin", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveVenue(existing))

	rec := &datastore.ScrapedVenue{
		SourceCode: "ra", SourceVenueID: "v-1",
		Name: "berghain", City: "BERLIN",
	}
	require.NoError(t, ds.SaveScrapedVenue(rec))

	result, err := m.MatchVenue(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, existing.ID, result.CanonicalID)
	assert.GreaterOrEqual(t, result.Confidence, 0.99)
}

func TestMatchVenueCreatesNewCanonical(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	rec := &datastore.ScrapedVenue{
		SourceCode: "ra", SourceVenueID: "v-2",
		Name: "Klub X", City: "Berlin", Address: "Somestreet 1, Berlin",
	}
	require.NoError(t, ds.SaveScrapedVenue(rec))

	result, err := m.MatchVenue(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, result.Created)

	venue, err := ds.GetVenue(result.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Klub X", venue.Name)
	assert.Equal(t, "Somestreet 1", venue.Address, "address should be cleaned of city tokens")

	link, err := ds.GetLinkForScraped(datastore.EntityVenue, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.True(t, link.IsPrimary)
	assert.InDelta(t, 1.0, link.MatchConfidence, 1e-9)
}

func TestMatchArtistMatchesSimilarName(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	existing := &datastore.Artist{Name: "Helena Hauff", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveArtist(existing))

	rec := &datastore.ScrapedArtist{
		SourceCode: "mb", SourceArtistID: "a-1",
		Name: "Helena  Hauff",
	}
	require.NoError(t, ds.SaveScrapedArtist(rec))

	result, err := m.MatchArtist(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, result.Created)
	assert.Equal(t, existing.ID, result.CanonicalID)
}

func TestMatchOrganizerCreatesWhenUnknown(t *testing.T) {
	t.Parallel()
	m, ds := newTestMatcher(t)

	rec := &datastore.ScrapedOrganizer{
		SourceCode: "ra", SourceID: "o-1",
		Name: "Ostgut Ton", URL: "https://ostgut.de",
	}
	require.NoError(t, ds.SaveScrapedOrganizer(rec))

	result, err := m.MatchOrganizer(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, result.Created)

	organizer, err := ds.GetOrganizer(result.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Ostgut Ton", organizer.Name)
	assert.Equal(t, "ra", organizer.FieldSourceMap()[datastore.FieldName])
}

func TestMinutesFromMidnight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		clock   string
		want    int
		wantOK  bool
	}{
		{"00:00", 0, true},
		{"23:59", 1439, true},
		{"13:30", 810, true},
		{"", 0, false},
		{"not a time", 0, false},
	}
	for _, tt := range tests {
		got, ok := minutesFromMidnight(tt.clock)
		assert.Equal(t, tt.wantOK, ok, tt.clock)
		assert.Equal(t, tt.want, got, tt.clock)
	}
}
