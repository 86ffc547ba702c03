package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/enrichment"
	"github.com/tkoskela/scenefuse/internal/errors"
	"github.com/tkoskela/scenefuse/internal/matcher"
	"github.com/tkoskela/scenefuse/internal/refresher"
	"github.com/tkoskela/scenefuse/internal/venues"
	"github.com/tkoskela/scenefuse/internal/workflow"
)

func testPriorities() map[string]int {
	return map[string]int{"ra": 2, "tm": 3, "dice": 4}
}

func newTestProcessor(t *testing.T) (*Processor, *datastore.SQLiteStore) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = ":memory:"
	settings.Matching = conf.MatchingSettings{
		EventThreshold:     0.6,
		VenueThreshold:     0.7,
		ArtistThreshold:    0.7,
		OrganizerThreshold: 0.7,
		NearDuplicateTitle: 0.8,
		TimeBonusMinutes:   60,
		TimeMaxMinutes:     180,
	}

	ds := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, ds.Open())

	auditor := audit.NewWriter(ds)
	m := matcher.New(ds, settings.Matching, venues.NewResolver(ds, nil), auditor)
	r := refresher.New(ds, testPriorities(), auditor)
	w := workflow.New(ds, r, auditor)
	return New(ds, m, r, w), ds
}

func scrapedEvent(source, sourceID, title string) datastore.ScrapedEvent {
	return datastore.ScrapedEvent{
		SourceCode:    source,
		SourceEventID: sourceID,
		Title:         title,
		Date:          "2030-09-12",
		StartTime:     "23:00",
		VenueName:     "Berghain",
		VenueCity:     "Berlin",
	}
}

func TestIngestEventsCreatesCanonical(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	report := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
	})

	require.NotEmpty(t, report.RunID)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Created)
	assert.Zero(t, report.Failed)

	stored, err := ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	require.NotNil(t, stored)

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.True(t, link.IsPrimary)
}

func TestIngestEventsSkipsInvalidRecords(t *testing.T) {
	t.Parallel()
	p, _ := newTestProcessor(t)

	records := []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
		{SourceCode: "ra", SourceEventID: "ra-2"}, // no title, no date
		{Title: "Orphan", Date: "2030-09-12"},     // no source key
	}
	report := p.IngestEvents(context.Background(), records)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Skipped)
}

func TestIngestEventsMatchesAcrossSources(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	first := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
	})
	require.Equal(t, 1, first.Created)

	tm := scrapedEvent("tm", "tm-9", "Klubnacht")
	tm.FlyerFront = "https://img.example/flyer.jpg"
	second := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{tm})

	assert.Equal(t, 1, second.Matched)
	assert.Zero(t, second.Created)

	stored, err := ds.GetScrapedEvent("tm", "tm-9")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityEvent, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	// The second source was re-fused into the canonical: its flyer fills the gap.
	ev, err := ds.GetEvent(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/flyer.jpg", ev.FlyerFront)
}

func TestIngestEventsAutoAppliesDraftChanges(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
	})

	updated := scrapedEvent("ra", "ra-1", "Klubnacht XL")
	report := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{updated})

	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Applied)
	assert.Zero(t, report.Pending)

	stored, err := ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	assert.False(t, stored.HasChanges)

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, stored.ID)
	require.NoError(t, err)
	ev, err := ds.GetEvent(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Klubnacht XL", ev.Title)
}

func TestIngestEventsLeavesNonDraftChangesPending(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
	})

	stored, err := ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityEvent, stored.ID)
	require.NoError(t, err)
	ev, err := ds.GetEvent(link.CanonicalID)
	require.NoError(t, err)
	ev.Status = datastore.StatusPublished
	require.NoError(t, ds.SaveEvent(ev))

	updated := scrapedEvent("ra", "ra-1", "Klubnacht XL")
	report := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{updated})

	assert.Equal(t, 1, report.Changed)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 1, report.Pending)

	stored, err = ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	assert.True(t, stored.HasChanges)

	ev, err = ds.GetEvent(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Klubnacht", ev.Title)
}

func TestIngestEventsNeverErasesStoredFields(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	full := scrapedEvent("ra", "ra-1", "Klubnacht")
	full.Description = "All night long."
	p.IngestEvents(context.Background(), []datastore.ScrapedEvent{full})

	// Same record scraped again, this time without the description.
	p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-1", "Klubnacht"),
	})

	stored, err := ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	assert.Equal(t, "All night long.", stored.Description)
	assert.False(t, stored.HasChanges)
}

func TestIngestEventsIsolatesFailures(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	broken := scrapedEvent("ra", "ra-1", "Klubnacht")
	broken.ArtistsJSON = `{not json`
	require.NoError(t, ds.SaveScrapedEvent(&broken))

	incoming := scrapedEvent("ra", "ra-1", "Klubnacht")
	require.NoError(t, incoming.SetArtists([]datastore.EventArtistRef{{Name: "Ben Klock"}}))

	report := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		incoming,
		scrapedEvent("tm", "tm-2", "Other Night"),
	})

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Created)

	stored, err := ds.GetScrapedEvent("ra", "ra-1")
	require.NoError(t, err)
	assert.Contains(t, stored.ProcessingErrors, "change-detection")
}

func TestMatchUnlinkedPicksUpStoredRecords(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	rec := scrapedEvent("ra", "ra-1", "Klubnacht")
	require.NoError(t, ds.SaveScrapedEvent(&rec))

	report, err := p.MatchUnlinked(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Created)

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	// Linked records are not reprocessed on the next pass.
	again, err := p.MatchUnlinked(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Processed)
}

func TestRefreshRejectsUnknownKind(t *testing.T) {
	t.Parallel()
	p, _ := newTestProcessor(t)

	err := p.Refresh("series", 1)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestDismissEventBlocksAutoApply(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	report := p.IngestEvents(context.Background(), []datastore.ScrapedEvent{
		scrapedEvent("ra", "ra-50", "Klubnacht"),
	})
	require.Equal(t, 1, report.Created)

	stored, err := ds.GetScrapedEvent("ra", "ra-50")
	require.NoError(t, err)
	require.NoError(t, p.DismissEvent(stored.ID))
	// Dismissing twice is a no-op.
	require.NoError(t, p.DismissEvent(stored.ID))

	updated := scrapedEvent("ra", "ra-50", "Klubnacht XL")
	report = p.IngestEvents(context.Background(), []datastore.ScrapedEvent{updated})
	assert.Equal(t, 1, report.Changed)
	assert.Zero(t, report.Applied)
	assert.Equal(t, 1, report.Pending)

	link, err := ds.GetLinkForScraped(datastore.EntityEvent, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	ev, err := ds.GetEvent(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Klubnacht", ev.Title, "dismissed records must not auto-apply")

	stored, err = ds.GetScrapedEvent("ra", "ra-50")
	require.NoError(t, err)
	assert.True(t, stored.IsDismissed)
	assert.True(t, stored.HasChanges, "the pending diff stays for manual review")
}

func TestDismissEventUnknownID(t *testing.T) {
	t.Parallel()
	p, _ := newTestProcessor(t)

	assert.Error(t, p.DismissEvent(424242))
}

func TestIngestVenuesCreateAndMatch(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	first := p.IngestVenues(context.Background(), []datastore.ScrapedVenue{
		{SourceCode: "ra", SourceVenueID: "v-1", Name: "Berghain", City: "Berlin",
			Latitude: 52.511, Longitude: 13.443},
	})
	assert.Equal(t, 1, first.Created)

	second := p.IngestVenues(context.Background(), []datastore.ScrapedVenue{
		{SourceCode: "tm", SourceVenueID: "v-77", Name: "Berghain", City: "Berlin",
			Latitude: 52.511, Longitude: 13.443},
	})
	assert.Equal(t, 1, second.Matched)
	assert.Zero(t, second.Created)

	stored, err := ds.GetScrapedVenue("tm", "v-77")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityVenue, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
}

func TestIngestArtistsCreateAndRefresh(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	first := p.IngestArtists(context.Background(), []datastore.ScrapedArtist{
		{SourceCode: "ra", SourceArtistID: "a-1", Name: "Helena Hauff"},
	})
	assert.Equal(t, 1, first.Created)

	second := p.IngestArtists(context.Background(), []datastore.ScrapedArtist{
		{SourceCode: "tm", SourceArtistID: "a-50", Name: "Helena Hauff",
			Bio: "Hamburg based DJ and producer."},
	})
	assert.Equal(t, 1, second.Matched)

	stored, err := ds.GetScrapedArtist("tm", "a-50")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityArtist, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	a, err := ds.GetArtist(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "Hamburg based DJ and producer.", a.Bio)
}

type stubSearcher struct {
	info *enrichment.ArtistInfo
}

func (s stubSearcher) SearchArtist(_ context.Context, _ string) (*enrichment.ArtistInfo, error) {
	return s.info, nil
}

type stubSummarizer struct {
	summary *enrichment.Summary
}

func (s stubSummarizer) Summary(_ context.Context, _ string) (*enrichment.Summary, error) {
	return s.summary, nil
}

func TestIngestArtistsEnrichesNewCanonical(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)
	p.SetEnrichment(
		stubSearcher{info: &enrichment.ArtistInfo{
			Name: "Helena Hauff", Country: "DE", Type: "Person",
			Genres: []string{"electro", "techno"},
		}},
		stubSummarizer{summary: &enrichment.Summary{
			Title:   "Helena Hauff",
			Extract: "Helena Hauff is a German DJ.",
		}},
	)

	report := p.IngestArtists(context.Background(), []datastore.ScrapedArtist{
		{SourceCode: "ra", SourceArtistID: "a-1", Name: "Helena Hauff"},
	})
	require.Equal(t, 1, report.Created)

	stored, err := ds.GetScrapedArtist("ra", "a-1")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityArtist, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)

	a, err := ds.GetArtist(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "DE", a.Country)
	assert.Equal(t, "Person", a.ArtistType)
	assert.Equal(t, []string{"electro", "techno"}, a.Genres())
	assert.Equal(t, "Helena Hauff is a German DJ.", a.Bio)
}

func TestIngestArtistsEnrichmentNeverOverwrites(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)
	p.SetEnrichment(
		stubSearcher{info: &enrichment.ArtistInfo{Name: "Helena Hauff", Country: "XX"}},
		stubSummarizer{summary: nil},
	)

	report := p.IngestArtists(context.Background(), []datastore.ScrapedArtist{
		{SourceCode: "ra", SourceArtistID: "a-1", Name: "Helena Hauff", Country: "DE"},
	})
	require.Equal(t, 1, report.Created)

	stored, err := ds.GetScrapedArtist("ra", "a-1")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityArtist, stored.ID)
	require.NoError(t, err)

	a, err := ds.GetArtist(link.CanonicalID)
	require.NoError(t, err)
	assert.Equal(t, "DE", a.Country)
}

func TestIngestOrganizersCreate(t *testing.T) {
	t.Parallel()
	p, ds := newTestProcessor(t)

	report := p.IngestOrganizers(context.Background(), []datastore.ScrapedOrganizer{
		{SourceCode: "ra", SourceID: "o-1", Name: "Ostgut Ton"},
		{SourceCode: "ra", SourceID: "", Name: "No Key"},
	})
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Skipped)

	stored, err := ds.GetScrapedOrganizer("ra", "o-1")
	require.NoError(t, err)
	link, err := ds.GetLinkForScraped(datastore.EntityOrganizer, stored.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
}
