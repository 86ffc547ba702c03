package refresher

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/datastore"
)

var testPriorities = map[string]int{"ra": 2, "tm": 3}

func newTestRefresher(t *testing.T) (*Refresher, *datastore.SQLiteStore) {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.SQLite.Enabled = true
	settings.Database.SQLite.Path = ":memory:"

	ds := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, ds.Open())

	r := New(ds, testPriorities, audit.NewWriter(ds))
	r.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return r, ds
}

// linkScrapedEvent persists a scraped event and links it to the canonical id.
func linkScrapedEvent(t *testing.T, ds datastore.Interface, canonicalID uint, rec *datastore.ScrapedEvent) *datastore.SourceLink {
	t.Helper()
	require.NoError(t, ds.SaveScrapedEvent(rec))
	link := &datastore.SourceLink{
		EntityType:  datastore.EntityEvent,
		CanonicalID: canonicalID,
		ScrapedID:   rec.ID,
		IsPrimary:   true,
	}
	require.NoError(t, ds.CreateLink(link))
	got, err := ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	require.NoError(t, err)
	return got
}

func TestRefreshEventFusesByPriority(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	ev := &datastore.Event{Title: "stale", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveEvent(ev))

	linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-1",
		Title: "Klubnacht (Official)", Date: "2026-09-12", StartTime: "23:30",
		FlyerFront: "https://tm.example/flyer.jpg",
	})
	linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "Klubnacht", Date: "2026-09-12", StartTime: "23:00",
		VenueName: "Berghain", VenueCity: "Berlin",
	})

	require.NoError(t, r.RefreshEvent(ev.ID))

	got, err := ds.GetEvent(ev.ID)
	require.NoError(t, err)

	// ra (priority 2) wins contested fields; tm fills the gaps.
	assert.Equal(t, "Klubnacht", got.Title)
	assert.Equal(t, "23:00", got.StartTime)
	assert.Equal(t, "https://tm.example/flyer.jpg", got.FlyerFront)

	provenance := got.FieldSourceMap()
	assert.Equal(t, "ra", provenance[datastore.FieldTitle])
	assert.Equal(t, "tm", provenance[datastore.FieldFlyerFront])
}

func TestRefreshEventManualEditsSurviveRefresh(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	ev := &datastore.Event{Title: "Curated Title", Status: datastore.StatusPublished}
	ev.SetFieldSourceMap(map[string]string{datastore.FieldTitle: datastore.SourceManual})
	require.NoError(t, ds.SaveEvent(ev))

	linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "Scraped Title", Date: "2026-09-12",
	})

	require.NoError(t, r.RefreshEvent(ev.ID))

	got, err := ds.GetEvent(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curated Title", got.Title)
	assert.Equal(t, datastore.SourceManual, got.FieldSourceMap()[datastore.FieldTitle])
	// Non-manual fields still flow from the scrape.
	assert.Equal(t, "2026-09-12", got.Date)
	assert.Equal(t, "ra", got.FieldSourceMap()[datastore.FieldDate])
}

func TestRefreshEventKeepsValueNoSourceCanFill(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	ev := &datastore.Event{
		Title:       "Klubnacht",
		Description: "Only ever described once.",
		Status:      datastore.StatusDraftScraped,
	}
	ev.SetFieldSourceMap(map[string]string{datastore.FieldDescription: "wp"})
	require.NoError(t, ds.SaveEvent(ev))

	linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "Klubnacht", Date: "2026-09-12",
	})

	require.NoError(t, r.RefreshEvent(ev.ID))

	got, err := ds.GetEvent(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, "Only ever described once.", got.Description,
		"a field with no contributing source keeps its prior value")
	assert.Equal(t, "wp", got.FieldSourceMap()[datastore.FieldDescription])
}

func TestRefreshEventStampsContributingLinks(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	ev := &datastore.Event{Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveEvent(ev))

	contributing := linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "Klubnacht", Date: "2026-09-12",
	})
	// An entirely empty record contributes nothing.
	idle := linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "tm", SourceEventID: "tm-1",
	})

	require.NoError(t, r.RefreshEvent(ev.ID))

	gotContributing, err := ds.GetLinkForScraped(datastore.EntityEvent, contributing.ScrapedID)
	require.NoError(t, err)
	require.NotNil(t, gotContributing.LastSyncedAt)

	gotIdle, err := ds.GetLinkForScraped(datastore.EntityEvent, idle.ScrapedID)
	require.NoError(t, err)
	assert.Nil(t, gotIdle.LastSyncedAt)
}

func TestRefreshEventAuditsHeadlineChangesOnce(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	ev := &datastore.Event{Title: "Old Title", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveEvent(ev))
	linkScrapedEvent(t, ds, ev.ID, &datastore.ScrapedEvent{
		SourceCode: "ra", SourceEventID: "ra-1",
		Title: "New Title", Date: "2026-09-12", StartTime: "23:00",
	})

	require.NoError(t, r.RefreshEvent(ev.ID))

	entries, err := ds.GetAuditLog(datastore.EntityEvent, ev.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, datastore.AuditActionSystemUpdate, entries[0].Action)
	assert.Contains(t, entries[0].Changes, "New Title")

	// A second refresh changes nothing and must not append another entry.
	require.NoError(t, r.RefreshEvent(ev.ID))
	entries, err = ds.GetAuditLog(datastore.EntityEvent, ev.ID, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRefreshVenue(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	venue := &datastore.Venue{Name: "stale", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveVenue(venue))

	rec := &datastore.ScrapedVenue{
		SourceCode: "ra", SourceVenueID: "v-1",
		Name: "Berghain", City: "Berlin", Latitude: 52.5111, Longitude: 13.4399,
	}
	require.NoError(t, ds.SaveScrapedVenue(rec))
	require.NoError(t, ds.CreateLink(&datastore.SourceLink{
		EntityType: datastore.EntityVenue, CanonicalID: venue.ID, ScrapedID: rec.ID,
	}))

	require.NoError(t, r.RefreshVenue(venue.ID))

	got, err := ds.GetVenue(venue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Berghain", got.Name)
	assert.InDelta(t, 52.5111, got.Latitude, 1e-6)
	assert.Equal(t, "ra", got.FieldSourceMap()[datastore.FieldName])
}

func TestRefreshArtistMergesAcrossSources(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	artist := &datastore.Artist{Name: "Helena Hauff", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveArtist(artist))

	ra := &datastore.ScrapedArtist{
		SourceCode: "ra", SourceArtistID: "a-1",
		Name: "Helena Hauff", Country: "DE",
	}
	require.NoError(t, ds.SaveScrapedArtist(ra))
	require.NoError(t, ds.CreateLink(&datastore.SourceLink{
		EntityType: datastore.EntityArtist, CanonicalID: artist.ID, ScrapedID: ra.ID,
	}))

	mb := &datastore.ScrapedArtist{
		SourceCode: "mb", SourceArtistID: "a-2",
		Name: "Helena Hauff", Bio: "Hamburg-based DJ and producer.",
	}
	require.NoError(t, ds.SaveScrapedArtist(mb))
	require.NoError(t, ds.CreateLink(&datastore.SourceLink{
		EntityType: datastore.EntityArtist, CanonicalID: artist.ID, ScrapedID: mb.ID,
	}))

	require.NoError(t, r.RefreshArtist(artist.ID))

	got, err := ds.GetArtist(artist.ID)
	require.NoError(t, err)
	assert.Equal(t, "DE", got.Country)
	assert.Equal(t, "Hamburg-based DJ and producer.", got.Bio)
	assert.Equal(t, "mb", got.FieldSourceMap()[datastore.FieldBio])
}

func TestRefreshOrganizer(t *testing.T) {
	t.Parallel()
	r, ds := newTestRefresher(t)

	organizer := &datastore.Organizer{Name: "stale", Status: datastore.StatusDraftScraped}
	require.NoError(t, ds.SaveOrganizer(organizer))

	rec := &datastore.ScrapedOrganizer{
		SourceCode: "ra", SourceID: "o-1",
		Name: "Ostgut Ton", URL: "https://ostgut.de",
	}
	require.NoError(t, ds.SaveScrapedOrganizer(rec))
	require.NoError(t, ds.CreateLink(&datastore.SourceLink{
		EntityType: datastore.EntityOrganizer, CanonicalID: organizer.ID, ScrapedID: rec.ID,
	}))

	require.NoError(t, r.RefreshOrganizer(organizer.ID))

	got, err := ds.GetOrganizer(organizer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ostgut Ton", got.Name)
	assert.Equal(t, "https://ostgut.de", got.URL)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	t.Parallel()

	km := newKeyedMutex()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("event:1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)

	km.mu.Lock()
	assert.Empty(t, km.locks, "released keys must not leak entries")
	km.mu.Unlock()
}
