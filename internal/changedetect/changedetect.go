// Package changedetect computes structured diffs between the stored and the
// freshly scraped version of a source record. A diff entry is only reported
// when the incoming value is present and meaningfully different, so a source
// that stops sending a field can never erase data.
package changedetect

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tkoskela/scenefuse/internal/datastore"
)

// CoordinateEpsilon is the tolerance in degrees under which two coordinates
// count as identical. 0.0001 degrees is roughly ten meters, well below the
// precision scrapers agree on.
const CoordinateEpsilon = 0.0001

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
}

// NormalizeDate reduces a date string to YYYY-MM-DD. Input that matches no
// known layout comes back trimmed but otherwise untouched, so an odd format
// still compares stable against itself.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// NormalizeTime reduces a clock time string to HH:MM.
func NormalizeTime(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return s
}

// diff accumulates field changes for one record comparison.
type diff struct {
	changes map[string]datastore.FieldChange
}

func newDiff() *diff {
	return &diff{changes: map[string]datastore.FieldChange{}}
}

// stringField reports a change when the incoming value is non-empty and
// differs from the stored one after trimming.
func (d *diff) stringField(field, old, incoming string) {
	old = strings.TrimSpace(old)
	incoming = strings.TrimSpace(incoming)
	if incoming == "" || incoming == old {
		return
	}
	d.changes[field] = datastore.FieldChange{Old: old, New: incoming}
}

// normalizedField is stringField after running both sides through a
// normalizer, so format-only differences never register.
func (d *diff) normalizedField(field, old, incoming string, normalize func(string) string) {
	oldNorm := normalize(old)
	incomingNorm := normalize(incoming)
	if incomingNorm == "" || incomingNorm == oldNorm {
		return
	}
	d.changes[field] = datastore.FieldChange{Old: oldNorm, New: incomingNorm}
}

// floatField reports a change when the incoming value is non-zero and differs.
func (d *diff) floatField(field string, old, incoming float64) {
	if incoming == 0 || old == incoming {
		return
	}
	d.changes[field] = datastore.FieldChange{Old: old, New: incoming}
}

// coordinates reports latitude/longitude changes as a pair. An incoming
// (0, 0) is treated as missing, and shifts strictly below CoordinateEpsilon
// on both axes are noise, not changes.
func (d *diff) coordinates(latField, lonField string, oldLat, oldLon, newLat, newLon float64) {
	if newLat == 0 && newLon == 0 {
		return
	}
	if math.Abs(newLat-oldLat) < CoordinateEpsilon && math.Abs(newLon-oldLon) < CoordinateEpsilon {
		return
	}
	d.changes[latField] = datastore.FieldChange{Old: oldLat, New: newLat}
	d.changes[lonField] = datastore.FieldChange{Old: oldLon, New: newLon}
}

// stringList reports a change when the incoming list is non-empty and its
// sorted, trimmed contents differ from the stored list.
func (d *diff) stringList(field string, old, incoming []string) {
	incomingKey := listKey(incoming)
	if incomingKey == "" {
		return
	}
	if incomingKey == listKey(old) {
		return
	}
	d.changes[field] = datastore.FieldChange{Old: old, New: incoming}
}

func listKey(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}
	sort.Strings(cleaned)
	return strings.Join(cleaned, "\x00")
}

// DiffEvent compares the stored scraped event against the incoming scrape.
func DiffEvent(old, incoming *datastore.ScrapedEvent) (map[string]datastore.FieldChange, error) {
	d := newDiff()

	d.stringField(datastore.FieldTitle, old.Title, incoming.Title)
	d.normalizedField(datastore.FieldDate, old.Date, incoming.Date, NormalizeDate)
	d.normalizedField(datastore.FieldStartTime, old.StartTime, incoming.StartTime, NormalizeTime)
	d.normalizedField(datastore.FieldEndTime, old.EndTime, incoming.EndTime, NormalizeTime)
	d.stringField(datastore.FieldContentURL, old.ContentURL, incoming.ContentURL)
	d.stringField(datastore.FieldFlyerFront, old.FlyerFront, incoming.FlyerFront)
	d.stringField(datastore.FieldDescription, old.Description, incoming.Description)
	d.stringField(datastore.FieldVenueName, old.VenueName, incoming.VenueName)
	d.stringField("venue_address", old.VenueAddress, incoming.VenueAddress)
	d.stringField(datastore.FieldVenueCity, old.VenueCity, incoming.VenueCity)
	d.stringField("venue_country", old.VenueCountry, incoming.VenueCountry)
	d.coordinates("venue_latitude", "venue_longitude",
		old.VenueLatitude, old.VenueLongitude,
		incoming.VenueLatitude, incoming.VenueLongitude)
	d.floatField(datastore.FieldPriceMin, old.PriceMin, incoming.PriceMin)
	d.floatField(datastore.FieldPriceMax, old.PriceMax, incoming.PriceMax)
	d.stringField(datastore.FieldPriceCurrency, old.PriceCurrency, incoming.PriceCurrency)

	if err := d.eventArtists(old, incoming); err != nil {
		return nil, err
	}
	if err := d.eventOrganizers(old, incoming); err != nil {
		return nil, err
	}

	return d.changes, nil
}

// eventArtists compares the artist lists by name and genres, ignoring order.
func (d *diff) eventArtists(old, incoming *datastore.ScrapedEvent) error {
	oldRefs, err := old.Artists()
	if err != nil {
		return err
	}
	incomingRefs, err := incoming.Artists()
	if err != nil {
		return err
	}
	if len(incomingRefs) == 0 {
		return nil
	}
	if artistListKey(incomingRefs) == artistListKey(oldRefs) {
		return nil
	}
	d.changes["artists"] = datastore.FieldChange{Old: oldRefs, New: incomingRefs}
	return nil
}

func artistListKey(refs []datastore.EventArtistRef) string {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		keys = append(keys, strings.ToLower(strings.TrimSpace(ref.Name))+"|"+listKey(ref.Genres))
	}
	sort.Strings(keys)
	return strings.Join(keys, "\x00")
}

// eventOrganizers compares the organizer lists by name, ignoring order.
func (d *diff) eventOrganizers(old, incoming *datastore.ScrapedEvent) error {
	oldRefs, err := old.Organizers()
	if err != nil {
		return err
	}
	incomingRefs, err := incoming.Organizers()
	if err != nil {
		return err
	}
	if len(incomingRefs) == 0 {
		return nil
	}
	if organizerListKey(incomingRefs) == organizerListKey(oldRefs) {
		return nil
	}
	d.changes["organizers"] = datastore.FieldChange{Old: oldRefs, New: incomingRefs}
	return nil
}

func organizerListKey(refs []datastore.EventOrganizerRef) string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	return listKey(names)
}

// DiffVenue compares the stored scraped venue against the incoming scrape.
func DiffVenue(old, incoming *datastore.ScrapedVenue) map[string]datastore.FieldChange {
	d := newDiff()

	d.stringField(datastore.FieldName, old.Name, incoming.Name)
	d.stringField(datastore.FieldAddress, old.Address, incoming.Address)
	d.stringField(datastore.FieldCity, old.City, incoming.City)
	d.stringField(datastore.FieldCountry, old.Country, incoming.Country)
	d.coordinates(datastore.FieldLatitude, datastore.FieldLongitude,
		old.Latitude, old.Longitude, incoming.Latitude, incoming.Longitude)
	d.stringField(datastore.FieldContentURL, old.ContentURL, incoming.ContentURL)
	d.stringField(datastore.FieldDescription, old.Description, incoming.Description)

	return d.changes
}

// DiffArtist compares the stored scraped artist against the incoming scrape.
func DiffArtist(old, incoming *datastore.ScrapedArtist) map[string]datastore.FieldChange {
	d := newDiff()

	d.stringField(datastore.FieldName, old.Name, incoming.Name)
	d.stringField(datastore.FieldCountry, old.Country, incoming.Country)
	d.stringField(datastore.FieldArtistType, old.ArtistType, incoming.ArtistType)
	d.stringList(datastore.FieldGenres, old.Genres(), incoming.Genres())
	d.stringField(datastore.FieldImageURL, old.ImageURL, incoming.ImageURL)
	d.stringField(datastore.FieldContentURL, old.ContentURL, incoming.ContentURL)
	d.stringField(datastore.FieldBio, old.Bio, incoming.Bio)
	d.stringField(datastore.FieldWebsite, old.Website, incoming.Website)
	d.stringField(datastore.FieldInstagram, old.Instagram, incoming.Instagram)
	d.stringField(datastore.FieldSoundCloud, old.SoundCloud, incoming.SoundCloud)

	return d.changes
}

// DiffOrganizer compares the stored scraped organizer against the incoming scrape.
func DiffOrganizer(old, incoming *datastore.ScrapedOrganizer) map[string]datastore.FieldChange {
	d := newDiff()

	d.stringField(datastore.FieldName, old.Name, incoming.Name)
	d.stringField(datastore.FieldDescription, old.Description, incoming.Description)
	d.stringField(datastore.FieldImageURL, old.ImageURL, incoming.ImageURL)
	d.stringField(datastore.FieldURL, old.URL, incoming.URL)

	return d.changes
}
