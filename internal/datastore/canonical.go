// canonical.go implements persistence for canonical entities and the
// candidate-narrowing queries used by the matchers.
package datastore

import (
	"strings"
)

// --- Events ---

// GetEvent fetches a canonical event with its artist and organizer links.
func (ds *DataStore) GetEvent(id uint) (*Event, error) {
	var ev Event
	if err := ds.DB.Preload("Artists").Preload("Organizers").First(&ev, id).Error; err != nil {
		return nil, dbError(err, "get-event")
	}
	return &ev, nil
}

// SaveEvent creates or updates a canonical event.
func (ds *DataStore) SaveEvent(ev *Event) error {
	if err := ds.DB.Save(ev).Error; err != nil {
		return dbError(err, "save-event")
	}
	return nil
}

// EventCandidatesByDate returns canonical events on the given calendar date.
// City and venue-name narrowing happens in the matcher: a portable date-only
// query keeps the SQL identical across SQLite and MySQL, and one day of
// events is a small candidate set.
func (ds *DataStore) EventCandidatesByDate(date string) ([]Event, error) {
	var events []Event
	if err := ds.DB.Where("date = ?", date).Find(&events).Error; err != nil {
		return nil, dbError(err, "event-candidates-by-date")
	}
	return events, nil
}

// --- Venues ---

// GetVenue fetches a canonical venue by primary key.
func (ds *DataStore) GetVenue(id uint) (*Venue, error) {
	var v Venue
	if err := ds.DB.First(&v, id).Error; err != nil {
		return nil, dbError(err, "get-venue")
	}
	return &v, nil
}

// SaveVenue creates or updates a canonical venue.
func (ds *DataStore) SaveVenue(v *Venue) error {
	if err := ds.DB.Save(v).Error; err != nil {
		return dbError(err, "save-venue")
	}
	return nil
}

// FindVenueByNameCity looks up a canonical venue by case-insensitive
// (name, city) equality. Missing rows return (nil, nil).
func (ds *DataStore) FindVenueByNameCity(name, city string) (*Venue, error) {
	var v Venue
	err := ds.DB.Where("LOWER(name) = LOWER(?) AND LOWER(city) = LOWER(?)", name, city).
		First(&v).Error
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, dbError(err, "find-venue-by-name-city")
	}
	return &v, nil
}

// VenueCandidates returns canonical venues in the given city, or all venues
// when no city is known.
func (ds *DataStore) VenueCandidates(city string) ([]Venue, error) {
	var venues []Venue
	q := ds.DB
	if strings.TrimSpace(city) != "" {
		q = q.Where("LOWER(city) = LOWER(?)", city)
	}
	if err := q.Find(&venues).Error; err != nil {
		return nil, dbError(err, "venue-candidates")
	}
	return venues, nil
}

// --- Artists ---

// GetArtist fetches a canonical artist by primary key.
func (ds *DataStore) GetArtist(id uint) (*Artist, error) {
	var a Artist
	if err := ds.DB.First(&a, id).Error; err != nil {
		return nil, dbError(err, "get-artist")
	}
	return &a, nil
}

// SaveArtist creates or updates a canonical artist.
func (ds *DataStore) SaveArtist(a *Artist) error {
	if err := ds.DB.Save(a).Error; err != nil {
		return dbError(err, "save-artist")
	}
	return nil
}

// ArtistCandidates returns canonical artists whose name shares the first
// token of the given name, case-insensitively. The similarity scorer does the
// real ranking; this only trims the scan.
func (ds *DataStore) ArtistCandidates(name string) ([]Artist, error) {
	token := firstToken(name)
	if token == "" {
		return nil, nil
	}
	var artists []Artist
	err := ds.DB.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(token)+"%").
		Find(&artists).Error
	if err != nil {
		return nil, dbError(err, "artist-candidates")
	}
	return artists, nil
}

// --- Organizers ---

// GetOrganizer fetches a canonical organizer by primary key.
func (ds *DataStore) GetOrganizer(id uint) (*Organizer, error) {
	var o Organizer
	if err := ds.DB.First(&o, id).Error; err != nil {
		return nil, dbError(err, "get-organizer")
	}
	return &o, nil
}

// SaveOrganizer creates or updates a canonical organizer.
func (ds *DataStore) SaveOrganizer(o *Organizer) error {
	if err := ds.DB.Save(o).Error; err != nil {
		return dbError(err, "save-organizer")
	}
	return nil
}

// OrganizerCandidates returns canonical organizers whose name shares the
// first token of the given name.
func (ds *DataStore) OrganizerCandidates(name string) ([]Organizer, error) {
	token := firstToken(name)
	if token == "" {
		return nil, nil
	}
	var organizers []Organizer
	err := ds.DB.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(token)+"%").
		Find(&organizers).Error
	if err != nil {
		return nil, dbError(err, "organizer-candidates")
	}
	return organizers, nil
}

// firstToken returns the first whitespace-delimited token of s.
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
