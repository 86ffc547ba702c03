// model.go defines the scraped-record and canonical-entity data model.
package datastore

import (
	"encoding/json"
	"time"
)

// Entity type discriminators used by SourceLink and AuditLogEntry.
const (
	EntityEvent     = "event"
	EntityVenue     = "venue"
	EntityArtist    = "artist"
	EntityOrganizer = "organizer"
)

// Canonical entity lifecycle statuses. Only Draft vs non-Draft matters to the
// auto-apply gate; the rest exist for the review workflow that consumes them.
const (
	StatusDraftScraped = "draft_scraped" // freshly created from a scrape
	StatusDraftManual  = "draft_manual"  // freshly created by hand
	StatusInReview     = "in_review"
	StatusPublished    = "published"
	StatusArchived     = "archived"
)

// IsDraftStatus reports whether a canonical entity is still in a draft state,
// meaning incoming source changes are applied without review.
func IsDraftStatus(status string) bool {
	return status == StatusDraftScraped || status == StatusDraftManual
}

// Event publish statuses.
const (
	PublishPending  = "pending"
	PublishApproved = "approved"
	PublishRejected = "rejected"
)

// Audit log actions.
const (
	AuditActionCreate        = "CREATE"
	AuditActionSystemUpdate  = "SYSTEM_UPDATE"
	AuditActionAutoRejection = "AUTO_REJECTION"
)

// SourceManual is the code of the synthetic manual pseudo-source. It always
// fuses at priority 1 so user edits win over every scraped source.
const SourceManual = "manual"

// FieldChange is one entry in a structured diff: the normalized old and new
// value of a single field.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// EventArtistRef is one artist entry in a scraped event's artist list.
type EventArtistRef struct {
	Name           string   `json:"name"`
	SourceArtistID string   `json:"source_artist_id,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	ImageURL       string   `json:"image_url,omitempty"`
	ContentURL     string   `json:"content_url,omitempty"`
}

// EventOrganizerRef is one organizer entry in a scraped event's organizer list.
type EventOrganizerRef struct {
	Name              string `json:"name"`
	SourceOrganizerID string `json:"source_organizer_id,omitempty"`
	Description       string `json:"description,omitempty"`
	ContentURL        string `json:"content_url,omitempty"`
}

// ProcessingError is one entry in a scraped record's processing audit trail.
type ProcessingError struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// ScrapedEvent is one source's version of an event, keyed by
// (source_code, source_event_id). RawData is the opaque source payload; core
// logic never parses it.
type ScrapedEvent struct {
	ID               uint   `gorm:"primaryKey"`
	SourceCode       string `gorm:"uniqueIndex:idx_scraped_events_source;not null"`
	SourceEventID    string `gorm:"uniqueIndex:idx_scraped_events_source;not null"`
	Title            string
	Date             string `gorm:"index:idx_scraped_events_date"` // YYYY-MM-DD
	StartTime        string // HH:MM
	EndTime          string
	ContentURL       string
	FlyerFront       string
	Description      string `gorm:"type:text"`
	VenueName        string
	VenueAddress     string
	VenueCity        string
	VenueCountry     string
	VenueLatitude    float64
	VenueLongitude   float64
	ArtistsJSON      string `gorm:"type:text"`
	OrganizersJSON   string `gorm:"type:text"`
	PriceMin         float64
	PriceMax         float64
	PriceCurrency    string
	RawData          string `gorm:"type:text"`
	HasChanges       bool   `gorm:"index"`
	Changes          string `gorm:"type:text"`
	IsDismissed      bool
	ProcessingErrors string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScrapedVenue is one source's version of a venue.
type ScrapedVenue struct {
	ID               uint   `gorm:"primaryKey"`
	SourceCode       string `gorm:"uniqueIndex:idx_scraped_venues_source;not null"`
	SourceVenueID    string `gorm:"uniqueIndex:idx_scraped_venues_source;not null"`
	Name             string
	Address          string
	City             string
	Country          string
	Latitude         float64
	Longitude        float64
	ContentURL       string
	Description      string `gorm:"type:text"`
	RawData          string `gorm:"type:text"`
	HasChanges       bool
	Changes          string `gorm:"type:text"`
	ProcessingErrors string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScrapedArtist is one source's version of an artist.
type ScrapedArtist struct {
	ID               uint   `gorm:"primaryKey"`
	SourceCode       string `gorm:"uniqueIndex:idx_scraped_artists_source;not null"`
	SourceArtistID   string `gorm:"uniqueIndex:idx_scraped_artists_source;not null"`
	Name             string
	Country          string
	ArtistType       string
	GenresJSON       string `gorm:"type:text"`
	ImageURL         string
	ContentURL       string
	Bio              string `gorm:"type:text"`
	Website          string
	Instagram        string
	SoundCloud       string
	RawData          string `gorm:"type:text"`
	HasChanges       bool
	Changes          string `gorm:"type:text"`
	ProcessingErrors string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScrapedOrganizer is one source's version of an organizer.
type ScrapedOrganizer struct {
	ID               uint   `gorm:"primaryKey"`
	SourceCode       string `gorm:"uniqueIndex:idx_scraped_organizers_source;not null"`
	SourceID         string `gorm:"uniqueIndex:idx_scraped_organizers_source;not null"`
	Name             string
	Description      string `gorm:"type:text"`
	ImageURL         string
	URL              string
	RawData          string `gorm:"type:text"`
	HasChanges       bool
	Changes          string `gorm:"type:text"`
	ProcessingErrors string `gorm:"type:text"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Event is the canonical record for one real-world event. FieldSources maps
// each fused field to the source code that contributed it and is rebuilt
// wholesale on every refresh.
type Event struct {
	ID            uint   `gorm:"primaryKey"`
	Title         string `gorm:"index:idx_events_title"`
	Date          string `gorm:"index:idx_events_date"`
	StartTime     string
	EndTime       string
	EndDate       string // differs from Date for overnight events
	ContentURL    string
	FlyerFront    string
	Description   string `gorm:"type:text"`
	VenueID       *uint  `gorm:"index"`
	VenueName     string
	VenueCity     string
	PriceMin      float64
	PriceMax      float64
	PriceCurrency string
	Artists       []Artist    `gorm:"many2many:event_artists"`
	Organizers    []Organizer `gorm:"many2many:event_organizers"`
	FieldSources  string      `gorm:"type:text"`
	Status        string      `gorm:"index"`
	PublishStatus string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Venue is the canonical record for one real-world venue.
type Venue struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"index:idx_venues_name"`
	Address      string
	PostalCode   string
	City         string `gorm:"index:idx_venues_city"`
	Country      string
	Latitude     float64
	Longitude    float64
	ContentURL   string
	Description  string `gorm:"type:text"`
	FieldSources string `gorm:"type:text"`
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Artist is the canonical record for one real-world artist.
type Artist struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"index:idx_artists_name"`
	Country      string
	ArtistType   string
	GenresJSON   string `gorm:"type:text"`
	ImageURL     string
	ContentURL   string
	Bio          string `gorm:"type:text"`
	Website      string
	Instagram    string
	SoundCloud   string
	FieldSources string `gorm:"type:text"`
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Organizer is the canonical record for one real-world organizer.
type Organizer struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"index:idx_organizers_name"`
	Description  string `gorm:"type:text"`
	ImageURL     string
	URL          string
	FieldSources string `gorm:"type:text"`
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SourceLink associates a canonical entity with a scraped record. The unique
// index on (entity_type, scraped_id) enforces at most one link per scraped
// record; a canonical entity may fan in many links.
type SourceLink struct {
	ID              uint   `gorm:"primaryKey"`
	EntityType      string `gorm:"uniqueIndex:idx_source_links_scraped;index:idx_source_links_canonical;not null"`
	CanonicalID     uint   `gorm:"index:idx_source_links_canonical;not null"`
	ScrapedID       uint   `gorm:"uniqueIndex:idx_source_links_scraped;not null"`
	MatchConfidence float64
	IsPrimary       bool
	LastSyncedAt    *time.Time
	CreatedAt       time.Time
}

// AuditLogEntry is an append-only record of a system-driven mutation.
type AuditLogEntry struct {
	ID          uint   `gorm:"primaryKey"`
	EntityType  string `gorm:"index:idx_audit_entity"`
	EntityID    uint   `gorm:"index:idx_audit_entity"`
	Action      string
	Changes     string `gorm:"type:text"`
	PerformedBy string
	CreatedAt   time.Time `gorm:"index"`
}

// --- JSON column helpers ---

// Artists decodes the scraped event's artist list. An empty column yields nil.
func (e *ScrapedEvent) Artists() ([]EventArtistRef, error) {
	if e.ArtistsJSON == "" {
		return nil, nil
	}
	var refs []EventArtistRef
	if err := json.Unmarshal([]byte(e.ArtistsJSON), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// SetArtists encodes the artist list into the JSON column.
func (e *ScrapedEvent) SetArtists(refs []EventArtistRef) error {
	if len(refs) == 0 {
		e.ArtistsJSON = ""
		return nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	e.ArtistsJSON = string(data)
	return nil
}

// Organizers decodes the scraped event's organizer list.
func (e *ScrapedEvent) Organizers() ([]EventOrganizerRef, error) {
	if e.OrganizersJSON == "" {
		return nil, nil
	}
	var refs []EventOrganizerRef
	if err := json.Unmarshal([]byte(e.OrganizersJSON), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// SetOrganizers encodes the organizer list into the JSON column.
func (e *ScrapedEvent) SetOrganizers(refs []EventOrganizerRef) error {
	if len(refs) == 0 {
		e.OrganizersJSON = ""
		return nil
	}
	data, err := json.Marshal(refs)
	if err != nil {
		return err
	}
	e.OrganizersJSON = string(data)
	return nil
}

// decodeChangeMap decodes a structured diff column.
func decodeChangeMap(raw string) (map[string]FieldChange, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]FieldChange
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// encodeChangeMap encodes a structured diff for persistence. An empty map
// encodes to the empty string.
func encodeChangeMap(m map[string]FieldChange) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ChangeMap decodes the pending structured diff.
func (e *ScrapedEvent) ChangeMap() (map[string]FieldChange, error) { return decodeChangeMap(e.Changes) }

// SetChangeMap stores the structured diff and keeps HasChanges consistent.
func (e *ScrapedEvent) SetChangeMap(m map[string]FieldChange) error {
	raw, err := encodeChangeMap(m)
	if err != nil {
		return err
	}
	e.Changes = raw
	e.HasChanges = len(m) > 0
	return nil
}

// ChangeMap decodes the pending structured diff.
func (v *ScrapedVenue) ChangeMap() (map[string]FieldChange, error) { return decodeChangeMap(v.Changes) }

// SetChangeMap stores the structured diff and keeps HasChanges consistent.
func (v *ScrapedVenue) SetChangeMap(m map[string]FieldChange) error {
	raw, err := encodeChangeMap(m)
	if err != nil {
		return err
	}
	v.Changes = raw
	v.HasChanges = len(m) > 0
	return nil
}

// ChangeMap decodes the pending structured diff.
func (a *ScrapedArtist) ChangeMap() (map[string]FieldChange, error) { return decodeChangeMap(a.Changes) }

// SetChangeMap stores the structured diff and keeps HasChanges consistent.
func (a *ScrapedArtist) SetChangeMap(m map[string]FieldChange) error {
	raw, err := encodeChangeMap(m)
	if err != nil {
		return err
	}
	a.Changes = raw
	a.HasChanges = len(m) > 0
	return nil
}

// ChangeMap decodes the pending structured diff.
func (o *ScrapedOrganizer) ChangeMap() (map[string]FieldChange, error) {
	return decodeChangeMap(o.Changes)
}

// SetChangeMap stores the structured diff and keeps HasChanges consistent.
func (o *ScrapedOrganizer) SetChangeMap(m map[string]FieldChange) error {
	raw, err := encodeChangeMap(m)
	if err != nil {
		return err
	}
	o.Changes = raw
	o.HasChanges = len(m) > 0
	return nil
}

// appendProcessingError appends one entry to a processing trail column.
func appendProcessingError(raw, stage, message string) string {
	var trail []ProcessingError
	if raw != "" {
		// A corrupt trail is replaced rather than blocking the append.
		_ = json.Unmarshal([]byte(raw), &trail)
	}
	trail = append(trail, ProcessingError{Stage: stage, Message: message, At: time.Now().UTC()})
	data, err := json.Marshal(trail)
	if err != nil {
		return raw
	}
	return string(data)
}

// AppendProcessingError records a per-record failure for operator visibility.
func (e *ScrapedEvent) AppendProcessingError(stage, message string) {
	e.ProcessingErrors = appendProcessingError(e.ProcessingErrors, stage, message)
}

// AppendProcessingError records a per-record failure for operator visibility.
func (v *ScrapedVenue) AppendProcessingError(stage, message string) {
	v.ProcessingErrors = appendProcessingError(v.ProcessingErrors, stage, message)
}

// AppendProcessingError records a per-record failure for operator visibility.
func (a *ScrapedArtist) AppendProcessingError(stage, message string) {
	a.ProcessingErrors = appendProcessingError(a.ProcessingErrors, stage, message)
}

// AppendProcessingError records a per-record failure for operator visibility.
func (o *ScrapedOrganizer) AppendProcessingError(stage, message string) {
	o.ProcessingErrors = appendProcessingError(o.ProcessingErrors, stage, message)
}

// decodeFieldSources decodes a field provenance column.
func decodeFieldSources(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return map[string]string{}
	}
	return m
}

// encodeFieldSources encodes field provenance for persistence.
func encodeFieldSources(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	data, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}

// FieldSourceMap decodes the event's field provenance.
func (e *Event) FieldSourceMap() map[string]string { return decodeFieldSources(e.FieldSources) }

// SetFieldSourceMap overwrites the event's field provenance wholesale.
func (e *Event) SetFieldSourceMap(m map[string]string) { e.FieldSources = encodeFieldSources(m) }

// FieldSourceMap decodes the venue's field provenance.
func (v *Venue) FieldSourceMap() map[string]string { return decodeFieldSources(v.FieldSources) }

// SetFieldSourceMap overwrites the venue's field provenance wholesale.
func (v *Venue) SetFieldSourceMap(m map[string]string) { v.FieldSources = encodeFieldSources(m) }

// FieldSourceMap decodes the artist's field provenance.
func (a *Artist) FieldSourceMap() map[string]string { return decodeFieldSources(a.FieldSources) }

// SetFieldSourceMap overwrites the artist's field provenance wholesale.
func (a *Artist) SetFieldSourceMap(m map[string]string) { a.FieldSources = encodeFieldSources(m) }

// FieldSourceMap decodes the organizer's field provenance.
func (o *Organizer) FieldSourceMap() map[string]string { return decodeFieldSources(o.FieldSources) }

// SetFieldSourceMap overwrites the organizer's field provenance wholesale.
func (o *Organizer) SetFieldSourceMap(m map[string]string) { o.FieldSources = encodeFieldSources(m) }

// Genres decodes the artist's genre list.
func (a *Artist) Genres() []string {
	if a.GenresJSON == "" {
		return nil
	}
	var genres []string
	if err := json.Unmarshal([]byte(a.GenresJSON), &genres); err != nil {
		return nil
	}
	return genres
}

// SetGenres encodes the genre list into the JSON column.
func (a *Artist) SetGenres(genres []string) {
	if len(genres) == 0 {
		a.GenresJSON = ""
		return
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return
	}
	a.GenresJSON = string(data)
}

// Genres decodes the scraped artist's genre list.
func (a *ScrapedArtist) Genres() []string {
	if a.GenresJSON == "" {
		return nil
	}
	var genres []string
	if err := json.Unmarshal([]byte(a.GenresJSON), &genres); err != nil {
		return nil
	}
	return genres
}

// SetGenres encodes the genre list into the JSON column.
func (a *ScrapedArtist) SetGenres(genres []string) {
	if len(genres) == 0 {
		a.GenresJSON = ""
		return
	}
	data, err := json.Marshal(genres)
	if err != nil {
		return
	}
	a.GenresJSON = string(data)
}
