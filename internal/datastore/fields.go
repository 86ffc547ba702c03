// fields.go maps between canonical entity structs and the named field sets
// consumed by the fusion engine and the auto-apply workflow.
package datastore

// Fused field names per entity kind. These are the keys that appear in
// field_sources provenance maps and structured diffs.
const (
	FieldTitle         = "title"
	FieldName          = "name"
	FieldDate          = "date"
	FieldStartTime     = "start_time"
	FieldEndTime       = "end_time"
	FieldEndDate       = "end_date"
	FieldContentURL    = "content_url"
	FieldFlyerFront    = "flyer_front"
	FieldDescription   = "description"
	FieldVenueName     = "venue_name"
	FieldVenueCity     = "venue_city"
	FieldPriceMin      = "price_min"
	FieldPriceMax      = "price_max"
	FieldPriceCurrency = "price_currency"
	FieldAddress       = "address"
	FieldPostalCode    = "postal_code"
	FieldCity          = "city"
	FieldCountry       = "country"
	FieldLatitude      = "latitude"
	FieldLongitude     = "longitude"
	FieldArtistType    = "artist_type"
	FieldGenres        = "genres"
	FieldImageURL      = "image_url"
	FieldBio           = "bio"
	FieldWebsite       = "website"
	FieldInstagram     = "instagram"
	FieldSoundCloud    = "soundcloud"
	FieldURL           = "url"
)

// EventFields is the fusable field set of a canonical event.
var EventFields = []string{
	FieldTitle, FieldDate, FieldStartTime, FieldEndTime, FieldEndDate,
	FieldContentURL, FieldFlyerFront, FieldDescription,
	FieldVenueName, FieldVenueCity,
	FieldPriceMin, FieldPriceMax, FieldPriceCurrency,
}

// VenueFields is the fusable field set of a canonical venue.
var VenueFields = []string{
	FieldName, FieldAddress, FieldPostalCode, FieldCity, FieldCountry,
	FieldLatitude, FieldLongitude, FieldContentURL, FieldDescription,
}

// ArtistFields is the fusable field set of a canonical artist.
var ArtistFields = []string{
	FieldName, FieldCountry, FieldArtistType, FieldGenres,
	FieldImageURL, FieldContentURL, FieldBio,
	FieldWebsite, FieldInstagram, FieldSoundCloud,
}

// OrganizerFields is the fusable field set of a canonical organizer.
var OrganizerFields = []string{
	FieldName, FieldDescription, FieldImageURL, FieldURL,
}

// Headline field sets: the coarse diff computed by the refresher is
// restricted to these fields when deciding whether to append an audit entry.
var (
	EventHeadlineFields     = []string{FieldTitle, FieldDate, FieldStartTime, FieldVenueName}
	VenueHeadlineFields     = []string{FieldName, FieldCity}
	ArtistHeadlineFields    = []string{FieldName}
	OrganizerHeadlineFields = []string{FieldName}
)

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch f := v.(type) {
	case float64:
		return f
	case float32:
		return float64(f)
	case int:
		return float64(f)
	}
	return 0
}

// FieldValue returns the event's current value for a named field, or nil if
// the name is unknown.
func (e *Event) FieldValue(field string) any {
	switch field {
	case FieldTitle:
		return e.Title
	case FieldDate:
		return e.Date
	case FieldStartTime:
		return e.StartTime
	case FieldEndTime:
		return e.EndTime
	case FieldEndDate:
		return e.EndDate
	case FieldContentURL:
		return e.ContentURL
	case FieldFlyerFront:
		return e.FlyerFront
	case FieldDescription:
		return e.Description
	case FieldVenueName:
		return e.VenueName
	case FieldVenueCity:
		return e.VenueCity
	case FieldPriceMin:
		return e.PriceMin
	case FieldPriceMax:
		return e.PriceMax
	case FieldPriceCurrency:
		return e.PriceCurrency
	}
	return nil
}

// ApplyField sets a named field on the event. Unknown names are ignored.
func (e *Event) ApplyField(field string, v any) {
	switch field {
	case FieldTitle:
		e.Title = asString(v)
	case FieldDate:
		e.Date = asString(v)
	case FieldStartTime:
		e.StartTime = asString(v)
	case FieldEndTime:
		e.EndTime = asString(v)
	case FieldEndDate:
		e.EndDate = asString(v)
	case FieldContentURL:
		e.ContentURL = asString(v)
	case FieldFlyerFront:
		e.FlyerFront = asString(v)
	case FieldDescription:
		e.Description = asString(v)
	case FieldVenueName:
		e.VenueName = asString(v)
	case FieldVenueCity:
		e.VenueCity = asString(v)
	case FieldPriceMin:
		e.PriceMin = asFloat(v)
	case FieldPriceMax:
		e.PriceMax = asFloat(v)
	case FieldPriceCurrency:
		e.PriceCurrency = asString(v)
	}
}

// FieldValue returns the venue's current value for a named field.
func (vn *Venue) FieldValue(field string) any {
	switch field {
	case FieldName:
		return vn.Name
	case FieldAddress:
		return vn.Address
	case FieldPostalCode:
		return vn.PostalCode
	case FieldCity:
		return vn.City
	case FieldCountry:
		return vn.Country
	case FieldLatitude:
		return vn.Latitude
	case FieldLongitude:
		return vn.Longitude
	case FieldContentURL:
		return vn.ContentURL
	case FieldDescription:
		return vn.Description
	}
	return nil
}

// ApplyField sets a named field on the venue. Unknown names are ignored.
func (vn *Venue) ApplyField(field string, v any) {
	switch field {
	case FieldName:
		vn.Name = asString(v)
	case FieldAddress:
		vn.Address = asString(v)
	case FieldPostalCode:
		vn.PostalCode = asString(v)
	case FieldCity:
		vn.City = asString(v)
	case FieldCountry:
		vn.Country = asString(v)
	case FieldLatitude:
		vn.Latitude = asFloat(v)
	case FieldLongitude:
		vn.Longitude = asFloat(v)
	case FieldContentURL:
		vn.ContentURL = asString(v)
	case FieldDescription:
		vn.Description = asString(v)
	}
}

// FieldValue returns the artist's current value for a named field.
func (a *Artist) FieldValue(field string) any {
	switch field {
	case FieldName:
		return a.Name
	case FieldCountry:
		return a.Country
	case FieldArtistType:
		return a.ArtistType
	case FieldGenres:
		return a.GenresJSON
	case FieldImageURL:
		return a.ImageURL
	case FieldContentURL:
		return a.ContentURL
	case FieldBio:
		return a.Bio
	case FieldWebsite:
		return a.Website
	case FieldInstagram:
		return a.Instagram
	case FieldSoundCloud:
		return a.SoundCloud
	}
	return nil
}

// ApplyField sets a named field on the artist. Unknown names are ignored.
func (a *Artist) ApplyField(field string, v any) {
	switch field {
	case FieldName:
		a.Name = asString(v)
	case FieldCountry:
		a.Country = asString(v)
	case FieldArtistType:
		a.ArtistType = asString(v)
	case FieldGenres:
		a.GenresJSON = asString(v)
	case FieldImageURL:
		a.ImageURL = asString(v)
	case FieldContentURL:
		a.ContentURL = asString(v)
	case FieldBio:
		a.Bio = asString(v)
	case FieldWebsite:
		a.Website = asString(v)
	case FieldInstagram:
		a.Instagram = asString(v)
	case FieldSoundCloud:
		a.SoundCloud = asString(v)
	}
}

// FieldValue returns the organizer's current value for a named field.
func (o *Organizer) FieldValue(field string) any {
	switch field {
	case FieldName:
		return o.Name
	case FieldDescription:
		return o.Description
	case FieldImageURL:
		return o.ImageURL
	case FieldURL:
		return o.URL
	}
	return nil
}

// ApplyField sets a named field on the organizer. Unknown names are ignored.
func (o *Organizer) ApplyField(field string, v any) {
	switch field {
	case FieldName:
		o.Name = asString(v)
	case FieldDescription:
		o.Description = asString(v)
	case FieldImageURL:
		o.ImageURL = asString(v)
	case FieldURL:
		o.URL = asString(v)
	}
}
