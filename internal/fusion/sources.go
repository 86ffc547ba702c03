// sources.go builds fusion sources from scraped records and from the manual
// edits recorded on a canonical entity.
package fusion

import (
	"time"

	"github.com/tkoskela/scenefuse/internal/datastore"
)

// Entity is the part of a canonical record the manual-source synthesis needs:
// current field values plus the provenance map from the last fusion run.
type Entity interface {
	FieldValue(field string) any
	FieldSourceMap() map[string]string
}

// ManualSource reconstructs the synthetic manual source from a canonical
// entity: every field whose recorded provenance is the manual code re-enters
// fusion at ManualPriority with its current value. Returns false when the
// entity carries no manual edits.
func ManualSource(entity Entity, fields []string) (Source, bool) {
	provenance := entity.FieldSourceMap()
	values := make(map[string]any)
	for _, field := range fields {
		if provenance[field] != datastore.SourceManual {
			continue
		}
		v := entity.FieldValue(field)
		if IsEmpty(v) {
			continue
		}
		values[field] = v
	}
	if len(values) == 0 {
		return Source{}, false
	}
	return Source{Code: datastore.SourceManual, Priority: ManualPriority, Fields: values}, true
}

// EventSource adapts a scraped event into a fusion source.
func EventSource(rec *datastore.ScrapedEvent, priority int) Source {
	return Source{
		Code:     rec.SourceCode,
		Priority: priority,
		Fields: map[string]any{
			datastore.FieldTitle:         rec.Title,
			datastore.FieldDate:          rec.Date,
			datastore.FieldStartTime:     rec.StartTime,
			datastore.FieldEndTime:       rec.EndTime,
			datastore.FieldEndDate:       EndDateFor(rec.Date, rec.StartTime, rec.EndTime),
			datastore.FieldContentURL:    rec.ContentURL,
			datastore.FieldFlyerFront:    rec.FlyerFront,
			datastore.FieldDescription:   rec.Description,
			datastore.FieldVenueName:     rec.VenueName,
			datastore.FieldVenueCity:     rec.VenueCity,
			datastore.FieldPriceMin:      rec.PriceMin,
			datastore.FieldPriceMax:      rec.PriceMax,
			datastore.FieldPriceCurrency: rec.PriceCurrency,
		},
	}
}

// VenueSource adapts a scraped venue into a fusion source.
func VenueSource(rec *datastore.ScrapedVenue, priority int) Source {
	return Source{
		Code:     rec.SourceCode,
		Priority: priority,
		Fields: map[string]any{
			datastore.FieldName:        rec.Name,
			datastore.FieldAddress:     rec.Address,
			datastore.FieldCity:        rec.City,
			datastore.FieldCountry:     rec.Country,
			datastore.FieldLatitude:    rec.Latitude,
			datastore.FieldLongitude:   rec.Longitude,
			datastore.FieldContentURL:  rec.ContentURL,
			datastore.FieldDescription: rec.Description,
		},
	}
}

// ArtistSource adapts a scraped artist into a fusion source.
func ArtistSource(rec *datastore.ScrapedArtist, priority int) Source {
	return Source{
		Code:     rec.SourceCode,
		Priority: priority,
		Fields: map[string]any{
			datastore.FieldName:       rec.Name,
			datastore.FieldCountry:    rec.Country,
			datastore.FieldArtistType: rec.ArtistType,
			datastore.FieldGenres:     rec.GenresJSON,
			datastore.FieldImageURL:   rec.ImageURL,
			datastore.FieldContentURL: rec.ContentURL,
			datastore.FieldBio:        rec.Bio,
			datastore.FieldWebsite:    rec.Website,
			datastore.FieldInstagram:  rec.Instagram,
			datastore.FieldSoundCloud: rec.SoundCloud,
		},
	}
}

// OrganizerSource adapts a scraped organizer into a fusion source.
func OrganizerSource(rec *datastore.ScrapedOrganizer, priority int) Source {
	return Source{
		Code:     rec.SourceCode,
		Priority: priority,
		Fields: map[string]any{
			datastore.FieldName:        rec.Name,
			datastore.FieldDescription: rec.Description,
			datastore.FieldImageURL:    rec.ImageURL,
			datastore.FieldURL:         rec.URL,
		},
	}
}

// EndDateFor derives an event's end date from its start date and the two
// clock times. An end time at or before the start time means the event runs
// past midnight, so the end date is the following day. Unparseable input
// yields an empty end date.
func EndDateFor(date, startTime, endTime string) string {
	if date == "" || endTime == "" {
		return ""
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return ""
	}
	if startTime != "" {
		start, startErr := time.Parse("15:04", startTime)
		end, endErr := time.Parse("15:04", endTime)
		if startErr == nil && endErr == nil && !end.After(start) {
			return day.AddDate(0, 0, 1).Format("2006-01-02")
		}
	}
	return date
}
