// merge.go folds a freshly scraped record into its stored copy. An empty
// incoming field never overwrites a stored value: sources sometimes drop
// fields between scrapes, and losing the old value would erase information
// the fusion engine still needs.
package pipeline

import (
	"github.com/tkoskela/scenefuse/internal/datastore"
)

func takeString(stored *string, incoming string) {
	if incoming != "" {
		*stored = incoming
	}
}

func takeFloat(stored *float64, incoming float64) {
	if incoming != 0 {
		*stored = incoming
	}
}

func mergeEvent(stored, incoming *datastore.ScrapedEvent) {
	takeString(&stored.Title, incoming.Title)
	takeString(&stored.Date, incoming.Date)
	takeString(&stored.StartTime, incoming.StartTime)
	takeString(&stored.EndTime, incoming.EndTime)
	takeString(&stored.ContentURL, incoming.ContentURL)
	takeString(&stored.FlyerFront, incoming.FlyerFront)
	takeString(&stored.Description, incoming.Description)
	takeString(&stored.VenueName, incoming.VenueName)
	takeString(&stored.VenueAddress, incoming.VenueAddress)
	takeString(&stored.VenueCity, incoming.VenueCity)
	takeString(&stored.VenueCountry, incoming.VenueCountry)
	takeString(&stored.ArtistsJSON, incoming.ArtistsJSON)
	takeString(&stored.OrganizersJSON, incoming.OrganizersJSON)
	takeString(&stored.PriceCurrency, incoming.PriceCurrency)
	takeString(&stored.RawData, incoming.RawData)
	takeFloat(&stored.PriceMin, incoming.PriceMin)
	takeFloat(&stored.PriceMax, incoming.PriceMax)
	// Coordinates travel as a pair.
	if incoming.VenueLatitude != 0 || incoming.VenueLongitude != 0 {
		stored.VenueLatitude = incoming.VenueLatitude
		stored.VenueLongitude = incoming.VenueLongitude
	}
}

func mergeVenue(stored, incoming *datastore.ScrapedVenue) {
	takeString(&stored.Name, incoming.Name)
	takeString(&stored.Address, incoming.Address)
	takeString(&stored.City, incoming.City)
	takeString(&stored.Country, incoming.Country)
	takeString(&stored.ContentURL, incoming.ContentURL)
	takeString(&stored.Description, incoming.Description)
	takeString(&stored.RawData, incoming.RawData)
	if incoming.Latitude != 0 || incoming.Longitude != 0 {
		stored.Latitude = incoming.Latitude
		stored.Longitude = incoming.Longitude
	}
}

func mergeArtist(stored, incoming *datastore.ScrapedArtist) {
	takeString(&stored.Name, incoming.Name)
	takeString(&stored.Country, incoming.Country)
	takeString(&stored.ArtistType, incoming.ArtistType)
	takeString(&stored.GenresJSON, incoming.GenresJSON)
	takeString(&stored.ImageURL, incoming.ImageURL)
	takeString(&stored.ContentURL, incoming.ContentURL)
	takeString(&stored.Bio, incoming.Bio)
	takeString(&stored.Website, incoming.Website)
	takeString(&stored.Instagram, incoming.Instagram)
	takeString(&stored.SoundCloud, incoming.SoundCloud)
	takeString(&stored.RawData, incoming.RawData)
}

func mergeOrganizer(stored, incoming *datastore.ScrapedOrganizer) {
	takeString(&stored.Name, incoming.Name)
	takeString(&stored.Description, incoming.Description)
	takeString(&stored.ImageURL, incoming.ImageURL)
	takeString(&stored.URL, incoming.URL)
	takeString(&stored.RawData, incoming.RawData)
}
