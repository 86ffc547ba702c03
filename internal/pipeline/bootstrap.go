// bootstrap.go assembles a Processor and its engine components from settings.
package pipeline

import (
	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/conf"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/enrichment"
	"github.com/tkoskela/scenefuse/internal/errors"
	"github.com/tkoskela/scenefuse/internal/geocoding"
	"github.com/tkoskela/scenefuse/internal/matcher"
	"github.com/tkoskela/scenefuse/internal/observability"
	"github.com/tkoskela/scenefuse/internal/refresher"
	"github.com/tkoskela/scenefuse/internal/venues"
	"github.com/tkoskela/scenefuse/internal/workflow"
)

// FromSettings opens the configured datastore and wires the full convergence
// engine: geocoder, matcher, refresher, auto-apply workflow and metrics.
func FromSettings(settings *conf.Settings) (*Processor, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Component("pipeline").
			Build()
	}

	store := datastore.New(settings)
	if store == nil {
		return nil, errors.Newf("no database backend enabled").
			Category(errors.CategoryConfiguration).
			Component("pipeline").
			Build()
	}
	if err := store.Open(); err != nil {
		return nil, errors.Wrap(err).
			Category(errors.CategoryDatabase).
			Component("pipeline").
			Build()
	}

	obs, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	var geocoder geocoding.Geocoder
	if settings.Geocoding.Enabled {
		client := geocoding.NewClient(settings.Geocoding)
		client.SetMetrics(obs.Gateway)
		geocoder = client
	}

	var music ArtistSearcher
	if settings.Enrichment.Music.Enabled {
		client := enrichment.NewMusicClient(settings.Enrichment.Music)
		client.SetMetrics(obs.Gateway)
		music = client
	}
	var encyclopedia Summarizer
	if settings.Enrichment.Encyclopedia.Enabled {
		client := enrichment.NewEncyclopediaClient(settings.Enrichment.Encyclopedia)
		client.SetMetrics(obs.Gateway)
		encyclopedia = client
	}

	auditor := audit.NewWriter(store)
	m := matcher.New(store, settings.Matching, venues.NewResolver(store, geocoder), auditor)
	r := refresher.New(store, settings.Sources.Priorities, auditor)
	w := workflow.New(store, r, auditor)

	p := New(store, m, r, w)
	p.SetMetrics(obs.Convergence)
	p.SetEnrichment(music, encyclopedia)
	p.observability = obs
	return p, nil
}

// Store returns the underlying datastore, primarily so callers can close it.
func (p *Processor) Store() datastore.Interface {
	return p.ds
}

// Observability returns the metrics aggregator wired by FromSettings, or nil
// when the processor was built directly.
func (p *Processor) Observability() *observability.Metrics {
	return p.observability
}
