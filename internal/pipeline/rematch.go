// rematch.go re-runs candidate matching over stored records that never got a
// source link, and exposes targeted canonical re-fusion.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/errors"
)

// MatchUnlinked runs the candidate matcher over every stored scraped record
// that has no source link yet, across all entity kinds. Failures are isolated
// per record.
func (p *Processor) MatchUnlinked(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.New().String()}
	logger.Info("unlinked rematch started", "run_id", report.RunID)

	events, err := p.ds.GetUnlinkedScrapedEvents()
	if err != nil {
		return report, err
	}
	for i := range events {
		p.processEvent(ctx, &events[i], report)
	}

	venues, err := p.ds.GetUnlinkedScrapedVenues()
	if err != nil {
		return report, err
	}
	for i := range venues {
		p.processVenue(ctx, &venues[i], report)
	}

	artists, err := p.ds.GetUnlinkedScrapedArtists()
	if err != nil {
		return report, err
	}
	for i := range artists {
		p.processArtist(ctx, &artists[i], report)
	}

	organizers, err := p.ds.GetUnlinkedScrapedOrganizers()
	if err != nil {
		return report, err
	}
	for i := range organizers {
		p.processOrganizer(ctx, &organizers[i], report)
	}

	logger.Info("unlinked rematch finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"failed", report.Failed)
	return report, nil
}

// Refresh re-fuses one canonical entity of the given kind.
func (p *Processor) Refresh(kind string, canonicalID uint) error {
	var err error
	switch kind {
	case datastore.EntityEvent:
		err = p.refresher.RefreshEvent(canonicalID)
	case datastore.EntityVenue:
		err = p.refresher.RefreshVenue(canonicalID)
	case datastore.EntityArtist:
		err = p.refresher.RefreshArtist(canonicalID)
	case datastore.EntityOrganizer:
		err = p.refresher.RefreshOrganizer(canonicalID)
	default:
		return errors.ValidationError("unknown entity kind: " + kind)
	}
	if p.metrics != nil {
		p.metrics.RecordRefresh(kind, err)
	}
	return err
}
