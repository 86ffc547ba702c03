// ingest.go runs scraped record batches through change detection, matching
// and the auto-apply gate, isolating failures per record.
package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/tkoskela/scenefuse/internal/changedetect"
	"github.com/tkoskela/scenefuse/internal/datastore"
)

// IngestEvents processes a batch of scraped events. Records that fail
// validation are skipped with a warning; any other per-record failure is
// recorded on the record itself and the batch continues.
func (p *Processor) IngestEvents(ctx context.Context, records []datastore.ScrapedEvent) *Report {
	report := &Report{RunID: uuid.New().String()}
	logger.Info("event ingestion started", "run_id", report.RunID, "records", len(records))

	for i := range records {
		rec := &records[i]
		if rec.SourceCode == "" || rec.SourceEventID == "" || rec.Title == "" || rec.Date == "" {
			logger.Warn("skipping invalid scraped event",
				"run_id", report.RunID,
				"source", rec.SourceCode,
				"source_event_id", rec.SourceEventID)
			report.Skipped++
			continue
		}
		p.processEvent(ctx, rec, report)
	}

	logger.Info("event ingestion finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"applied", report.Applied,
		"pending", report.Pending,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report
}

func (p *Processor) processEvent(ctx context.Context, rec *datastore.ScrapedEvent, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing scraped event",
				"source", rec.SourceCode,
				"source_event_id", rec.SourceEventID,
				"panic", r)
			p.recordFailure("event", "panic")
			report.Failed++
		}
	}()
	report.Processed++

	// target is the copy the failure handler annotates: the stored row once
	// one exists, so processing errors survive the batch.
	target := rec
	fail := func(stage string, err error) {
		logger.Error("scraped event processing failed",
			"stage", stage,
			"source", rec.SourceCode,
			"source_event_id", rec.SourceEventID,
			"error", err)
		target.AppendProcessingError(stage, err.Error())
		if target.ID != 0 {
			if saveErr := p.ds.SaveScrapedEvent(target); saveErr != nil {
				logger.Error("failed to persist processing error", "error", saveErr)
			}
		}
		p.recordFailure("event", stage)
		report.Failed++
	}

	stored, err := p.ds.GetScrapedEvent(rec.SourceCode, rec.SourceEventID)
	if err != nil {
		fail("load", err)
		return
	}
	if stored != nil {
		target = stored
		changes, diffErr := changedetect.DiffEvent(stored, rec)
		if diffErr != nil {
			fail("change-detection", diffErr)
			return
		}
		p.recordChange("event", len(changes) > 0)
		mergeEvent(stored, rec)
		if len(changes) > 0 {
			if err := stored.SetChangeMap(changes); err != nil {
				fail("change-detection", err)
				return
			}
			stored.HasChanges = true
			report.Changed++
		}
		rec = stored
	}
	if err := p.ds.SaveScrapedEvent(rec); err != nil {
		fail("save", err)
		return
	}

	link, err := p.ds.GetLinkForScraped(datastore.EntityEvent, rec.ID)
	if err != nil {
		fail("link-lookup", err)
		return
	}

	if link == nil {
		res, err := p.matcher.MatchEvent(ctx, rec)
		if err != nil {
			fail("matching", err)
			return
		}
		report.recordMatch(res)
		p.recordOutcome("event", res)
		// A match against an existing canonical brings a new source into
		// the fusion; re-fuse so its fields contribute immediately.
		if res != nil && !res.Created && !res.NearDuplicate {
			err := p.refresher.RefreshEvent(res.CanonicalID)
			if p.metrics != nil {
				p.metrics.RecordRefresh("event", err)
			}
			if err != nil {
				fail("refresh", err)
			}
		}
		return
	}

	if rec.HasChanges {
		applied, err := p.workflow.ProcessEventChange(rec)
		if err != nil {
			fail("auto-apply", err)
			return
		}
		p.recordDecision("event", applied)
		if applied {
			report.Applied++
		} else {
			report.Pending++
		}
	}
}

// IngestVenues processes a batch of scraped venues.
func (p *Processor) IngestVenues(ctx context.Context, records []datastore.ScrapedVenue) *Report {
	report := &Report{RunID: uuid.New().String()}
	logger.Info("venue ingestion started", "run_id", report.RunID, "records", len(records))

	for i := range records {
		rec := &records[i]
		if rec.SourceCode == "" || rec.SourceVenueID == "" || rec.Name == "" {
			logger.Warn("skipping invalid scraped venue",
				"run_id", report.RunID,
				"source", rec.SourceCode,
				"source_venue_id", rec.SourceVenueID)
			report.Skipped++
			continue
		}
		p.processVenue(ctx, rec, report)
	}

	logger.Info("venue ingestion finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"failed", report.Failed)
	return report
}

func (p *Processor) processVenue(ctx context.Context, rec *datastore.ScrapedVenue, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing scraped venue",
				"source", rec.SourceCode,
				"source_venue_id", rec.SourceVenueID,
				"panic", r)
			p.recordFailure("venue", "panic")
			report.Failed++
		}
	}()
	report.Processed++

	target := rec
	fail := func(stage string, err error) {
		logger.Error("scraped venue processing failed",
			"stage", stage,
			"source", rec.SourceCode,
			"source_venue_id", rec.SourceVenueID,
			"error", err)
		target.AppendProcessingError(stage, err.Error())
		if target.ID != 0 {
			if saveErr := p.ds.SaveScrapedVenue(target); saveErr != nil {
				logger.Error("failed to persist processing error", "error", saveErr)
			}
		}
		p.recordFailure("venue", stage)
		report.Failed++
	}

	stored, err := p.ds.GetScrapedVenue(rec.SourceCode, rec.SourceVenueID)
	if err != nil {
		fail("load", err)
		return
	}
	if stored != nil {
		target = stored
		changes := changedetect.DiffVenue(stored, rec)
		p.recordChange("venue", len(changes) > 0)
		mergeVenue(stored, rec)
		if len(changes) > 0 {
			if err := stored.SetChangeMap(changes); err != nil {
				fail("change-detection", err)
				return
			}
			stored.HasChanges = true
			report.Changed++
		}
		rec = stored
	}
	if err := p.ds.SaveScrapedVenue(rec); err != nil {
		fail("save", err)
		return
	}

	link, err := p.ds.GetLinkForScraped(datastore.EntityVenue, rec.ID)
	if err != nil {
		fail("link-lookup", err)
		return
	}

	if link == nil {
		res, err := p.matcher.MatchVenue(ctx, rec)
		if err != nil {
			fail("matching", err)
			return
		}
		report.recordMatch(res)
		p.recordOutcome("venue", res)
		if res != nil && !res.Created {
			err := p.refresher.RefreshVenue(res.CanonicalID)
			if p.metrics != nil {
				p.metrics.RecordRefresh("venue", err)
			}
			if err != nil {
				fail("refresh", err)
			}
		}
		return
	}

	if rec.HasChanges {
		applied, err := p.workflow.ProcessVenueChange(rec)
		if err != nil {
			fail("auto-apply", err)
			return
		}
		p.recordDecision("venue", applied)
		if applied {
			report.Applied++
		} else {
			report.Pending++
		}
	}
}

// IngestArtists processes a batch of scraped artists.
func (p *Processor) IngestArtists(ctx context.Context, records []datastore.ScrapedArtist) *Report {
	report := &Report{RunID: uuid.New().String()}
	logger.Info("artist ingestion started", "run_id", report.RunID, "records", len(records))

	for i := range records {
		rec := &records[i]
		if rec.SourceCode == "" || rec.SourceArtistID == "" || rec.Name == "" {
			logger.Warn("skipping invalid scraped artist",
				"run_id", report.RunID,
				"source", rec.SourceCode,
				"source_artist_id", rec.SourceArtistID)
			report.Skipped++
			continue
		}
		p.processArtist(ctx, rec, report)
	}

	logger.Info("artist ingestion finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"failed", report.Failed)
	return report
}

func (p *Processor) processArtist(ctx context.Context, rec *datastore.ScrapedArtist, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing scraped artist",
				"source", rec.SourceCode,
				"source_artist_id", rec.SourceArtistID,
				"panic", r)
			p.recordFailure("artist", "panic")
			report.Failed++
		}
	}()
	report.Processed++

	target := rec
	fail := func(stage string, err error) {
		logger.Error("scraped artist processing failed",
			"stage", stage,
			"source", rec.SourceCode,
			"source_artist_id", rec.SourceArtistID,
			"error", err)
		target.AppendProcessingError(stage, err.Error())
		if target.ID != 0 {
			if saveErr := p.ds.SaveScrapedArtist(target); saveErr != nil {
				logger.Error("failed to persist processing error", "error", saveErr)
			}
		}
		p.recordFailure("artist", stage)
		report.Failed++
	}

	stored, err := p.ds.GetScrapedArtist(rec.SourceCode, rec.SourceArtistID)
	if err != nil {
		fail("load", err)
		return
	}
	if stored != nil {
		target = stored
		changes := changedetect.DiffArtist(stored, rec)
		p.recordChange("artist", len(changes) > 0)
		mergeArtist(stored, rec)
		if len(changes) > 0 {
			if err := stored.SetChangeMap(changes); err != nil {
				fail("change-detection", err)
				return
			}
			stored.HasChanges = true
			report.Changed++
		}
		rec = stored
	}
	if err := p.ds.SaveScrapedArtist(rec); err != nil {
		fail("save", err)
		return
	}

	link, err := p.ds.GetLinkForScraped(datastore.EntityArtist, rec.ID)
	if err != nil {
		fail("link-lookup", err)
		return
	}

	if link == nil {
		res, err := p.matcher.MatchArtist(ctx, rec)
		if err != nil {
			fail("matching", err)
			return
		}
		report.recordMatch(res)
		p.recordOutcome("artist", res)
		if res != nil && res.Created {
			p.enrichArtist(ctx, res.CanonicalID)
		}
		if res != nil && !res.Created {
			err := p.refresher.RefreshArtist(res.CanonicalID)
			if p.metrics != nil {
				p.metrics.RecordRefresh("artist", err)
			}
			if err != nil {
				fail("refresh", err)
			}
		}
		return
	}

	if rec.HasChanges {
		applied, err := p.workflow.ProcessArtistChange(rec)
		if err != nil {
			fail("auto-apply", err)
			return
		}
		p.recordDecision("artist", applied)
		if applied {
			report.Applied++
		} else {
			report.Pending++
		}
	}
}

// IngestOrganizers processes a batch of scraped organizers.
func (p *Processor) IngestOrganizers(ctx context.Context, records []datastore.ScrapedOrganizer) *Report {
	report := &Report{RunID: uuid.New().String()}
	logger.Info("organizer ingestion started", "run_id", report.RunID, "records", len(records))

	for i := range records {
		rec := &records[i]
		if rec.SourceCode == "" || rec.SourceID == "" || rec.Name == "" {
			logger.Warn("skipping invalid scraped organizer",
				"run_id", report.RunID,
				"source", rec.SourceCode,
				"source_id", rec.SourceID)
			report.Skipped++
			continue
		}
		p.processOrganizer(ctx, rec, report)
	}

	logger.Info("organizer ingestion finished",
		"run_id", report.RunID,
		"processed", report.Processed,
		"matched", report.Matched,
		"created", report.Created,
		"failed", report.Failed)
	return report
}

func (p *Processor) processOrganizer(ctx context.Context, rec *datastore.ScrapedOrganizer, report *Report) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while processing scraped organizer",
				"source", rec.SourceCode,
				"source_id", rec.SourceID,
				"panic", r)
			p.recordFailure("organizer", "panic")
			report.Failed++
		}
	}()
	report.Processed++

	target := rec
	fail := func(stage string, err error) {
		logger.Error("scraped organizer processing failed",
			"stage", stage,
			"source", rec.SourceCode,
			"source_id", rec.SourceID,
			"error", err)
		target.AppendProcessingError(stage, err.Error())
		if target.ID != 0 {
			if saveErr := p.ds.SaveScrapedOrganizer(target); saveErr != nil {
				logger.Error("failed to persist processing error", "error", saveErr)
			}
		}
		p.recordFailure("organizer", stage)
		report.Failed++
	}

	stored, err := p.ds.GetScrapedOrganizer(rec.SourceCode, rec.SourceID)
	if err != nil {
		fail("load", err)
		return
	}
	if stored != nil {
		target = stored
		changes := changedetect.DiffOrganizer(stored, rec)
		p.recordChange("organizer", len(changes) > 0)
		mergeOrganizer(stored, rec)
		if len(changes) > 0 {
			if err := stored.SetChangeMap(changes); err != nil {
				fail("change-detection", err)
				return
			}
			stored.HasChanges = true
			report.Changed++
		}
		rec = stored
	}
	if err := p.ds.SaveScrapedOrganizer(rec); err != nil {
		fail("save", err)
		return
	}

	link, err := p.ds.GetLinkForScraped(datastore.EntityOrganizer, rec.ID)
	if err != nil {
		fail("link-lookup", err)
		return
	}

	if link == nil {
		res, err := p.matcher.MatchOrganizer(ctx, rec)
		if err != nil {
			fail("matching", err)
			return
		}
		report.recordMatch(res)
		p.recordOutcome("organizer", res)
		if res != nil && !res.Created {
			err := p.refresher.RefreshOrganizer(res.CanonicalID)
			if p.metrics != nil {
				p.metrics.RecordRefresh("organizer", err)
			}
			if err != nil {
				fail("refresh", err)
			}
		}
		return
	}

	if rec.HasChanges {
		applied, err := p.workflow.ProcessOrganizerChange(rec)
		if err != nil {
			fail("auto-apply", err)
			return
		}
		p.recordDecision("organizer", applied)
		if applied {
			report.Applied++
		} else {
			report.Pending++
		}
	}
}
