// enrich.go backfills freshly created canonical artists from the external
// enrichment gateways. Enrichment is best-effort: failures are logged and
// never fail the record.
package pipeline

import (
	"context"

	"github.com/tkoskela/scenefuse/internal/enrichment"
)

// ArtistSearcher looks up artist metadata in a music database.
type ArtistSearcher interface {
	SearchArtist(ctx context.Context, name string) (*enrichment.ArtistInfo, error)
}

// Summarizer fetches an encyclopedia abstract for a page title.
type Summarizer interface {
	Summary(ctx context.Context, title string) (*enrichment.Summary, error)
}

// SetEnrichment sets the optional enrichment clients. Either may be nil.
func (p *Processor) SetEnrichment(music ArtistSearcher, encyclopedia Summarizer) {
	p.music = music
	p.encyclopedia = encyclopedia
}

// enrichArtist fills empty metadata fields on a newly created canonical
// artist. Fields a scraped source later provides win over enriched values
// only through the normal fusion path.
func (p *Processor) enrichArtist(ctx context.Context, canonicalID uint) {
	if p.music == nil && p.encyclopedia == nil {
		return
	}

	a, err := p.ds.GetArtist(canonicalID)
	if err != nil {
		logger.Warn("enrichment skipped, artist not loadable", "artist_id", canonicalID, "error", err)
		return
	}

	changed := false

	if p.music != nil && (a.Country == "" || a.ArtistType == "" || a.GenresJSON == "") {
		info, err := p.music.SearchArtist(ctx, a.Name)
		switch {
		case err != nil:
			logger.Warn("music enrichment failed", "artist", a.Name, "error", err)
		case info != nil:
			if a.Country == "" && info.Country != "" {
				a.Country = info.Country
				changed = true
			}
			if a.ArtistType == "" && info.Type != "" {
				a.ArtistType = info.Type
				changed = true
			}
			if a.GenresJSON == "" && len(info.Genres) > 0 {
				a.SetGenres(info.Genres)
				changed = true
			}
		}
	}

	if p.encyclopedia != nil && a.Bio == "" {
		summary, err := p.encyclopedia.Summary(ctx, a.Name)
		switch {
		case err != nil:
			logger.Warn("encyclopedia enrichment failed", "artist", a.Name, "error", err)
		case summary != nil:
			a.Bio = summary.Extract
			if a.ContentURL == "" {
				a.ContentURL = summary.ContentURL
			}
			changed = true
		}
	}

	if !changed {
		return
	}
	if err := p.ds.SaveArtist(a); err != nil {
		logger.Warn("failed to save enriched artist", "artist_id", canonicalID, "error", err)
		return
	}
	logger.Info("artist enriched", "artist_id", canonicalID, "name", a.Name)
}
