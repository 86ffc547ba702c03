// dismiss.go excludes individual scraped events from automatic application.
package pipeline

// DismissEvent marks a scraped event so its pending changes are never
// auto-applied. The record keeps its stored diff for manual review.
func (p *Processor) DismissEvent(scrapedID uint) error {
	rec, err := p.ds.GetScrapedEventByID(scrapedID)
	if err != nil {
		return err
	}
	if rec.IsDismissed {
		return nil
	}

	rec.IsDismissed = true
	if err := p.ds.SaveScrapedEvent(rec); err != nil {
		return err
	}
	logger.Info("scraped event dismissed", "scraped_id", scrapedID)
	return nil
}
