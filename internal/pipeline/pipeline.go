// Package pipeline orchestrates ingestion of scraped records: change
// detection against the stored copy, candidate matching for unlinked records,
// canonical refresh and the auto-apply gate. Each record is processed in
// isolation so one malformed record cannot abort a batch.
package pipeline

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"

	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/logging"
	"github.com/tkoskela/scenefuse/internal/matcher"
	"github.com/tkoskela/scenefuse/internal/observability"
	"github.com/tkoskela/scenefuse/internal/observability/metrics"
	"github.com/tkoskela/scenefuse/internal/refresher"
	"github.com/tkoskela/scenefuse/internal/workflow"
)

// Package-level logger specific to the pipeline service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "pipeline.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "pipeline", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize pipeline file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "pipeline")
		closeLogger = func() error { return nil }
	}
}

// Processor runs scraped record batches through the convergence engine.
type Processor struct {
	ds            datastore.Interface
	matcher       *matcher.Matcher
	refresher     *refresher.Refresher
	workflow      *workflow.Workflow
	metrics       *metrics.ConvergenceMetrics
	observability *observability.Metrics
	music         ArtistSearcher
	encyclopedia  Summarizer
}

// New creates a batch processor over the given engine components.
func New(ds datastore.Interface, m *matcher.Matcher, r *refresher.Refresher, w *workflow.Workflow) *Processor {
	return &Processor{ds: ds, matcher: m, refresher: r, workflow: w}
}

// SetMetrics sets the convergence metrics instance for outcome tracking.
func (p *Processor) SetMetrics(m *metrics.ConvergenceMetrics) {
	p.metrics = m
}

// Report summarizes one ingestion run.
type Report struct {
	RunID     string
	Processed int
	Skipped   int
	Changed   int
	Matched   int
	Created   int
	Applied   int
	Pending   int
	Failed    int
}

func (r *Report) recordMatch(res *matcher.Result) {
	switch {
	case res == nil:
	case res.Created:
		r.Created++
	default:
		r.Matched++
	}
}

func (p *Processor) recordOutcome(kind string, res *matcher.Result) {
	if p.metrics == nil || res == nil {
		return
	}
	outcome := "matched"
	switch {
	case res.Created:
		outcome = "created"
	case res.NearDuplicate:
		outcome = "near_duplicate"
	}
	p.metrics.RecordMatchOutcome(kind, outcome, res.Confidence)
}

func (p *Processor) recordChange(kind string, changed bool) {
	if p.metrics != nil {
		p.metrics.RecordChangeDetection(kind, changed)
	}
}

func (p *Processor) recordDecision(kind string, applied bool) {
	if p.metrics != nil {
		p.metrics.RecordAutoApplyDecision(kind, applied)
	}
}

func (p *Processor) recordFailure(kind, stage string) {
	if p.metrics != nil {
		p.metrics.RecordFailure(kind, stage)
	}
}

// Close releases processor resources.
func (p *Processor) Close() {
	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing pipeline logger: %v", err)
		}
	}
}
