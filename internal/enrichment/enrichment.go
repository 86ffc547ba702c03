// Package enrichment augments canonical artists with metadata from public
// databases. Lookups are optional: every client returns (nil, nil) when the
// upstream knows nothing, and callers treat enrichment failures as
// non-fatal.
package enrichment

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tkoskela/scenefuse/internal/logging"
)

// Package-level logger specific to the enrichment service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "enrichment.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "enrichment", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize enrichment file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "enrichment")
		closeLogger = func() error { return nil }
	}
}

// pacer serializes requests to one upstream so they never run closer together
// than the service's published rate limit.
type pacer struct {
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time

	// Injectable clock for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func newPacer(minIntervalMS int) *pacer {
	return &pacer{
		minInterval: time.Duration(minIntervalMS) * time.Millisecond,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// wait blocks until the next request slot opens, then claims it.
func (p *pacer) wait() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if wait := p.minInterval - p.now().Sub(p.lastRequest); wait > 0 {
		p.sleep(wait)
	}
	p.lastRequest = p.now()
}
