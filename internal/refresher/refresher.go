// Package refresher recomputes canonical entities from their linked source
// records. A refresh is the only writer of fused fields and provenance, and
// refreshes of the same canonical entity are serialized so concurrent
// ingestion runs cannot interleave partial writes.
package refresher

import (
	"io"
	"log"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/tkoskela/scenefuse/internal/audit"
	"github.com/tkoskela/scenefuse/internal/datastore"
	"github.com/tkoskela/scenefuse/internal/fusion"
	"github.com/tkoskela/scenefuse/internal/logging"
)

// Package-level logger specific to the refresher service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "refresher.log")
	initialLevel := slog.LevelDebug
	serviceLevelVar.Set(initialLevel)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "refresher", serviceLevelVar)
	if err != nil {
		log.Printf("Failed to initialize refresher file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "refresher")
		closeLogger = func() error { return nil }
	}
}

// keyedMutex serializes work per string key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*lockEntry{}}
}

// lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Refresher fuses linked source records back into canonical entities.
type Refresher struct {
	ds         datastore.Interface
	priorities map[string]int
	auditor    *audit.Writer
	locks      *keyedMutex

	// Injectable clock for the last-synced-at stamp.
	now func() time.Time
}

// New creates a refresher. priorities is the configured source priority
// table.
func New(ds datastore.Interface, priorities map[string]int, auditor *audit.Writer) *Refresher {
	return &Refresher{
		ds:         ds,
		priorities: priorities,
		auditor:    auditor,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// applyMerged writes fused values onto the entity while keeping any prior
// value whose field no source could fill, then overwrites provenance
// wholesale.
type fieldEntity interface {
	FieldValue(field string) any
	ApplyField(field string, v any)
	SetFieldSourceMap(map[string]string)
	FieldSourceMap() map[string]string
}

func applyMerged(entity fieldEntity, merged map[string]any, provenance map[string]string, fields []string) {
	for _, field := range fields {
		value, ok := merged[field]
		if !ok || fusion.IsEmpty(value) {
			// No contributing source: the prior value stands, and its prior
			// provenance entry is carried into the rebuilt map.
			if prior, had := entity.FieldSourceMap()[field]; had && !fusion.IsEmpty(entity.FieldValue(field)) {
				provenance[field] = prior
			}
			continue
		}
		entity.ApplyField(field, value)
	}
	entity.SetFieldSourceMap(provenance)
}

// headlineChanges diffs the snapshot taken before a refresh against the
// refreshed entity, restricted to the headline field set.
func headlineChanges(before map[string]any, entity fieldEntity, headline []string) map[string]datastore.FieldChange {
	changes := map[string]datastore.FieldChange{}
	for _, field := range headline {
		after := entity.FieldValue(field)
		if before[field] != after {
			changes[field] = datastore.FieldChange{Old: before[field], New: after}
		}
	}
	return changes
}

func snapshotFields(entity fieldEntity, fields []string) map[string]any {
	snap := make(map[string]any, len(fields))
	for _, field := range fields {
		snap[field] = entity.FieldValue(field)
	}
	return snap
}

// contributingLinks returns the ids of links whose source contributed at
// least one fused field. sourceByScraped maps scraped record id to its
// source code.
func contributingLinks(links []datastore.SourceLink, sourceByScraped map[uint]string, provenance map[string]string) []uint {
	contributed := map[string]bool{}
	for _, code := range provenance {
		contributed[code] = true
	}

	var ids []uint
	for _, link := range links {
		if contributed[sourceByScraped[link.ScrapedID]] {
			ids = append(ids, link.ID)
		}
	}
	return ids
}
