package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tkoskela/scenefuse/internal/datastore"
)

func TestMergePicksLowestPriority(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{Code: "tm", Priority: 3, Fields: map[string]any{
			datastore.FieldTitle:      "Klubnacht (Official)",
			datastore.FieldStartTime:  "23:30",
			datastore.FieldFlyerFront: "https://tm.example/flyer.jpg",
		}},
		{Code: "ra", Priority: 2, Fields: map[string]any{
			datastore.FieldTitle:     "Klubnacht",
			datastore.FieldStartTime: "23:00",
		}},
	}

	merged, provenance := Merge(sources, datastore.EventFields)

	assert.Equal(t, "Klubnacht", merged[datastore.FieldTitle])
	assert.Equal(t, "ra", provenance[datastore.FieldTitle])
	assert.Equal(t, "23:00", merged[datastore.FieldStartTime])

	// tm is the only source offering a flyer, so it contributes despite its
	// lower rank.
	assert.Equal(t, "https://tm.example/flyer.jpg", merged[datastore.FieldFlyerFront])
	assert.Equal(t, "tm", provenance[datastore.FieldFlyerFront])
}

func TestMergeSkipsEmptyValues(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{Code: "ra", Priority: 2, Fields: map[string]any{
			datastore.FieldDescription: "",
			datastore.FieldPriceMin:    0.0,
			datastore.FieldLatitude:    0.0,
		}},
		{Code: "dice", Priority: 4, Fields: map[string]any{
			datastore.FieldDescription: "All night long.",
			datastore.FieldPriceMin:    18.0,
		}},
	}

	merged, provenance := Merge(sources, []string{
		datastore.FieldDescription, datastore.FieldPriceMin, datastore.FieldLatitude,
	})

	assert.Equal(t, "All night long.", merged[datastore.FieldDescription])
	assert.Equal(t, "dice", provenance[datastore.FieldDescription])
	assert.Equal(t, 18.0, merged[datastore.FieldPriceMin])

	// Nobody filled latitude, so it is absent rather than zeroed.
	_, ok := merged[datastore.FieldLatitude]
	assert.False(t, ok)
	_, ok = provenance[datastore.FieldLatitude]
	assert.False(t, ok)
}

func TestMergeTieBreaksOnInputOrder(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{Code: "dice", Priority: 4, Fields: map[string]any{datastore.FieldTitle: "From Dice"}},
		{Code: "bandsintown", Priority: 4, Fields: map[string]any{datastore.FieldTitle: "From BIT"}},
	}

	merged, provenance := Merge(sources, []string{datastore.FieldTitle})
	assert.Equal(t, "From Dice", merged[datastore.FieldTitle])
	assert.Equal(t, "dice", provenance[datastore.FieldTitle])
}

func TestManualAlwaysWins(t *testing.T) {
	t.Parallel()

	sources := []Source{
		{Code: "ra", Priority: 2, Fields: map[string]any{datastore.FieldTitle: "Scraped Title"}},
		{Code: datastore.SourceManual, Priority: ManualPriority, Fields: map[string]any{
			datastore.FieldTitle: "Curated Title",
		}},
	}

	merged, provenance := Merge(sources, []string{datastore.FieldTitle})
	assert.Equal(t, "Curated Title", merged[datastore.FieldTitle])
	assert.Equal(t, datastore.SourceManual, provenance[datastore.FieldTitle])
}

func TestPriorityFor(t *testing.T) {
	t.Parallel()

	priorities := map[string]int{"ra": 2, "tm": 3}

	assert.Equal(t, ManualPriority, PriorityFor(datastore.SourceManual, priorities))
	assert.Equal(t, 2, PriorityFor("ra", priorities))
	assert.Equal(t, DefaultPriority, PriorityFor("never-seen", priorities))
	// Even a table entry for "manual" cannot demote the manual source.
	assert.Equal(t, ManualPriority, PriorityFor(datastore.SourceManual, map[string]int{"manual": 9}))
}

func TestManualSourceSynthesis(t *testing.T) {
	t.Parallel()

	ev := &datastore.Event{Title: "Curated Title", StartTime: "23:00"}
	ev.SetFieldSourceMap(map[string]string{
		datastore.FieldTitle:     datastore.SourceManual,
		datastore.FieldStartTime: "ra",
	})

	src, ok := ManualSource(ev, datastore.EventFields)
	require.True(t, ok)
	assert.Equal(t, datastore.SourceManual, src.Code)
	assert.Equal(t, ManualPriority, src.Priority)
	assert.Equal(t, "Curated Title", src.Fields[datastore.FieldTitle])

	// Only manually-attributed fields come back.
	_, present := src.Fields[datastore.FieldStartTime]
	assert.False(t, present)
}

func TestManualSourceAbsentWithoutManualFields(t *testing.T) {
	t.Parallel()

	ev := &datastore.Event{Title: "Scraped Title"}
	ev.SetFieldSourceMap(map[string]string{datastore.FieldTitle: "ra"})

	_, ok := ManualSource(ev, datastore.EventFields)
	assert.False(t, ok)
}

func TestEventSourceDerivesEndDate(t *testing.T) {
	t.Parallel()

	rec := &datastore.ScrapedEvent{
		SourceCode:    "ra",
		SourceEventID: "1",
		Date:          "2026-09-12",
		StartTime:     "23:00",
		EndTime:       "06:00",
	}
	src := EventSource(rec, 2)
	assert.Equal(t, "2026-09-13", src.Fields[datastore.FieldEndDate])
}

func TestEndDateFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		date      string
		startTime string
		endTime   string
		want      string
	}{
		{"same evening", "2026-09-12", "19:00", "22:00", "2026-09-12"},
		{"past midnight", "2026-09-12", "23:00", "06:00", "2026-09-13"},
		{"ends exactly at start", "2026-09-12", "23:00", "23:00", "2026-09-13"},
		{"no end time", "2026-09-12", "23:00", "", ""},
		{"no start time", "2026-09-12", "", "06:00", "2026-09-12"},
		{"bad date", "12.09.2026", "23:00", "06:00", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, EndDateFor(tt.date, tt.startTime, tt.endTime))
		})
	}
}
