// Package fusion merges multi-source field values into canonical entities by
// source priority, tracking per-field provenance.
package fusion

import (
	"sort"

	"github.com/tkoskela/scenefuse/internal/datastore"
)

// DefaultPriority is assigned to source codes missing from the configured
// priority table. It sorts after every known source.
const DefaultPriority = 10

// ManualPriority is the fixed priority of the synthetic manual source. No
// configured source may collide with it, so manual edits always win.
const ManualPriority = 1

// Source is one contributor to a fusion run: a source code, its priority and
// the field values it offers. Empty values never contribute.
type Source struct {
	Code     string
	Priority int
	Fields   map[string]any
}

// PriorityFor resolves a source code against the configured priority table.
// The manual source is pinned to ManualPriority regardless of configuration.
func PriorityFor(code string, priorities map[string]int) int {
	if code == datastore.SourceManual {
		return ManualPriority
	}
	if p, ok := priorities[code]; ok {
		return p
	}
	return DefaultPriority
}

// Merge fuses the given sources over the named field set. For each field the
// non-empty value from the lowest-priority-number source wins; ties go to the
// earlier source in the input order. The second return value maps each fused
// field to the code of the source that supplied it. Fields no source can fill
// are absent from both maps.
func Merge(sources []Source, fields []string) (map[string]any, map[string]string) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	merged := make(map[string]any, len(fields))
	provenance := make(map[string]string, len(fields))

	for _, field := range fields {
		for _, src := range ordered {
			v, ok := src.Fields[field]
			if !ok || IsEmpty(v) {
				continue
			}
			merged[field] = v
			provenance[field] = src.Code
			break
		}
	}

	return merged, provenance
}

// IsEmpty reports whether a field value counts as absent for fusion and
// change detection: nil, blank strings, zero numbers and empty slices all do.
// Sources offering such values never displace data another source has.
func IsEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
