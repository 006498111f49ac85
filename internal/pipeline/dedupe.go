package pipeline

import "strings"

// dedupeKey identifies an entity mention for deduplication purposes.
type dedupeKey struct {
	name string
	typ  string
}

// Deduplicate collapses mentions sharing a (lowercased name, type) key,
// keeping the highest-confidence instance per key. Order of first
// appearance is preserved, and the operation is idempotent: applying
// it to its own output yields the same set.
func Deduplicate(raw []RawEntity) []RawEntity {
	best := make(map[dedupeKey]int, len(raw))
	out := make([]RawEntity, 0, len(raw))

	for _, e := range raw {
		key := dedupeKey{
			name: strings.ToLower(strings.TrimSpace(e.Name)),
			typ:  e.Type,
		}

		idx, seen := best[key]
		if !seen {
			best[key] = len(out)
			out = append(out, e)
			continue
		}

		if e.Confidence > out[idx].Confidence {
			out[idx] = e
		}
	}

	return out
}
