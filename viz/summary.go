package viz

import (
	"cmp"
	"slices"

	"jobmap/record"
)

// Count is how often one value of a field occurs.
type Count struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// CountBy tallies the values of field f, most frequent first. Ties are
// ordered by value.
func CountBy(records []record.Record, f record.Field) []Count {
	seen := make(map[string]int)
	for _, r := range records {
		seen[r.Get(f)]++
	}
	out := make([]Count, 0, len(seen))
	for v, n := range seen {
		out = append(out, Count{Value: v, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Value, b.Value)
	})
	return out
}
