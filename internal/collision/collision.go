// Package collision detects overlapping time ranges within one day column.
package collision

import "weekplan/internal/model"

// Range is a half-open minute interval [Start, End).
type Range struct {
	Start int
	End   int
}

// HasCollision reports whether [start, end) overlaps any existing range.
// Touching endpoints do not overlap.
func HasCollision(existing []Range, start, end int) bool {
	for _, r := range existing {
		if start < r.End && end > r.Start {
			return true
		}
	}
	return false
}

// ColumnRanges converts a column's entries to ranges, leaving out the entry
// identified by exclude. A nil exclude keeps every entry.
func ColumnRanges(entries []model.Entry, exclude model.EntryRef) []Range {
	out := make([]Range, 0, len(entries))
	for _, e := range entries {
		if exclude != nil && model.SameRef(e.Ref, exclude) {
			continue
		}
		out = append(out, Range{Start: e.StartMinute, End: e.EndMinute})
	}
	return out
}
