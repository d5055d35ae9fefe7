// Package timerange implements set operations over half-open minute
// intervals within a single day.
package timerange

import "sort"

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// Range is a half-open interval [Start, End) in minutes since midnight.
type Range struct {
	Start int `json:"start"` // inclusive, in [0, 1440)
	End   int `json:"end"`   // exclusive, in (0, 1440]
}

// Valid reports whether the range is well-formed.
func (r Range) Valid() bool {
	return r.Start >= 0 && r.End <= MinutesPerDay && r.Start < r.End
}

// Duration returns the length of the range in minutes.
func (r Range) Duration() int {
	return r.End - r.Start
}

// Contains reports whether other lies fully inside r.
func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Overlaps reports whether the two half-open ranges share any minute.
func (r Range) Overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Merge returns a minimal, sorted, non-overlapping equivalent of ranges.
// Touching ranges coalesce: [9:00,12:00) + [12:00,17:00) = [9:00,17:00).
// Invalid ranges are dropped. The input slice is not modified.
func Merge(ranges []Range) []Range {
	valid := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Valid() {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	sort.Slice(valid, func(i, j int) bool {
		if valid[i].Start != valid[j].Start {
			return valid[i].Start < valid[j].Start
		}
		return valid[i].End < valid[j].End
	})

	merged := []Range{valid[0]}
	for _, r := range valid[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// Subtract removes every range in remove from base and returns the
// remainder. Each subtraction splits a base range into zero, one or two
// pieces. The result is merged (sorted, non-overlapping).
func Subtract(base, remove []Range) []Range {
	result := Merge(base)
	for _, rm := range remove {
		if !rm.Valid() {
			continue
		}
		result = subtractOne(result, rm)
	}
	return result
}

func subtractOne(base []Range, rm Range) []Range {
	var out []Range
	for _, b := range base {
		if !b.Overlaps(rm) {
			out = append(out, b)
			continue
		}
		if b.Start < rm.Start {
			out = append(out, Range{Start: b.Start, End: rm.Start})
		}
		if rm.End < b.End {
			out = append(out, Range{Start: rm.End, End: b.End})
		}
	}
	return out
}
