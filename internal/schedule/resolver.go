// Package schedule resolves the open windows of a calendar date from the
// weekly recurring rules and date-specific overrides.
package schedule

import (
	"time"

	"igrovik/internal/models"
	"igrovik/internal/timerange"
)

// OpenWindows returns the merged open minute-ranges for one date.
//
// The base is the weekly rule for the date's day of week (empty when the
// rule is missing or disabled). Overrides for the exact date are applied
// additions first, exceptions second, so an exception can remove time
// that only an addition opened. An empty weekly table resolves to no
// open windows on every date.
func OpenWindows(s models.Schedule, overrides []models.DateOverride, date time.Time) []timerange.Range {
	var base []timerange.Range
	if rule, ok := s.Rule(date.Weekday()); ok && rule.Enabled {
		base = append(base, rule.HourRanges...)
	}

	day := models.DateOnly(date)
	var additions, exceptions []timerange.Range
	for _, o := range overrides {
		if !models.DateOnly(o.Date).Equal(day) {
			continue
		}
		if o.IsException {
			exceptions = append(exceptions, o.Range)
		} else {
			additions = append(additions, o.Range)
		}
	}

	open := timerange.Merge(append(base, additions...))
	if len(exceptions) > 0 {
		open = timerange.Subtract(open, exceptions)
	}
	return open
}

// UnavailableDates reduces the schedule to its calendar shape: the date
// bounds outside which nothing is bookable, and the weekdays that are
// closed every week. Both bounds are nil when the schedule is always-open,
// regardless of any stored active range.
func UnavailableDates(s models.Schedule) models.UnavailableDates {
	u := models.UnavailableDates{DaysOfWeek: []int{}}

	if !s.AlwaysOpen {
		u.Before = s.ActiveFrom
		u.After = s.ActiveTo
	}

	for day := time.Sunday; day <= time.Saturday; day++ {
		rule, ok := s.Rule(day)
		if !ok || !rule.Enabled || len(timerange.Merge(rule.HourRanges)) == 0 {
			u.DaysOfWeek = append(u.DaysOfWeek, int(day))
		}
	}
	return u
}
