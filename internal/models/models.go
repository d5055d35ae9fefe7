// Package models defines the domain records shared by the storage layer
// and the availability engine.
package models

import (
	"time"

	"igrovik/internal/timerange"
)

// Reservation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusCompleted = "completed"
)

// Console is a bookable game console.
type Console struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"` // e.g. "playstation", "switch"
	IsActive bool   `json:"is_active"`
}

// Game is a title that can be attached to a reservation.
type Game struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	IsActive bool   `json:"is_active"`
}

// Accessory is optional extra hardware (controller, headset, wheel).
type Accessory struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// WeeklyRule describes the recurring opening hours for one day of week.
// Enabled=false closes the day regardless of hour ranges.
type WeeklyRule struct {
	DayOfWeek  time.Weekday      `json:"day_of_week"` // Sunday = 0
	Enabled    bool              `json:"enabled"`
	HourRanges []timerange.Range `json:"hour_ranges"`
}

// Schedule is the full weekly rule set plus the shared date gating.
// AlwaysOpen and the ActiveFrom/ActiveTo pair are mutually exclusive and
// apply uniformly across all weekly rules.
type Schedule struct {
	Rules      map[time.Weekday]WeeklyRule `json:"rules"`
	AlwaysOpen bool                        `json:"always_open"`
	ActiveFrom *time.Time                  `json:"active_from,omitempty"`
	ActiveTo   *time.Time                  `json:"active_to,omitempty"`
}

// Rule returns the weekly rule for a day and whether one exists.
func (s Schedule) Rule(day time.Weekday) (WeeklyRule, bool) {
	r, ok := s.Rules[day]
	return r, ok
}

// DateOverride adds or removes open time on one specific date.
// IsException=true removes the range from that date's open windows;
// otherwise the range is extra open time regardless of the weekly rule.
type DateOverride struct {
	Date        time.Time       `json:"date"` // date only, venue-local midnight
	Range       timerange.Range `json:"range"`
	IsException bool            `json:"is_exception"`
}

// Reservation is a committed booking occupying one fixed-length session
// starting at StartMinute on Date.
type Reservation struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Date         time.Time `json:"date"` // date only
	StartMinute  int       `json:"start_minute"`
	ConsoleID    int64     `json:"console_id"`
	GameIDs      []int64   `json:"game_ids"`      // at most 3
	AccessoryIDs []int64   `json:"accessory_ids"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Interval returns the occupied range for the given session duration.
func (r Reservation) Interval(durationMinutes int) timerange.Range {
	return timerange.Range{Start: r.StartMinute, End: r.StartMinute + durationMinutes}
}

// ResourceRequest is the bundle a prospective booker wants for a slot:
// one console, up to three titles, zero or more accessories.
type ResourceRequest struct {
	ConsoleID    int64   `json:"console_id"`
	GameIDs      []int64 `json:"game_ids"`
	AccessoryIDs []int64 `json:"accessory_ids"`
}

// UnavailableDates is the calendar-widget shape of the schedule: dates
// before/after which nothing is bookable, and weekdays that are globally
// closed. Before and After are nil when the schedule is always-open.
type UnavailableDates struct {
	Before     *time.Time `json:"before"`
	After      *time.Time `json:"after"`
	DaysOfWeek []int      `json:"day_of_week"` // Sunday = 0
}

// DateOnly truncates t to venue-local midnight.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
