// Package availability implements the slot availability engine: given a
// snapshot of the schedule and a date's reservations, it decides which
// fixed-length sessions are bookable for a requested resource bundle.
//
// The engine is pure and stateless. It performs no I/O and no locking;
// two concurrent callers can both be told a slot is free. The storage
// layer closes that race with a unique index at commit time, so an
// "available" result is an optimistic hint, never a guarantee.
package availability

import (
	"errors"
	"fmt"
	"time"

	"igrovik/internal/config"
	"igrovik/internal/models"
	"igrovik/internal/schedule"
)

var (
	ErrDateRequired    = errors.New("date is required")
	ErrBadDateFormat   = errors.New("invalid date format; expected YYYY-MM-DD")
	ErrPastDate        = errors.New("date must not be in the past")
	ErrConsoleRequired = errors.New("console_id is required")
)

// Engine orchestrates resolver, slot generator and conflict detector for
// one (date, resource bundle) query.
type Engine struct {
	cfg config.ScheduleConfig
	loc *time.Location
	now func() time.Time
}

// New creates an engine for the given schedule configuration.
func New(cfg config.ScheduleConfig) *Engine {
	return &Engine{cfg: cfg, loc: cfg.Location(), now: time.Now}
}

// WithClock replaces the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Query is one availability request after input validation.
type Query struct {
	Date    time.Time
	UserID  int64 // 0 when the requester is anonymous
	Request models.ResourceRequest
}

// Inputs is the snapshot of stored state the engine reads. Callers must
// exclude canceled reservations before handing them over.
type Inputs struct {
	Schedule     models.Schedule
	Overrides    []models.DateOverride
	Reservations []models.Reservation
	Consoles     []models.Console
}

// Stats summarizes one result.
type Stats struct {
	TotalSlots       int `json:"totalSlots"`
	AvailableSlots   int `json:"availableSlots"`
	UnavailableSlots int `json:"unavailableSlots"`
}

// Result is the annotated slot list for one query.
type Result struct {
	Slots []Slot
	Stats Stats
}

// ParseDate validates and parses a YYYY-MM-DD request date in the
// venue's timezone. Dates strictly before today are rejected.
func (e *Engine) ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrDateRequired
	}
	parsed, err := time.ParseInLocation("2006-01-02", s, e.loc)
	if err != nil {
		return time.Time{}, ErrBadDateFormat
	}
	if parsed.Before(e.today()) {
		return time.Time{}, ErrPastDate
	}
	return parsed, nil
}

// Validate rejects malformed queries before any resolver work.
func (e *Engine) Validate(q Query) error {
	if q.Date.IsZero() {
		return ErrDateRequired
	}
	if q.Request.ConsoleID <= 0 {
		return ErrConsoleRequired
	}
	if len(q.Request.GameIDs) > 3 {
		return fmt.Errorf("at most 3 game_ids are honored, got %d", len(q.Request.GameIDs))
	}
	return nil
}

// Availability computes the annotated slot list for one query.
//
// Order of operations: the same-console-category-per-day guard runs
// before any window math; then resolver, generator and detector; finally
// same-day past suppression overrides resource conflicts.
func (e *Engine) Availability(q Query, in Inputs) (Result, error) {
	if err := e.Validate(q); err != nil {
		return Result{}, err
	}

	if e.holdsSameCategoryReservation(q, in) {
		return Result{}, nil
	}

	windows := schedule.OpenWindows(in.Schedule, in.Overrides, q.Date)
	duration := e.cfg.SessionDuration()
	starts := CandidateStarts(windows, e.cfg.OpenMinute(), e.cfg.CloseMinute(), duration, e.cfg.SlotStep())

	isToday := models.DateOnly(q.Date).Equal(e.today())
	currentHour := e.now().In(e.loc).Hour()

	result := Result{Slots: make([]Slot, 0, len(starts))}
	for _, start := range starts {
		conflicts := DetectConflicts(start, duration, q.Request, in.Reservations)
		if isToday && start/60 <= currentHour {
			conflicts.Past = true
		}

		slot := Slot{StartMinute: start, Available: conflicts.Empty()}
		if !slot.Available {
			c := conflicts
			slot.Conflicts = &c
		}
		result.Slots = append(result.Slots, slot)

		result.Stats.TotalSlots++
		if slot.Available {
			result.Stats.AvailableSlots++
		} else {
			result.Stats.UnavailableSlots++
		}
	}
	return result, nil
}

// UnavailableDates exposes the schedule's calendar shape.
func (e *Engine) UnavailableDates(s models.Schedule) models.UnavailableDates {
	return schedule.UnavailableDates(s)
}

// holdsSameCategoryReservation applies the one-console-type-per-user-per-day
// business rule: a requester who already has an active reservation for a
// console of the requested category gets no slots for that date at all.
func (e *Engine) holdsSameCategoryReservation(q Query, in Inputs) bool {
	if q.UserID == 0 {
		return false
	}

	categories := make(map[int64]string, len(in.Consoles))
	for _, c := range in.Consoles {
		categories[c.ID] = c.Category
	}
	wanted, ok := categories[q.Request.ConsoleID]
	if !ok {
		return false
	}

	for _, r := range in.Reservations {
		if r.UserID == q.UserID && categories[r.ConsoleID] == wanted {
			return true
		}
	}
	return false
}

func (e *Engine) today() time.Time {
	return models.DateOnly(e.now().In(e.loc))
}
