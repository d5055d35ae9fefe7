package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"igrovik/internal/availability"
	"igrovik/internal/cache"
	"igrovik/internal/metrics"
	"igrovik/internal/models"
)

// RequestedItems echoes the validated resource bundle back to the caller.
type RequestedItems struct {
	ConsoleID    int64   `json:"consoleId"`
	GameIDs      []int64 `json:"gameIds"`
	AccessoryIDs []int64 `json:"accessoryIds"`
}

// SlotResponse is one slot in the availability list.
type SlotResponse struct {
	Time      string                  `json:"time"` // HH:MM:SS
	Available bool                    `json:"available"`
	Conflicts *availability.Conflicts `json:"conflicts,omitempty"`
}

// AvailabilityResponse is the response for GET /api/availability.
type AvailabilityResponse struct {
	Success        bool               `json:"success"`
	Date           string             `json:"date"`
	RequestedItems RequestedItems     `json:"requestedItems"`
	Availability   []SlotResponse     `json:"availability"`
	Stats          availability.Stats `json:"stats"`
}

// handleAvailability returns the bookable slots for one date and bundle.
// GET /api/availability?date=YYYY-MM-DD&console_id=N&game_ids=1,2&accessory_ids=3&user_id=U
func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	dateStr := q.Get("date")
	date, err := s.engine.ParseDate(dateStr)
	if err != nil {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if q.Get("console_id") == "" {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, "console_id is required")
		return
	}
	consoleID, err := strconv.ParseInt(q.Get("console_id"), 10, 64)
	if err != nil || consoleID <= 0 {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, "invalid console_id; expected a positive integer")
		return
	}

	gameIDs, err := parseIDList(q.Get("game_ids"))
	if err != nil {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, "invalid game_ids; expected comma-separated integers")
		return
	}
	// At most three titles are honored per session.
	if len(gameIDs) > 3 {
		gameIDs = gameIDs[:3]
	}

	accessoryIDs, err := parseIDList(q.Get("accessory_ids"))
	if err != nil {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, "invalid accessory_ids; expected comma-separated integers")
		return
	}

	var userID int64
	if v := q.Get("user_id"); v != "" {
		userID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid user_id; expected an integer")
			return
		}
	}

	// Identity-dependent answers bypass the cache: the same-category
	// guard makes them per-user.
	var cacheKey string
	if userID == 0 {
		cacheKey = cache.Key(dateStr, consoleID, gameIDs, accessoryIDs)
		if body := s.cache.Get(r.Context(), cacheKey); body != "" {
			metrics.IncAvailabilityQuery("cached")
			writeRawJSON(w, http.StatusOK, body)
			return
		}
	}

	query := availability.Query{
		Date:   date,
		UserID: userID,
		Request: models.ResourceRequest{
			ConsoleID:    consoleID,
			GameIDs:      gameIDs,
			AccessoryIDs: accessoryIDs,
		},
	}

	inputs, err := s.loadEngineInputs(r, date)
	if err != nil {
		metrics.IncAvailabilityQuery("error")
		s.logger.Error().Err(err).Str("date", dateStr).Msg("failed to load availability inputs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := s.engine.Availability(query, inputs)
	if err != nil {
		metrics.IncAvailabilityQuery("rejected")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.IncAvailabilityQuery("ok")

	resp := AvailabilityResponse{
		Success: true,
		Date:    dateStr,
		RequestedItems: RequestedItems{
			ConsoleID:    consoleID,
			GameIDs:      emptyIfNil(gameIDs),
			AccessoryIDs: emptyIfNil(accessoryIDs),
		},
		Availability: make([]SlotResponse, 0, len(result.Slots)),
		Stats:        result.Stats,
	}
	for _, slot := range result.Slots {
		resp.Availability = append(resp.Availability, SlotResponse{
			Time:      slot.Time(),
			Available: slot.Available,
			Conflicts: slot.Conflicts,
		})
	}

	if cacheKey != "" {
		if body, err := json.Marshal(resp); err == nil {
			s.cache.Set(r.Context(), cacheKey, string(body))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UnavailableDatesResponse is the calendar-widget shape of the schedule.
type UnavailableDatesResponse struct {
	Success   bool    `json:"success"`
	Before    *string `json:"before"`
	After     *string `json:"after"`
	DayOfWeek []int   `json:"dayOfWeek"`
}

// handleUnavailableDates exposes schedule shape, not slot-level detail.
// GET /api/unavailable-dates
func (s *HTTPServer) handleUnavailableDates(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("unavailable_dates")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	sched, err := s.db.LoadSchedule(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load schedule")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	u := s.engine.UnavailableDates(sched)
	resp := UnavailableDatesResponse{Success: true, DayOfWeek: u.DaysOfWeek}
	if u.Before != nil {
		v := u.Before.Format("2006-01-02")
		resp.Before = &v
	}
	if u.After != nil {
		v := u.After.Format("2006-01-02")
		resp.After = &v
	}
	writeJSON(w, http.StatusOK, resp)
}

// loadEngineInputs fetches the engine's snapshot in one place: schedule,
// overrides for the date, the date's active reservations, and consoles.
func (s *HTTPServer) loadEngineInputs(r *http.Request, date time.Time) (availability.Inputs, error) {
	ctx := r.Context()
	var in availability.Inputs
	var err error

	if in.Schedule, err = s.db.LoadSchedule(ctx); err != nil {
		return in, err
	}
	if in.Overrides, err = s.db.OverridesForDate(ctx, date); err != nil {
		return in, err
	}
	if in.Reservations, err = s.db.ReservationsForDate(ctx, date); err != nil {
		return in, err
	}
	if in.Consoles, err = s.db.ListConsoles(ctx); err != nil {
		return in, err
	}
	return in, nil
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func emptyIfNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
