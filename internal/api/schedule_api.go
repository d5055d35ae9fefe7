package api

import (
	"encoding/json"
	"net/http"
	"time"

	"igrovik/internal/metrics"
	"igrovik/internal/models"
	"igrovik/internal/timerange"
)

// WeeklyRuleRequest is one day's rule in a schedule save.
type WeeklyRuleRequest struct {
	DayOfWeek  int               `json:"day_of_week"` // Sunday = 0
	Enabled    bool              `json:"enabled"`
	HourRanges []timerange.Range `json:"hour_ranges"`
}

// OverrideRequest is one date override in a schedule save.
type OverrideRequest struct {
	Date        string `json:"date"` // YYYY-MM-DD
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
	IsException bool   `json:"is_exception"`
}

// ReplaceScheduleRequest is the body for PUT /api/admin/schedule. The
// editor always sends the complete schedule; the save replaces
// everything or nothing.
type ReplaceScheduleRequest struct {
	AlwaysOpen bool                `json:"always_open"`
	ActiveFrom string              `json:"active_from,omitempty"` // YYYY-MM-DD
	ActiveTo   string              `json:"active_to,omitempty"`   // YYYY-MM-DD
	Weekly     []WeeklyRuleRequest `json:"weekly"`
	Overrides  []OverrideRequest   `json:"overrides,omitempty"`
}

// handleReplaceSchedule saves the full weekly schedule and overrides.
// PUT /api/admin/schedule
func (s *HTTPServer) handleReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("replace_schedule")
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use PUT")
		return
	}

	var req ReplaceScheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.AlwaysOpen && (req.ActiveFrom != "" || req.ActiveTo != "") {
		writeError(w, http.StatusBadRequest, "always_open and active_from/active_to are mutually exclusive")
		return
	}

	sched := models.Schedule{
		AlwaysOpen: req.AlwaysOpen,
		Rules:      make(map[time.Weekday]models.WeeklyRule, len(req.Weekly)),
	}

	if req.ActiveFrom != "" {
		t, err := time.Parse("2006-01-02", req.ActiveFrom)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active_from; expected YYYY-MM-DD")
			return
		}
		sched.ActiveFrom = &t
	}
	if req.ActiveTo != "" {
		t, err := time.Parse("2006-01-02", req.ActiveTo)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid active_to; expected YYYY-MM-DD")
			return
		}
		sched.ActiveTo = &t
	}

	for _, rule := range req.Weekly {
		if rule.DayOfWeek < 0 || rule.DayOfWeek > 6 {
			writeError(w, http.StatusBadRequest, "day_of_week must be 0-6")
			return
		}
		for _, hr := range rule.HourRanges {
			if !hr.Valid() {
				writeError(w, http.StatusBadRequest, "hour ranges must satisfy 0 <= start < end <= 1440")
				return
			}
		}
		day := time.Weekday(rule.DayOfWeek)
		sched.Rules[day] = models.WeeklyRule{
			DayOfWeek:  day,
			Enabled:    rule.Enabled,
			HourRanges: rule.HourRanges,
		}
	}

	overrides := make([]models.DateOverride, 0, len(req.Overrides))
	for _, o := range req.Overrides {
		d, err := time.Parse("2006-01-02", o.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid override date; expected YYYY-MM-DD")
			return
		}
		rng := timerange.Range{Start: o.StartMinute, End: o.EndMinute}
		if !rng.Valid() {
			writeError(w, http.StatusBadRequest, "override ranges must satisfy 0 <= start < end <= 1440")
			return
		}
		overrides = append(overrides, models.DateOverride{
			Date:        d,
			Range:       rng,
			IsException: o.IsException,
		})
	}

	if err := s.db.ReplaceSchedule(r.Context(), sched, overrides); err != nil {
		s.logger.Error().Err(err).Msg("failed to replace schedule")
		writeError(w, http.StatusInternalServerError, "failed to save schedule; nothing was changed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
