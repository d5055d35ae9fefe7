package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"igrovik/internal/availability"
	"igrovik/internal/database"
	"igrovik/internal/metrics"
	"igrovik/internal/models"
)

// CreateReservationRequest is the body for POST /api/reservations.
type CreateReservationRequest struct {
	UserID       int64   `json:"user_id"`
	Date         string  `json:"date"`         // YYYY-MM-DD
	StartMinute  int     `json:"start_minute"` // minutes since midnight
	ConsoleID    int64   `json:"console_id"`
	GameIDs      []int64 `json:"game_ids,omitempty"`
	AccessoryIDs []int64 `json:"accessory_ids,omitempty"`
}

// CreateReservationResponse is the response for POST /api/reservations.
type CreateReservationResponse struct {
	Success       bool                    `json:"success"`
	ReservationID int64                   `json:"reservation_id,omitempty"`
	Error         string                  `json:"error,omitempty"`
	Conflicts     *availability.Conflicts `json:"conflicts,omitempty"`
}

// handleReservations commits a booking.
// POST /api/reservations
func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_reservation")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	var req CreateReservationRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	date, err := s.engine.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.ConsoleID <= 0 {
		writeError(w, http.StatusBadRequest, "console_id is required")
		return
	}
	if len(req.GameIDs) > 3 {
		writeError(w, http.StatusBadRequest, "at most 3 game_ids are allowed")
		return
	}

	// Re-run the engine for this bundle and reject starts that are not
	// a bookable slot. This is an optimistic check; the unique index
	// below is what actually closes the race.
	inputs, err := s.loadEngineInputs(r, date)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load reservation inputs")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	query := availability.Query{
		Date:   date,
		UserID: req.UserID,
		Request: models.ResourceRequest{
			ConsoleID:    req.ConsoleID,
			GameIDs:      req.GameIDs,
			AccessoryIDs: req.AccessoryIDs,
		},
	}
	result, err := s.engine.Availability(query, inputs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var slot *availability.Slot
	for i := range result.Slots {
		if result.Slots[i].StartMinute == req.StartMinute {
			slot = &result.Slots[i]
			break
		}
	}
	if slot == nil {
		writeError(w, http.StatusBadRequest, "start_minute is not a bookable slot on this date")
		return
	}
	if !slot.Available {
		writeJSON(w, http.StatusConflict, CreateReservationResponse{
			Success:   false,
			Error:     "slot is not available",
			Conflicts: slot.Conflicts,
		})
		return
	}

	reservation := &models.Reservation{
		UserID:       req.UserID,
		Date:         date,
		StartMinute:  req.StartMinute,
		ConsoleID:    req.ConsoleID,
		GameIDs:      req.GameIDs,
		AccessoryIDs: req.AccessoryIDs,
	}
	if err := s.db.CreateReservation(r.Context(), reservation); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncSlotConflict()
			writeJSON(w, http.StatusConflict, CreateReservationResponse{
				Success: false,
				Error:   "slot was just taken by another booking",
			})
			return
		}
		s.logger.Error().Err(err).Msg("failed to create reservation")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.IncReservationCreated()
	s.cache.InvalidateDate(r.Context(), req.Date)
	writeJSON(w, http.StatusOK, CreateReservationResponse{
		Success:       true,
		ReservationID: reservation.ID,
	})
}

// handleReservationByID cancels a booking.
// DELETE /api/reservations/{id}
func (s *HTTPServer) handleReservationByID(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_reservation")
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed; use DELETE")
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/reservations/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid reservation id")
		return
	}

	reservation, err := s.db.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation not found")
			return
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("failed to load reservation")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.db.CancelReservation(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "reservation already canceled")
			return
		}
		s.logger.Error().Err(err).Int64("id", id).Msg("failed to cancel reservation")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	metrics.IncReservationCanceled()
	s.cache.InvalidateDate(r.Context(), reservation.Date.Format("2006-01-02"))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
