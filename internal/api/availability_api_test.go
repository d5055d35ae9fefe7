package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"igrovik/internal/availability"
	"igrovik/internal/config"
	"igrovik/internal/database"
	"igrovik/internal/models"
	"igrovik/internal/timerange"
)

const testAPIKey = "valid-key"

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type testServer struct {
	handler   http.Handler
	db        *database.DB
	consoleID int64
	otherID   int64
}

// Fixed clock: Monday 2025-05-26 10:00 UTC. Queries target the following
// Monday, 2025-06-02.
var testNow = time.Date(2025, 5, 26, 10, 0, 0, 0, time.UTC)

const testMonday = "2025-06-02"

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), &logger)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ps5 := models.Console{Name: "PS5 #1", Category: "playstation"}
	if err := db.AddConsole(context.Background(), &ps5); err != nil {
		t.Fatalf("seed console: %v", err)
	}
	sw := models.Console{Name: "Switch #1", Category: "switch"}
	if err := db.AddConsole(context.Background(), &sw); err != nil {
		t.Fatalf("seed console: %v", err)
	}

	sched := models.Schedule{
		AlwaysOpen: true,
		Rules: map[time.Weekday]models.WeeklyRule{
			time.Monday: {
				DayOfWeek:  time.Monday,
				Enabled:    true,
				HourRanges: []timerange.Range{{Start: 540, End: 1020}},
			},
		},
	}
	if err := db.ReplaceSchedule(context.Background(), sched, nil); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	cfg := config.ScheduleConfig{
		OpenHour: 9, CloseHour: 17,
		SessionDurationMinutes: 120, SlotStepMinutes: 60,
		Timezone: "UTC",
	}
	engine := availability.New(cfg).WithClock(func() time.Time { return testNow })

	server := NewHTTPServer(db, engine, nil, Options{APIKey: testAPIKey}, &logger)
	return &testServer{handler: server.Handler(), db: db, consoleID: ps5.ID, otherID: sw.ID}
}

func (ts *testServer) get(t *testing.T, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func TestHandleAvailability_Validation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing date",
			url:        "/api/availability?console_id=1",
			wantStatus: http.StatusBadRequest,
			wantError:  "date is required",
		},
		{
			name:       "bad date format",
			url:        "/api/availability?date=02-06-2025&console_id=1",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid date format; expected YYYY-MM-DD",
		},
		{
			name:       "past date",
			url:        "/api/availability?date=2025-05-25&console_id=1",
			wantStatus: http.StatusBadRequest,
			wantError:  "date must not be in the past",
		},
		{
			name:       "missing console id",
			url:        "/api/availability?date=" + testMonday,
			wantStatus: http.StatusBadRequest,
			wantError:  "console_id is required",
		},
		{
			name:       "non-numeric console id",
			url:        "/api/availability?date=" + testMonday + "&console_id=ps5",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid console_id; expected a positive integer",
		},
		{
			name:       "malformed game ids",
			url:        "/api/availability?date=" + testMonday + "&console_id=1&game_ids=1,x",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid game_ids; expected comma-separated integers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.get(t, tt.url)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
				if resp.Success {
					t.Error("success should be false on error")
				}
			}
		})
	}
}

func TestHandleAvailability_OpenMonday(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.get(t, "/api/availability?date="+testMonday+"&console_id=1&game_ids=100,101")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp AvailabilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if !resp.Success {
		t.Error("success should be true")
	}
	if resp.Date != testMonday {
		t.Errorf("date = %q, want %q", resp.Date, testMonday)
	}
	if resp.RequestedItems.ConsoleID != 1 {
		t.Errorf("consoleId = %d, want 1", resp.RequestedItems.ConsoleID)
	}
	if len(resp.RequestedItems.GameIDs) != 2 {
		t.Errorf("gameIds = %v, want two entries", resp.RequestedItems.GameIDs)
	}

	if len(resp.Availability) != 7 {
		t.Fatalf("availability has %d slots, want 7", len(resp.Availability))
	}
	if resp.Availability[0].Time != "09:00:00" {
		t.Errorf("first slot = %q, want 09:00:00", resp.Availability[0].Time)
	}
	if resp.Availability[6].Time != "15:00:00" {
		t.Errorf("last slot = %q, want 15:00:00", resp.Availability[6].Time)
	}
	for _, slot := range resp.Availability {
		if !slot.Available {
			t.Errorf("slot %s should be available", slot.Time)
		}
		if slot.Conflicts != nil {
			t.Errorf("slot %s should carry no conflicts key", slot.Time)
		}
	}
	if resp.Stats.TotalSlots != 7 || resp.Stats.AvailableSlots != 7 || resp.Stats.UnavailableSlots != 0 {
		t.Errorf("stats = %+v", resp.Stats)
	}
}

func TestHandleAvailability_ConsoleConflict(t *testing.T) {
	ts := setupTestServer(t)

	date, _ := time.Parse("2006-01-02", testMonday)
	res := &models.Reservation{UserID: 7, Date: date, StartMinute: 600, ConsoleID: ts.consoleID}
	if err := ts.db.CreateReservation(context.Background(), res); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	w := ts.get(t, "/api/availability?date="+testMonday+"&console_id=1")
	var resp AvailabilityResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	found := false
	for _, slot := range resp.Availability {
		if slot.Time == "10:00:00" {
			found = true
			if slot.Available {
				t.Error("10:00 slot should be unavailable")
			}
			if slot.Conflicts == nil || !slot.Conflicts.Console {
				t.Errorf("10:00 slot conflicts = %+v, want console:true", slot.Conflicts)
			}
		}
	}
	if !found {
		t.Fatal("10:00 slot missing from response")
	}

	// A different console is unaffected at 10:00.
	w = ts.get(t, "/api/availability?date="+testMonday+"&console_id=2")
	resp = AvailabilityResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	for _, slot := range resp.Availability {
		if slot.Time == "10:00:00" && !slot.Available {
			t.Error("10:00 slot should be available for the other console")
		}
	}
}

func TestHandleUnavailableDates(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.get(t, "/api/unavailable-dates")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp UnavailableDatesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	// Always-open schedule: no date bounds.
	if resp.Before != nil || resp.After != nil {
		t.Errorf("before/after = %v/%v, want null/null", resp.Before, resp.After)
	}
	// Only Monday is configured; the other six weekdays are disabled.
	if len(resp.DayOfWeek) != 6 {
		t.Errorf("dayOfWeek = %v, want 6 entries", resp.DayOfWeek)
	}
	for _, day := range resp.DayOfWeek {
		if day == 1 {
			t.Error("Monday should not be listed as disabled")
		}
	}
}

func TestHandleCreateReservation(t *testing.T) {
	ts := setupTestServer(t)

	post := func(body interface{}) *httptest.ResponseRecorder {
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/api/reservations", bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		return w
	}

	create := CreateReservationRequest{
		UserID: 42, Date: testMonday, StartMinute: 600, ConsoleID: ts.consoleID,
		GameIDs: []int64{100},
	}
	w := post(create)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var resp CreateReservationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if !resp.Success || resp.ReservationID == 0 {
		t.Fatalf("resp = %+v", resp)
	}

	// Same slot by another user: 409.
	dup := create
	dup.UserID = 43
	w = post(dup)
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Start off the slot grid: 400.
	offGrid := create
	offGrid.UserID = 44
	offGrid.StartMinute = 615
	w = post(offGrid)
	if w.Code != http.StatusBadRequest {
		t.Errorf("off-grid status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	// Cancel frees the slot.
	req := httptest.NewRequest(http.MethodDelete,
		"/api/reservations/"+itoa(resp.ReservationID), nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d", rec.Code, http.StatusOK)
	}

	w = post(dup)
	if w.Code != http.StatusOK {
		t.Errorf("rebooking after cancel status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestHandleReplaceSchedule_Auth(t *testing.T) {
	ts := setupTestServer(t)

	body := ReplaceScheduleRequest{
		AlwaysOpen: true,
		Weekly: []WeeklyRuleRequest{
			{DayOfWeek: 2, Enabled: true, HourRanges: []timerange.Range{{Start: 600, End: 1080}}},
		},
	}
	data, _ := json.Marshal(body)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/schedule", bytes.NewReader(data))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/admin/schedule", bytes.NewReader(data))
	req.Header.Set("X-Api-Key", testAPIKey)
	w = httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status with key = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// The replace dropped Monday: the next Monday query has no slots.
	resp := ts.get(t, "/api/availability?date="+testMonday+"&console_id=1")
	var avail AvailabilityResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &avail); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(avail.Availability) != 0 {
		t.Errorf("availability after replace = %d slots, want 0", len(avail.Availability))
	}
}

func TestHandleReplaceSchedule_MutuallyExclusiveGating(t *testing.T) {
	ts := setupTestServer(t)

	body := ReplaceScheduleRequest{
		AlwaysOpen: true,
		ActiveFrom: "2025-06-01",
	}
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPut, "/api/admin/schedule", bytes.NewReader(data))
	req.Header.Set("X-Api-Key", testAPIKey)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
