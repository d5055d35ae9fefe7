package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"igrovik/internal/metrics"
)

var exportColumns = []string{
	"ID", "Date", "Start", "User ID", "Console ID", "Game IDs", "Accessory IDs", "Status", "Created At",
}

// handleExportReservations streams an .xlsx of reservations in a range.
// GET /api/admin/reservations/export?start_date=YYYY-MM-DD&end_date=YYYY-MM-DD
func (s *HTTPServer) handleExportReservations(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_reservations")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	if q.Get("start_date") == "" || q.Get("end_date") == "" {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	start, err := time.Parse("2006-01-02", q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date format; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date format; expected YYYY-MM-DD")
		return
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "start_date must be before or equal to end_date")
		return
	}

	reservations, err := s.db.ReservationsBetween(r.Context(), start, end)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load reservations for export")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	f := excelize.NewFile()
	sheet := "Reservations"
	f.SetSheetName("Sheet1", sheet)

	for i, col := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(exportColumns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}

	for i, res := range reservations {
		row := []interface{}{
			res.ID,
			res.Date.Format("2006-01-02"),
			fmt.Sprintf("%02d:%02d", res.StartMinute/60, res.StartMinute%60),
			res.UserID,
			res.ConsoleID,
			joinInt64s(res.GameIDs),
			joinInt64s(res.AccessoryIDs),
			res.Status,
			res.CreatedAt.Format(time.RFC3339),
		}
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, val)
		}
	}

	filename := fmt.Sprintf("reservations_%s_%s.xlsx",
		start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := f.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("failed to write export")
	}
}

func joinInt64s(ids []int64) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
