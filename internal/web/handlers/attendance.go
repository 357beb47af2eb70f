package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// AttendanceHandler handles attendance ledger endpoints.
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: l}
}

// AttendanceResponse lists ledger records.
type AttendanceResponse struct {
	Date    string          `json:"date,omitempty"`
	Count   int             `json:"count"`
	Records []ledger.Record `json:"records"`
}

// dateParam returns the validated "date" query parameter. The value "today"
// resolves to the current date in the ledger's time zone.
func (h *AttendanceHandler) dateParam(r *http.Request) (string, error) {
	date := r.URL.Query().Get("date")
	switch date {
	case "":
		return "", nil
	case "today":
		return h.ledger.Today(), nil
	default:
		return ledger.ParseDate(date)
	}
}

// List returns the ledger records in the order they were marked, optionally
// restricted to one date.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	records := slices.Collect(h.ledger.Query(date))
	if records == nil {
		records = []ledger.Record{}
	}
	respondJSON(w, http.StatusOK, AttendanceResponse{
		Date:    date,
		Count:   len(records),
		Records: records,
	})
}

// Export downloads the ledger in the Name,Date,Time CSV format. An optional
// date restricts the export to one day.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	date, err := h.dateParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename := "attendance.csv"
	if date != "" {
		filename = fmt.Sprintf("attendance-%s.csv", date)
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)

	if err := ledger.WriteCSV(w, slices.Collect(h.ledger.Query(date))); err != nil {
		slog.Error("failed to write attendance export", "error", err)
	}
}
