package handlers

import (
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// AttendanceHandler handles attendance reporting endpoints.
type AttendanceHandler struct {
	service Service
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(service Service) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Report returns the attendance report for a session date, today when the
// date query parameter is absent: per-status totals plus the records.
func (h *AttendanceHandler) Report(w http.ResponseWriter, r *http.Request) {
	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(constants.DateFormat, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, err := h.service.Report(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attendance report")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":    date.Format(constants.DateFormat),
		"count":   len(summary.Records),
		"present": summary.Present,
		"late":    summary.Late,
		"absent":  summary.Absent,
		"records": toRecordListJSON(summary.Records),
	})
}
