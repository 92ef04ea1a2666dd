package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/facegate/internal/attendance"
	"github.com/example/facegate/internal/store"
)

// AttendanceHandler handles attendance listing and export.
type AttendanceHandler struct {
	coord *attendance.Coordinator
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(coord *attendance.Coordinator) *AttendanceHandler {
	return &AttendanceHandler{coord: coord}
}

// filterFromQuery builds the mark filter from query parameters. An absent
// date means today in the attendance timezone.
func (h *AttendanceHandler) filterFromQuery(r *http.Request) (store.AttendanceFilter, error) {
	filter := store.AttendanceFilter{
		Date:     r.URL.Query().Get("date"),
		UserType: r.URL.Query().Get("user_type"),
		Status:   r.URL.Query().Get("status"),
		Company:  r.URL.Query().Get("company"),
	}
	if filter.Date == "" {
		filter.Date = h.coord.ScanDate(time.Now())
	} else if _, err := time.Parse(store.DateLayout, filter.Date); err != nil {
		return filter, fmt.Errorf("invalid date %q, want YYYY-MM-DD", filter.Date)
	}
	return filter, nil
}

// List returns the attendance marks for a day.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance is not configured")
		return
	}

	filter, err := h.filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	marks, err := h.coord.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":  filter.Date,
		"count": len(marks),
		"marks": marks,
	})
}

// Today returns the attendance marks for the current day regardless of any
// date query parameter.
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance is not configured")
		return
	}

	date := h.coord.ScanDate(time.Now())
	marks, err := h.coord.List(r.Context(), store.AttendanceFilter{Date: date})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"count": len(marks),
		"marks": marks,
	})
}

// Check reports whether an identity is already marked present today.
func (h *AttendanceHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance is not configured")
		return
	}

	identityID := chi.URLParam(r, "id")
	now := time.Now()

	marked, err := h.coord.HasMark(r.Context(), identityID, now)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"identity_id": identityID,
		"date":        h.coord.ScanDate(now),
		"marked":      marked,
	})
}

// Count returns the number of marks for a day.
func (h *AttendanceHandler) Count(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance is not configured")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.coord.ScanDate(time.Now())
	}

	count, err := h.coord.Count(r.Context(), date)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"date":  date,
		"count": count,
	})
}

// Export streams the day's marks as a CSV download.
func (h *AttendanceHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h.coord == nil {
		respondError(w, http.StatusServiceUnavailable, "attendance is not configured")
		return
	}

	filter, err := h.filterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	marks, err := h.coord.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=attendance-%s.csv", filter.Date))

	cw := csv.NewWriter(w)
	header := []string{"identity_id", "first_name", "last_name", "email", "user_type", "company", "job_title", "scan_date", "scan_time", "status", "similarity"}
	if err := cw.Write(header); err != nil {
		return
	}
	for _, m := range marks {
		row := []string{
			m.IdentityID,
			m.FirstName,
			m.LastName,
			m.Email,
			m.UserType,
			m.Company,
			m.JobTitle,
			m.ScanDate,
			m.ScanTime.Format(time.RFC3339),
			m.Status,
			strconv.FormatFloat(m.Similarity, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return
		}
	}
	cw.Flush()
}
