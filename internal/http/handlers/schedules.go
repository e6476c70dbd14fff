package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/schedule"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// SchedulesHandler handles HTTP requests for doctor schedules.
type SchedulesHandler struct {
	svc     *schedule.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewSchedulesHandler creates a schedules handler. metrics may be nil.
func NewSchedulesHandler(svc *schedule.Service, m *metrics.RecordMetrics, logger *logging.Logger) *SchedulesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulesHandler{svc: svc, metrics: m, logger: logger}
}

type blockRequest struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Category string `json:"category,omitempty"`
}

type replaceDayRequest struct {
	Blocks []blockRequest `json:"blocks"`
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil
}

func pathWeekday(r *http.Request) (schedule.Weekday, bool) {
	raw, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil {
		return 0, false
	}
	return schedule.Weekday(raw), true
}

// ReplaceDay handles PUT /doctors/{id}/schedule/{weekday}: the full block set
// for that weekday is validated and swapped atomically.
func (h *SchedulesHandler) ReplaceDay(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid doctor id"}})
		return
	}
	weekday, ok := pathWeekday(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid weekday"}})
		return
	}
	var req replaceDayRequest
	if !decodeBody(w, r, &req) {
		return
	}

	blocks := make([]schedule.Block, 0, len(req.Blocks))
	for _, b := range req.Blocks {
		blocks = append(blocks, schedule.Block{Start: b.Start, End: b.End, Category: b.Category})
	}

	if err := h.svc.ReplaceDay(r.Context(), doctorID, weekday, blocks); err != nil {
		h.metrics.ObserveOperation("schedule_block", "replace_day", "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("schedule_block", "replace_day", "ok")
	writeJSON(w, http.StatusOK, resultBody{
		OK:      true,
		Message: fmt.Sprintf("schedule for doctor %d on %s replaced with %d blocks", doctorID, weekday.Label(), len(blocks)),
	})
}

// ClearDay handles DELETE /doctors/{id}/schedule/{weekday}.
func (h *SchedulesHandler) ClearDay(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid doctor id"}})
		return
	}
	weekday, ok := pathWeekday(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid weekday"}})
		return
	}

	removed, err := h.svc.ClearDay(r.Context(), doctorID, weekday)
	if err != nil {
		h.metrics.ObserveOperation("schedule_block", "clear_day", "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("schedule_block", "clear_day", "ok")
	writeJSON(w, http.StatusOK, resultBody{
		OK:      true,
		Message: fmt.Sprintf("%d blocks removed for doctor %d on %s", removed, doctorID, weekday.Label()),
	})
}

// Weekly handles GET /doctors/{id}/schedule.
func (h *SchedulesHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid doctor id"}})
		return
	}

	week, err := h.svc.WeeklySchedule(r.Context(), doctorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Weekday-keyed map marshals with numeric keys; label them instead.
	out := make(map[string][]schedule.Block, len(week))
	for day, blocks := range week {
		out[day.Label()] = blocks
	}
	writeJSON(w, http.StatusOK, out)
}

// Summary handles GET /doctors/{id}/schedule/summary.
func (h *SchedulesHandler) Summary(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid doctor id"}})
		return
	}

	summary, err := h.svc.Summarize(r.Context(), doctorID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

// Availability handles GET /schedules/availability?weekday=&time=.
func (h *SchedulesHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw, err := strconv.Atoi(q.Get("weekday"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid weekday"}})
		return
	}

	available, err := h.svc.Availability(r.Context(), schedule.Weekday(raw), q.Get("time"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, available)
}
