package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/doctors"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// DoctorsHandler handles HTTP requests for doctor records.
type DoctorsHandler struct {
	svc     *doctors.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewDoctorsHandler creates a doctors handler. metrics may be nil.
func NewDoctorsHandler(svc *doctors.Service, m *metrics.RecordMetrics, logger *logging.Logger) *DoctorsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DoctorsHandler{svc: svc, metrics: m, logger: logger}
}

type doctorRequest struct {
	NationalID   string  `json:"national_id"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	SpecialtyID  int64   `json:"specialty_id"`
	ScheduleNote *string `json:"schedule_note,omitempty"`
}

func (req doctorRequest) input() doctors.Input {
	return doctors.Input{
		NationalID:   req.NationalID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		SpecialtyID:  req.SpecialtyID,
		ScheduleNote: req.ScheduleNote,
	}
}

// Create handles POST /doctors.
func (h *DoctorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req doctorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	doc, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		h.metrics.ObserveOperation("doctor", "create", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("doctor", "create", "ok")
	writeJSON(w, http.StatusCreated, resultBody{
		OK:      true,
		Message: fmt.Sprintf("doctor '%s %s' created with id %d", doc.FirstName, doc.LastName, doc.ID),
		Data:    doc,
	})
}

// List handles GET /doctors.
func (h *DoctorsHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

// Update handles PUT /doctors/{id}.
func (h *DoctorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	var req doctorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Update(r.Context(), id, req.input()); err != nil {
		h.metrics.ObserveOperation("doctor", "update", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("doctor", "update", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("doctor %d updated", id)})
}

// Delete handles DELETE /doctors/{id}.
func (h *DoctorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.metrics.ObserveOperation("doctor", "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("doctor", "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("doctor %d deleted", id)})
}

// Search handles GET /doctors/search.
func (h *DoctorsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := doctors.Filter{
		FirstName:  q.Get("first_name"),
		LastName:   q.Get("last_name"),
		NationalID: q.Get("national_id"),
	}
	if raw := q.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
			return
		}
		f.ID = id
	}
	if raw := q.Get("specialty_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid specialty_id"}})
			return
		}
		f.SpecialtyID = id
	}

	records, err := h.svc.Search(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
