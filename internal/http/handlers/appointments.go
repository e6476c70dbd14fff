package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/appointments"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// AppointmentsHandler handles HTTP requests for appointments.
type AppointmentsHandler struct {
	svc     *appointments.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewAppointmentsHandler creates an appointments handler. metrics may be nil.
func NewAppointmentsHandler(svc *appointments.Service, m *metrics.RecordMetrics, logger *logging.Logger) *AppointmentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentsHandler{svc: svc, metrics: m, logger: logger}
}

type appointmentRequest struct {
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	Status        string `json:"status,omitempty"`
	Reason        string `json:"reason"`
	PatientID     int64  `json:"patient_id"`
	DoctorID      int64  `json:"doctor_id"`
}

func (req appointmentRequest) input() appointments.Input {
	return appointments.Input{
		ScheduledDate: req.ScheduledDate,
		ScheduledTime: req.ScheduledTime,
		Status:        req.Status,
		Reason:        req.Reason,
		PatientID:     req.PatientID,
		DoctorID:      req.DoctorID,
	}
}

// Create handles POST /appointments.
func (h *AppointmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req appointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	appt, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		h.metrics.ObserveOperation("appointment", "create", "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("appointment", "create", "ok")
	writeJSON(w, http.StatusCreated, resultBody{
		OK:      true,
		Message: fmt.Sprintf("appointment created with id %d", appt.ID),
		Data:    appt,
	})
}

// List handles GET /appointments.
func (h *AppointmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Update handles PUT /appointments/{id}.
func (h *AppointmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	var req appointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Update(r.Context(), id, req.input()); err != nil {
		h.metrics.ObserveOperation("appointment", "update", "error")
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("appointment", "update", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("appointment %d updated", id)})
}

// Delete handles DELETE /appointments/{id}.
func (h *AppointmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.metrics.ObserveOperation("appointment", "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("appointment", "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("appointment %d deleted", id)})
}

// Search handles GET /appointments/search.
func (h *AppointmentsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := appointments.Filter{
		ScheduledDate:     q.Get("scheduled_date"),
		Status:            q.Get("status"),
		PatientNationalID: q.Get("patient_national_id"),
	}
	for param, dst := range map[string]*int64{
		"id":         &f.ID,
		"patient_id": &f.PatientID,
		"doctor_id":  &f.DoctorID,
	} {
		raw := q.Get(param)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid " + param}})
			return
		}
		*dst = id
	}

	records, err := h.svc.Search(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
