package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/patients"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// PatientsHandler handles HTTP requests for patient records.
type PatientsHandler struct {
	svc     *patients.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewPatientsHandler creates a patients handler. metrics may be nil.
func NewPatientsHandler(svc *patients.Service, m *metrics.RecordMetrics, logger *logging.Logger) *PatientsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PatientsHandler{svc: svc, metrics: m, logger: logger}
}

type patientRequest struct {
	NationalID         string  `json:"national_id"`
	FirstName          string  `json:"first_name"`
	LastName           string  `json:"last_name"`
	BirthDate          string  `json:"birth_date"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	Gender             string  `json:"gender"`
	Address            string  `json:"address"`
	HealthSystem       string  `json:"health_system"`
	Nationality        string  `json:"nationality"`
	EmergencyFirstName *string `json:"emergency_first_name,omitempty"`
	EmergencyLastName  *string `json:"emergency_last_name,omitempty"`
	EmergencyPhone     *string `json:"emergency_phone,omitempty"`
}

func (req patientRequest) input() patients.Input {
	return patients.Input{
		NationalID:         req.NationalID,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		BirthDate:          req.BirthDate,
		Email:              req.Email,
		Phone:              req.Phone,
		Gender:             req.Gender,
		Address:            req.Address,
		HealthSystem:       req.HealthSystem,
		Nationality:        req.Nationality,
		EmergencyFirstName: req.EmergencyFirstName,
		EmergencyLastName:  req.EmergencyLastName,
		EmergencyPhone:     req.EmergencyPhone,
	}
}

// Create handles POST /patients.
func (h *PatientsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.svc.Create(r.Context(), req.input())
	if err != nil {
		h.metrics.ObserveOperation("patient", "create", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("patient", "create", "ok")
	writeJSON(w, http.StatusCreated, resultBody{
		OK:      true,
		Message: fmt.Sprintf("patient created with id %d", p.ID),
		Data:    p,
	})
}

// List handles GET /patients.
func (h *PatientsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Update handles PUT /patients/{id}.
func (h *PatientsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	var req patientRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Update(r.Context(), id, req.input()); err != nil {
		h.metrics.ObserveOperation("patient", "update", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("patient", "update", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("patient %d updated", id)})
}

// Delete handles DELETE /patients/{id}.
func (h *PatientsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.metrics.ObserveOperation("patient", "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("patient", "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("patient %d deleted", id)})
}

// DeleteByNationalID handles DELETE /patients/by-national-id/{nationalID}.
func (h *PatientsHandler) DeleteByNationalID(w http.ResponseWriter, r *http.Request) {
	nationalID := chi.URLParam(r, "nationalID")
	id, err := h.svc.DeleteByNationalID(r.Context(), nationalID)
	if err != nil {
		h.metrics.ObserveOperation("patient", "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("patient", "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("patient %d deleted", id)})
}

// Search handles GET /patients/search.
func (h *PatientsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := patients.Filter{
		FirstName:    q.Get("first_name"),
		LastName:     q.Get("last_name"),
		Gender:       q.Get("gender"),
		HealthSystem: q.Get("health_system"),
		Nationality:  q.Get("nationality"),
		NationalID:   q.Get("national_id"),
	}
	if raw := q.Get("id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
			return
		}
		f.ID = id
	}

	records, err := h.svc.Search(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
