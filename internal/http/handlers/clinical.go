package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/clinical"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// ClinicalHandler handles HTTP requests for diagnoses, treatments, medical
// record entries and encounters.
type ClinicalHandler struct {
	svc     *clinical.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewClinicalHandler creates a clinical handler. metrics may be nil.
func NewClinicalHandler(svc *clinical.Service, m *metrics.RecordMetrics, logger *logging.Logger) *ClinicalHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ClinicalHandler{svc: svc, metrics: m, logger: logger}
}

func (h *ClinicalHandler) created(w http.ResponseWriter, table string, id int64, data any) {
	h.metrics.ObserveOperation(table, "create", "ok")
	writeJSON(w, http.StatusCreated, resultBody{
		OK:      true,
		Message: fmt.Sprintf("%s created with id %d", table, id),
		Data:    data,
	})
}

func (h *ClinicalHandler) deleteEntity(w http.ResponseWriter, r *http.Request, table string, del func(int64) error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	if err := del(id); err != nil {
		h.metrics.ObserveOperation(table, "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation(table, "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("%s %d deleted", table, id)})
}

// CreateDiagnosis handles POST /diagnoses.
func (h *ClinicalHandler) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	var req clinical.Diagnosis
	if !decodeBody(w, r, &req) {
		return
	}
	d, err := h.svc.CreateDiagnosis(r.Context(), req)
	if err != nil {
		h.metrics.ObserveOperation("diagnosis", "create", "error")
		writeError(w, h.logger, err)
		return
	}
	h.created(w, "diagnosis", d.ID, d)
}

// ListDiagnoses handles GET /diagnoses.
func (h *ClinicalHandler) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListDiagnoses(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteDiagnosis handles DELETE /diagnoses/{id}.
func (h *ClinicalHandler) DeleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, "diagnosis", func(id int64) error {
		return h.svc.DeleteDiagnosis(r.Context(), id)
	})
}

// CreateTreatment handles POST /treatments.
func (h *ClinicalHandler) CreateTreatment(w http.ResponseWriter, r *http.Request) {
	var req clinical.Treatment
	if !decodeBody(w, r, &req) {
		return
	}
	tr, err := h.svc.CreateTreatment(r.Context(), req)
	if err != nil {
		h.metrics.ObserveOperation("treatment", "create", "error")
		writeError(w, h.logger, err)
		return
	}
	h.created(w, "treatment", tr.ID, tr)
}

// ListTreatments handles GET /treatments.
func (h *ClinicalHandler) ListTreatments(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListTreatments(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteTreatment handles DELETE /treatments/{id}.
func (h *ClinicalHandler) DeleteTreatment(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, "treatment", func(id int64) error {
		return h.svc.DeleteTreatment(r.Context(), id)
	})
}

// CreateMedicalRecord handles POST /medical-records.
func (h *ClinicalHandler) CreateMedicalRecord(w http.ResponseWriter, r *http.Request) {
	var req clinical.MedicalRecord
	if !decodeBody(w, r, &req) {
		return
	}
	rec, err := h.svc.CreateMedicalRecord(r.Context(), req)
	if err != nil {
		h.metrics.ObserveOperation("medical_record", "create", "error")
		writeError(w, h.logger, err)
		return
	}
	h.created(w, "medical_record", rec.ID, rec)
}

// ListMedicalRecords handles GET /medical-records.
func (h *ClinicalHandler) ListMedicalRecords(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListMedicalRecords(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteMedicalRecord handles DELETE /medical-records/{id}.
func (h *ClinicalHandler) DeleteMedicalRecord(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, "medical_record", func(id int64) error {
		return h.svc.DeleteMedicalRecord(r.Context(), id)
	})
}

// CreateEncounter handles POST /encounters.
func (h *ClinicalHandler) CreateEncounter(w http.ResponseWriter, r *http.Request) {
	var req clinical.Encounter
	if !decodeBody(w, r, &req) {
		return
	}
	enc, err := h.svc.CreateEncounter(r.Context(), req)
	if err != nil {
		h.metrics.ObserveOperation("encounter", "create", "error")
		writeError(w, h.logger, err)
		return
	}
	h.created(w, "encounter", enc.ID, enc)
}

// ListEncounters handles GET /encounters.
func (h *ClinicalHandler) ListEncounters(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.ListEncounters(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// DeleteEncounter handles DELETE /encounters/{id}.
func (h *ClinicalHandler) DeleteEncounter(w http.ResponseWriter, r *http.Request) {
	h.deleteEntity(w, r, "encounter", func(id int64) error {
		return h.svc.DeleteEncounter(r.Context(), id)
	})
}
