package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/specialties"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// SpecialtiesHandler handles HTTP requests for the specialty catalog.
type SpecialtiesHandler struct {
	svc     *specialties.Service
	metrics *metrics.RecordMetrics
	logger  *logging.Logger
}

// NewSpecialtiesHandler creates a specialties handler. metrics may be nil.
func NewSpecialtiesHandler(svc *specialties.Service, m *metrics.RecordMetrics, logger *logging.Logger) *SpecialtiesHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SpecialtiesHandler{svc: svc, metrics: m, logger: logger}
}

type specialtyRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Create handles POST /specialties.
func (h *SpecialtiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req specialtyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sp, err := h.svc.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		h.metrics.ObserveOperation("specialty", "create", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("specialty", "create", "ok")
	writeJSON(w, http.StatusCreated, resultBody{
		OK:      true,
		Message: fmt.Sprintf("specialty %q created with id %d", sp.Name, sp.ID),
		Data:    sp,
	})
}

// List handles GET /specialties.
func (h *SpecialtiesHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// Update handles PUT /specialties/{id}.
func (h *SpecialtiesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	var req specialtyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.Update(r.Context(), id, req.Name, req.Description); err != nil {
		h.metrics.ObserveOperation("specialty", "update", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("specialty", "update", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("specialty %d updated", id)})
}

// Delete handles DELETE /specialties/{id}.
func (h *SpecialtiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.metrics.ObserveOperation("specialty", "delete", "error")
		observeConflict(h.metrics, err)
		writeError(w, h.logger, err)
		return
	}
	h.metrics.ObserveOperation("specialty", "delete", "ok")
	writeJSON(w, http.StatusOK, resultBody{OK: true, Message: fmt.Sprintf("specialty %d deleted", id)})
}

// Search handles GET /specialties/search?name=&id=.
func (h *SpecialtiesHandler) Search(w http.ResponseWriter, r *http.Request) {
	var id int64
	if raw := r.URL.Query().Get("id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid id"}})
			return
		}
		id = parsed
	}
	records, err := h.svc.Search(r.Context(), r.URL.Query().Get("name"), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
