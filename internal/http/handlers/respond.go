// Package handlers exposes the entity operations over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/andescare/hospital-platform/internal/crypto"
	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
	"github.com/andescare/hospital-platform/internal/schedule"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// errorBody is the failure envelope returned for every error.
type errorBody struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// resultBody wraps a successful mutation with its confirmation message.
type resultBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the error taxonomy to HTTP statuses. Validation and
// schedule failures are client errors; conflicts map to 409; anything
// unrecognized is a storage or crypto fault and surfaces as 500 so operators
// can distinguish it from user mistakes.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var (
		valErr     *domain.ValidationError
		nfErr      *domain.NotFoundError
		dupErr     *domain.DuplicateError
		refErr     *domain.ReferentialIntegrityError
		overlapErr *schedule.OverlapError
		tableErr   *store.InvalidTableError
		keyErr     *crypto.KeyError
	)
	switch {
	case errors.As(err, &valErr):
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: valErr.Error()}})
	case errors.As(err, &overlapErr):
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "overlap", Message: overlapErr.Error()}})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, map[string]errorBody{"error": {Category: "not_found", Message: nfErr.Error()}})
	case errors.As(err, &dupErr):
		writeJSON(w, http.StatusConflict, map[string]errorBody{"error": {Category: "duplicate", Message: dupErr.Error()}})
	case errors.As(err, &refErr):
		writeJSON(w, http.StatusConflict, map[string]errorBody{"error": {Category: "referential_integrity", Message: refErr.Error()}})
	case errors.As(err, &tableErr):
		logger.Error("table outside catalog reached a handler", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {Category: "internal", Message: "internal error"}})
	case errors.As(err, &keyErr):
		logger.Error("encryption key unusable", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {Category: "crypto", Message: "encryption failure"}})
	default:
		logger.Error("storage failure", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]errorBody{"error": {Category: "storage", Message: "storage failure"}})
	}
}

// observeConflict feeds duplicate rejections and blocked deletes into their
// dedicated counters; other errors are covered by the per-operation series.
func observeConflict(m *metrics.RecordMetrics, err error) {
	var (
		dupErr *domain.DuplicateError
		refErr *domain.ReferentialIntegrityError
	)
	switch {
	case errors.As(err, &dupErr):
		m.ObserveDuplicateHit(dupErr.Table, dupErr.Field)
	case errors.As(err, &refErr):
		m.ObserveBlockedDelete(refErr.Table, refErr.BlockingTable)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "invalid request body"}})
		return false
	}
	return true
}
