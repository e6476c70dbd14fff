package handlers

import (
	"net/http"
	"strconv"

	"github.com/andescare/hospital-platform/internal/compliance"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// AuditHandler exposes the audit trail for operators.
type AuditHandler struct {
	audit  *compliance.AuditService
	logger *logging.Logger
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(audit *compliance.AuditService, logger *logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditHandler{audit: audit, logger: logger}
}

// ListEvents handles GET /audit/events?table=&limit=.
func (h *AuditHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	table := store.Table(r.URL.Query().Get("table"))
	if !table.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{"error": {Category: "validation", Message: "unknown table"}})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.audit.QueryEvents(r.Context(), string(table), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []compliance.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
