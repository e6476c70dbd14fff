package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/observability/metrics"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)
	return rr.Body.String()
}

func TestObserveConflictCountsDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRecordMetrics(reg)

	observeConflict(m, fmt.Errorf("doctors: %w", &domain.DuplicateError{
		Table: "doctor", Field: "email", Value: "x@y.cl", ConflictID: 4,
	}))

	assert.Contains(t, scrape(t, reg),
		`hospital_records_duplicate_rejections_total{field="email",table="doctor"} 1`)
}

func TestObserveConflictCountsBlockedDeletes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRecordMetrics(reg)

	observeConflict(m, &domain.ReferentialIntegrityError{
		Table: "diagnosis", ID: 7, BlockingTable: "treatment",
	})

	assert.Contains(t, scrape(t, reg),
		`hospital_records_blocked_deletes_total{blocking_table="treatment",table="diagnosis"} 1`)
}

func TestObserveConflictIgnoresOtherErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewRecordMetrics(reg)

	observeConflict(m, errors.New("connection refused"))
	observeConflict(nil, errors.New("nil metrics are a no-op"))

	body := scrape(t, reg)
	assert.NotContains(t, body, "duplicate_rejections_total{")
	assert.NotContains(t, body, "blocked_deletes_total{")
}
