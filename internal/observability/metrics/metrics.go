package metrics

import "github.com/prometheus/client_golang/prometheus"

// RecordMetrics exposes counters/histograms for entity operations.
type RecordMetrics struct {
	operationsTotal   *prometheus.CounterVec
	duplicateHits     *prometheus.CounterVec
	blockedDeletes    *prometheus.CounterVec
	duplicateScanSecs *prometheus.HistogramVec
}

func NewRecordMetrics(reg prometheus.Registerer) *RecordMetrics {
	m := &RecordMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "records",
			Name:      "operations_total",
			Help:      "Total entity operations by table, operation and outcome",
		}, []string{"table", "operation", "outcome"}),
		duplicateHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "records",
			Name:      "duplicate_rejections_total",
			Help:      "Writes rejected because a sealed field value already exists",
		}, []string{"table", "field"}),
		blockedDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "records",
			Name:      "blocked_deletes_total",
			Help:      "Deletes refused by the referential integrity guard",
		}, []string{"table", "blocking_table"}),
		duplicateScanSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hospital",
			Subsystem: "records",
			Name:      "duplicate_scan_seconds",
			Help:      "Latency of full-table decrypt-and-compare duplicate scans",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.duplicateHits, m.blockedDeletes, m.duplicateScanSecs)
	return m
}

func (m *RecordMetrics) ObserveOperation(table, operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(table, operation, outcome).Inc()
}

func (m *RecordMetrics) ObserveDuplicateHit(table, field string) {
	if m == nil {
		return
	}
	m.duplicateHits.WithLabelValues(table, field).Inc()
}

func (m *RecordMetrics) ObserveBlockedDelete(table, blockingTable string) {
	if m == nil {
		return
	}
	m.blockedDeletes.WithLabelValues(table, blockingTable).Inc()
}

func (m *RecordMetrics) ObserveDuplicateScan(table string, seconds float64) {
	if m == nil {
		return
	}
	m.duplicateScanSecs.WithLabelValues(table).Observe(seconds)
}
