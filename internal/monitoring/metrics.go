package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	ScansTotal   *prometheus.CounterVec
	ProbeErrors  *prometheus.CounterVec
	ScanDuration prometheus.Histogram
	BulkRuns     prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_scans_total",
			Help: "The total number of scans, by final status",
		}, []string{"status"}),
		ProbeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_probe_errors_total",
			Help: "The total number of probe failures, by probe",
		}, []string{"probe"}),
		ScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_scan_duration_seconds",
			Help:    "Wall-clock duration of full scans",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		BulkRuns: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scanner_bulk_runs_total",
			Help: "The total number of bulk re-scan runs started",
		}),
	}
}

func (m *Metrics) ObserveScan(status string, d time.Duration) {
	m.ScansTotal.WithLabelValues(status).Inc()
	m.ScanDuration.Observe(d.Seconds())
}

func (m *Metrics) IncProbeError(probe string) {
	m.ProbeErrors.WithLabelValues(probe).Inc()
}

func (m *Metrics) IncBulkRuns() {
	m.BulkRuns.Inc()
}
