package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run statuses
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusConflict = "conflict"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RunsTotal tracks completed extraction runs
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltastage_runs_total",
			Help: "Total number of extraction runs",
		},
		[]string{"status"}, // status: success, failed, conflict
	)

	// RunDuration measures run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deltastage_run_duration_seconds",
			Help:    "Extraction run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 0.1s to ~7m
		},
		[]string{"status"},
	)

	// RowsExtracted counts rows pulled from the source
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltastage_rows_extracted_total",
			Help: "Total number of rows extracted per table",
		},
		[]string{"table"},
	)

	// StageResults counts stage writes by outcome
	StageResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltastage_stage_results_total",
			Help: "Total number of stage writes per table and result",
		},
		[]string{"table", "result"}, // result: Success, Failure
	)

	// WatermarkTimestamp tracks the published watermark per table
	WatermarkTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "deltastage_watermark_timestamp_seconds",
			Help: "Published watermark per table (unix timestamp)",
		},
		[]string{"table"},
	)

	// WatermarkPublished counts successful watermark publications
	WatermarkPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "deltastage_watermark_published_total",
			Help: "Total number of watermark publications",
		},
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deltastage_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "kind"},
	)
)

// RecordRun records a finished run
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRows records rows extracted for a table
func RecordRows(table string, count int) {
	RowsExtracted.WithLabelValues(table).Add(float64(count))
}

// RecordStage records a stage write outcome
func RecordStage(table, result string) {
	StageResults.WithLabelValues(table, result).Inc()
}

// RecordWatermark records a published watermark
func RecordWatermark(tables map[string]time.Time) {
	WatermarkPublished.Inc()

	for table, ts := range tables {
		WatermarkTimestamp.WithLabelValues(table).Set(float64(ts.Unix()))
	}
}

// RecordError records an error
func RecordError(component, kind string) {
	ErrorsTotal.WithLabelValues(component, kind).Inc()
}
