package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the card workflow. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Single-record and batch state writes by kind and operation
	Transitions *prometheus.CounterVec

	// Batch runs by operation and outcome (applied, noop, failed)
	BatchRuns *prometheus.CounterVec

	// Records changed by batch runs
	BatchAffected *prometheus.CounterVec

	// Notification outcomes by kind (sent, failed, skipped)
	Notifications *prometheus.CounterVec

	// Photo crop render latency
	CropDuration prometheus.Histogram
}

// New registers the workflow metrics on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carnet_transitions_total",
			Help: "Records moved between lifecycle states by kind and operation",
		}, []string{"kind", "operation"}),

		BatchRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carnet_batch_runs_total",
			Help: "Batch transition runs by operation and outcome",
		}, []string{"operation", "outcome"}),

		BatchAffected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carnet_batch_records_affected_total",
			Help: "Records changed by batch transitions",
		}, []string{"operation"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "carnet_notifications_total",
			Help: "Notification dispatch outcomes by kind",
		}, []string{"kind", "outcome"}),

		CropDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "carnet_photo_crop_duration_seconds",
			Help:    "Duration of rendering a cropped photo artifact",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncTransitions(kind, operation string, n int) {
	if m != nil && n > 0 {
		m.Transitions.WithLabelValues(kind, operation).Add(float64(n))
	}
}

func (m *Metrics) IncBatchRun(operation, outcome string) {
	if m != nil {
		m.BatchRuns.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) AddBatchAffected(operation string, n int) {
	if m != nil && n > 0 {
		m.BatchAffected.WithLabelValues(operation).Add(float64(n))
	}
}

func (m *Metrics) IncNotification(kind, outcome string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) ObserveCrop(d time.Duration) {
	if m != nil {
		m.CropDuration.Observe(d.Seconds())
	}
}
