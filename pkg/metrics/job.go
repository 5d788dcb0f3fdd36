package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics records metadata for scheduled jobs such as the alert sweeper.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	alerts   *prometheus.CounterVec
}

// NewJobMetrics registers the job metrics on the provided registerer.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful scheduled job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed scheduled job executions.",
	}, []string{"job"})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_alerts_emitted_total",
		Help: "Stock alert events emitted, labeled by alert type.",
	}, []string{"type"})
	reg.MustRegister(duration, success, failure, alerts)
	return &JobMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		alerts:   alerts,
	}
}

// ObserveDuration records the duration for the named job.
func (j *JobMetrics) ObserveDuration(job string, duration time.Duration) {
	if j == nil || j.duration == nil {
		return
	}
	j.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named job.
func (j *JobMetrics) IncSuccess(job string) {
	if j == nil || j.success == nil {
		return
	}
	j.success.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncFailure increments the failure counter for the named job.
func (j *JobMetrics) IncFailure(job string) {
	if j == nil || j.failure == nil {
		return
	}
	j.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncAlert increments the emitted-alerts counter for the given alert type.
func (j *JobMetrics) IncAlert(alertType string) {
	if j == nil || j.alerts == nil {
		return
	}
	j.alerts.WithLabelValues(normalizeLabel(alertType)).Inc()
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
