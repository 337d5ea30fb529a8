// Package metrics exposes Prometheus instrumentation for extraction jobs.
//
// A nil *Metrics is valid and records nothing, so callers and tests can skip
// instrumentation without branching.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ytaudio"
	subsystem = "extractor"
)

type Metrics struct {
	// JobsTotal counts finished jobs. Labels: category ("ok" on success).
	JobsTotal *prometheus.CounterVec

	// AttemptsTotal counts extractor invocations. Labels: outcome.
	AttemptsTotal *prometheus.CounterVec

	JobDurationSeconds  prometheus.Histogram
	BackoffSecondsTotal prometheus.Counter
	JobsInFlight        prometheus.Gauge

	// RejectionsTotal counts requests refused before a job started.
	// Labels: reason (unauthorized, invalid, busy, throttled, blocked).
	RejectionsTotal *prometheus.CounterVec
}

// New registers all collectors on reg. Use prometheus.NewRegistry() in tests
// to avoid duplicate registration against the default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_total",
			Help:      "Finished extraction jobs by result category",
		}, []string{"category"}),
		AttemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts_total",
			Help:      "Extractor process invocations by outcome",
		}, []string{"outcome"}),
		JobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "job_duration_seconds",
			Help:      "Wall time of extraction jobs including backoff",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 60, 120, 300, 600},
		}),
		BackoffSecondsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "backoff_seconds_total",
			Help:      "Total time spent waiting between attempts",
		}),
		JobsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently running",
		}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rejections_total",
			Help:      "Requests rejected before a job started",
		}, []string{"reason"}),
	}
}

func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveBackoff(d time.Duration) {
	if m == nil {
		return
	}
	m.BackoffSecondsTotal.Add(d.Seconds())
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.JobsInFlight.Inc()
}

func (m *Metrics) JobFinished(category string, d time.Duration) {
	if m == nil {
		return
	}
	if category == "" {
		category = "ok"
	}
	m.JobsInFlight.Dec()
	m.JobsTotal.WithLabelValues(category).Inc()
	m.JobDurationSeconds.Observe(d.Seconds())
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}
