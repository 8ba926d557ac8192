package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lifeline"

// Alert results
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
	ResultDropped   = "dropped"
)

// Metrics holds the collectors exported by the monitor and the alert path.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Enrollments      prometheus.Counter
	CheckIns         prometheus.Counter
	DeadlinesMissed  prometheus.Counter
	StaleDeadlines   prometheus.Counter
	Alerts           *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
	Subjects         prometheus.Gauge
	Sweeps           prometheus.Counter
	SweepsSkipped    prometheus.Counter
}

// New creates the collectors and registers them with reg (skipped when reg is nil)
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Enrollments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Count of subjects enrolled for monitoring.",
		}),
		CheckIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_ins_total",
			Help:      "Count of accepted check-ins.",
		}),
		DeadlinesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deadlines_missed_total",
			Help:      "Count of windows that elapsed without a check-in.",
		}),
		StaleDeadlines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_deadlines_total",
			Help:      "Count of deadline callbacks discarded because the schedule had moved on.",
		}),
		Alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Count of alert dispatches by result.",
		}, []string{"result"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_dispatch_duration_seconds",
			Help:      "Latency of alert dispatch calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		Subjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subjects",
			Help:      "Number of enrolled subjects.",
		}),
		Sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Count of completed window sweeps.",
		}),
		SweepsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_skipped_total",
			Help:      "Count of sweeps skipped because the previous sweep was still running.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Enrollments,
			m.CheckIns,
			m.DeadlinesMissed,
			m.StaleDeadlines,
			m.Alerts,
			m.DispatchDuration,
			m.Subjects,
			m.Sweeps,
			m.SweepsSkipped,
		)
	}

	return m
}

// RecordEnrollment records a newly enrolled subject
func (m *Metrics) RecordEnrollment() {
	if m == nil {
		return
	}
	m.Enrollments.Inc()
	m.Subjects.Inc()
}

// RecordCheckIn records an accepted check-in
func (m *Metrics) RecordCheckIn() {
	if m == nil {
		return
	}
	m.CheckIns.Inc()
}

// RecordDeadlineMissed records a window that elapsed without a check-in
func (m *Metrics) RecordDeadlineMissed() {
	if m == nil {
		return
	}
	m.DeadlinesMissed.Inc()
}

// RecordStaleDeadline records a discarded deadline callback
func (m *Metrics) RecordStaleDeadline() {
	if m == nil {
		return
	}
	m.StaleDeadlines.Inc()
}

// RecordAlert records the outcome and latency of a dispatch
func (m *Metrics) RecordAlert(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Alerts.WithLabelValues(result).Inc()
	if result != ResultDropped {
		m.DispatchDuration.Observe(duration.Seconds())
	}
}

// RecordSweep records a completed sweep
func (m *Metrics) RecordSweep() {
	if m == nil {
		return
	}
	m.Sweeps.Inc()
}

// RecordSweepSkipped records a sweep that was skipped by the overlap guard
func (m *Metrics) RecordSweepSkipped() {
	if m == nil {
		return
	}
	m.SweepsSkipped.Inc()
}
