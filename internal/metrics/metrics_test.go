package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.RecordEnrollment()
	m.RecordEnrollment()
	m.RecordCheckIn()
	m.RecordDeadlineMissed()
	m.RecordStaleDeadline()
	m.RecordAlert(ResultDelivered, 10*time.Millisecond)
	m.RecordAlert(ResultFailed, time.Second)
	m.RecordAlert(ResultDropped, 0)
	m.RecordSweep()
	m.RecordSweepSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Enrollments))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Subjects))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CheckIns))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeadlinesMissed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleDeadlines))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues(ResultDelivered)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues(ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Alerts.WithLabelValues(ResultDropped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sweeps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepsSkipped))

	count, err := testutil.GatherAndCount(reg, "lifeline_alert_dispatch_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEnrollment()
		m.RecordCheckIn()
		m.RecordDeadlineMissed()
		m.RecordStaleDeadline()
		m.RecordAlert(ResultFailed, time.Second)
		m.RecordSweep()
		m.RecordSweepSkipped()
	})
}
