package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/metrics"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/monitor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 300 * time.Second

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []string
	err     error
	entered chan string   // receives the subject ID of each call when set
	release chan struct{} // blocks every call until closed when set
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, subjectID string, missedAt time.Time) (model.DeliveryReceipt, error) {
	d.mu.Lock()
	d.calls = append(d.calls, subjectID)
	d.mu.Unlock()

	if d.entered != nil {
		d.entered <- subjectID
	}
	if d.release != nil {
		<-d.release
	}
	if d.err != nil {
		return model.DeliveryReceipt{}, d.err
	}
	return model.DeliveryReceipt{ID: "receipt-" + subjectID, Status: "queued"}, nil
}

func (d *fakeDispatcher) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func newTestSweeper(d monitor.Dispatcher) (*Sweeper, *clock.Mock, *metrics.Metrics) {
	mock := clock.NewMock()
	mt := metrics.New(nil)
	s := NewSweeper(Config{
		Window:       testWindow,
		AlertTimeout: time.Second,
		Concurrency:  4,
		Clock:        mock,
		Metrics:      mt,
	}, d)
	return s, mock, mt
}

func TestSweep_AlertsSubjectsWithoutCheckIn(t *testing.T) {
	d := &fakeDispatcher{}
	s, mock, mt := newTestSweeper(d)

	require.NoError(t, s.Enroll("Andy"))
	require.NoError(t, s.Enroll("Beth"))

	mock.Add(100 * time.Second)
	_, err := s.CheckIn("Beth")
	require.NoError(t, err)

	mock.Add(200 * time.Second)
	s.Sweep(context.Background())

	assert.Equal(t, []string{"Andy"}, d.Calls())
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.DeadlinesMissed))
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.Sweeps))

	snapshot := s.Status()
	assert.Equal(t, model.PolicySweep, snapshot.Policy)
	require.NotNil(t, snapshot.LastSweepAt)
	assert.Equal(t, int64(300000), snapshot.LastSweepAt.UnixMilli())

	require.Len(t, snapshot.Subjects, 2)
	andy, beth := snapshot.Subjects[0], snapshot.Subjects[1]
	require.NotNil(t, andy.LastAlertAt)
	assert.Equal(t, int64(300000), andy.LastAlertAt.UnixMilli())
	assert.Equal(t, int64(600000), andy.DeadlineAt.UnixMilli())
	assert.Nil(t, beth.LastAlertAt)
}

func TestSweep_ResetsFlags(t *testing.T) {
	d := &fakeDispatcher{}
	s, mock, _ := newTestSweeper(d)

	_, err := s.CheckIn("Andy")
	require.NoError(t, err)

	mock.Add(testWindow)
	s.Sweep(context.Background())
	assert.Empty(t, d.Calls())

	// No check-in during the second window
	mock.Add(testWindow)
	s.Sweep(context.Background())
	assert.Equal(t, []string{"Andy"}, d.Calls())
}

func TestSweep_GenerationIncreases(t *testing.T) {
	s, mock, _ := newTestSweeper(&fakeDispatcher{})

	require.NoError(t, s.Enroll("Andy"))
	assert.Equal(t, uint64(1), s.Status().Subjects[0].Generation)

	s.CheckIn("Andy")
	assert.Equal(t, uint64(2), s.Status().Subjects[0].Generation)

	mock.Add(testWindow)
	s.Sweep(context.Background())
	assert.Equal(t, uint64(3), s.Status().Subjects[0].Generation)
}

func TestSweep_SkipsOverlappingRun(t *testing.T) {
	d := &fakeDispatcher{
		entered: make(chan string, 1),
		release: make(chan struct{}),
	}
	s, _, mt := newTestSweeper(d)
	require.NoError(t, s.Enroll("Andy"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Sweep(context.Background())
	}()
	<-d.entered

	s.Sweep(context.Background())
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.SweepsSkipped))

	close(d.release)
	<-done
	assert.Len(t, d.Calls(), 1)
}

func TestSweep_CheckInDuringSlowSweepCountsForNextWindow(t *testing.T) {
	d := &fakeDispatcher{
		entered: make(chan string, 2),
		release: make(chan struct{}),
	}
	s, mock, _ := newTestSweeper(d)
	require.NoError(t, s.Enroll("Andy"))
	require.NoError(t, s.Enroll("Beth"))

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Sweep(context.Background())
	}()
	<-d.entered
	<-d.entered

	_, err := s.CheckIn("Andy")
	require.NoError(t, err)

	close(d.release)
	<-done

	d.release = nil
	d.entered = nil
	mock.Add(testWindow)
	s.Sweep(context.Background())

	calls := d.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "Beth", calls[2])
}

func TestSweep_DispatchFailure(t *testing.T) {
	d := &fakeDispatcher{err: errors.New("provider down")}
	s, _, mt := newTestSweeper(d)
	require.NoError(t, s.Enroll("Andy"))

	s.Sweep(context.Background())

	assert.Nil(t, s.Status().Subjects[0].LastAlertAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(mt.Alerts.WithLabelValues(metrics.ResultFailed)))
}

func TestSweeper_CheckInReportsNextSweep(t *testing.T) {
	s, mock, _ := newTestSweeper(&fakeDispatcher{})

	mock.Add(250 * time.Second)
	preview, err := s.CheckIn("Andy")
	require.NoError(t, err)

	assert.Equal(t, int64(300000), preview.DeadlineAt.UnixMilli())
	require.NotNil(t, preview.LastCheckInAt)
	assert.Equal(t, int64(250000), preview.LastCheckInAt.UnixMilli())
}

func TestSweeper_InvalidSubjectID(t *testing.T) {
	s, _, _ := newTestSweeper(&fakeDispatcher{})

	_, err := s.CheckIn("")
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
	assert.ErrorIs(t, s.Enroll(strings.Repeat("x", 65)), model.ErrInvalidArgument)
	assert.Empty(t, s.Status().Subjects)
}

func TestSweeper_Notify(t *testing.T) {
	d := &fakeDispatcher{}
	s, _, _ := newTestSweeper(d)
	require.NoError(t, s.Enroll("Andy"))

	receipt, err := s.Notify(context.Background(), "Andy")
	require.NoError(t, err)
	assert.Equal(t, "receipt-Andy", receipt.ID)
	assert.NotNil(t, s.Status().Subjects[0].LastAlertAt)
}

func TestSweeper_StartStop(t *testing.T) {
	s, _, _ := newTestSweeper(&fakeDispatcher{})

	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.ErrorIs(t, s.Enroll("Andy"), monitor.ErrStopped)
	assert.ErrorIs(t, s.Start(context.Background()), monitor.ErrStopped)
}
