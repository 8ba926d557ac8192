// Package monitor tracks per-subject check-in deadlines and raises an alert for every
// window that elapses without a check-in.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/metrics"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/worker"
	"github.com/google/uuid"
)

// ErrStopped is returned by operations invoked after Stop
var ErrStopped = errors.New("monitor stopped")

const (
	defaultAlertTimeout = 10 * time.Second
	defaultWorkers      = 4
	defaultQueueSize    = 100
)

// Dispatcher delivers a single alert for a subject whose window elapsed at missedAt
type Dispatcher interface {
	Dispatch(ctx context.Context, subjectID string, missedAt time.Time) (model.DeliveryReceipt, error)
}

// Option configures a DeadlineMonitor
type Option func(*DeadlineMonitor)

// WithClock sets the clock used for deadlines and timers
func WithClock(clk clock.Clock) Option {
	return func(m *DeadlineMonitor) {
		if clk != nil {
			m.clock = clk
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *DeadlineMonitor) {
		m.metrics = mt
	}
}

// WithAlertTimeout bounds every alert dispatch
func WithAlertTimeout(d time.Duration) Option {
	return func(m *DeadlineMonitor) {
		if d > 0 {
			m.alertTimeout = d
		}
	}
}

// WithWorkers sizes the pool that runs alert dispatches
func WithWorkers(workers, queueSize int) Option {
	return func(m *DeadlineMonitor) {
		m.workers = workers
		m.queueSize = queueSize
	}
}

// DeadlineMonitor keeps one timer per subject that fires when the subject's window elapses.
//
// Every check-in and every deadline fire bumps the subject's generation; a timer only acts
// when the generation it captured is still current, so a timer that could not be cancelled
// in time is harmless.
type DeadlineMonitor struct {
	window       time.Duration
	dispatcher   Dispatcher
	clock        clock.Clock
	metrics      *metrics.Metrics
	alertTimeout time.Duration
	workers      int
	queueSize    int

	registry *registry
	pool     *worker.WorkerPool
	stopped  atomic.Bool
}

// NewDeadlineMonitor creates a monitor that alerts through dispatcher when a subject
// has not checked in for window
func NewDeadlineMonitor(window time.Duration, dispatcher Dispatcher, opts ...Option) *DeadlineMonitor {
	m := &DeadlineMonitor{
		window:       window,
		dispatcher:   dispatcher,
		clock:        clock.New(),
		alertTimeout: defaultAlertTimeout,
		workers:      defaultWorkers,
		queueSize:    defaultQueueSize,
		registry:     newRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.pool = worker.NewWorkerPool(m.workers, m.queueSize, m.dispatch)
	return m
}

// Start starts the dispatch workers
func (m *DeadlineMonitor) Start(ctx context.Context) error {
	if m.stopped.Load() {
		return ErrStopped
	}
	m.pool.Start()
	slog.Info("Deadline monitor started",
		"window_sec", m.window.Seconds(),
		"subjects", m.registry.len(),
	)
	return nil
}

// Stop cancels every pending timer and waits for in-flight alerts until ctx is done
func (m *DeadlineMonitor) Stop(ctx context.Context) error {
	if !m.stopped.CompareAndSwap(false, true) {
		return nil
	}

	for _, s := range m.registry.all() {
		s.mu.Lock()
		s.stopTimer()
		s.mu.Unlock()
	}

	slog.Info("Stopping deadline monitor")
	return m.pool.Stop(ctx)
}

// Enroll starts monitoring subjectID. Enrolling an already known subject changes nothing.
func (m *DeadlineMonitor) Enroll(subjectID string) error {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return err
	}
	if m.stopped.Load() {
		return ErrStopped
	}

	m.enroll(subjectID)
	return nil
}

// CheckIn records a check-in and pushes the subject's deadline one window into the future.
// Unknown subjects are enrolled first.
func (m *DeadlineMonitor) CheckIn(subjectID string) (model.SchedulePreview, error) {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return model.SchedulePreview{}, err
	}
	if m.stopped.Load() {
		return model.SchedulePreview{}, ErrStopped
	}

	s := m.enroll(subjectID)

	s.mu.Lock()
	now := m.clock.Now()
	s.lastCheckInAt = model.TimePtr(now)
	s.generation++
	m.arm(s, now)
	preview := s.preview()
	generation := s.generation
	s.mu.Unlock()

	m.metrics.RecordCheckIn()
	slog.Debug("Check-in recorded",
		"subject_id", subjectID,
		"generation", generation,
		"deadline", preview.DeadlineAt.UTC().Format(time.RFC3339),
	)

	return preview, nil
}

// Status returns a snapshot of every enrolled subject
func (m *DeadlineMonitor) Status() model.MonitorSnapshot {
	schedules := m.registry.all()
	subjects := make([]model.SubjectStatus, 0, len(schedules))
	for _, s := range schedules {
		s.mu.Lock()
		subjects = append(subjects, s.status())
		s.mu.Unlock()
	}

	return model.MonitorSnapshot{
		Policy:   model.PolicyDeadline,
		Window:   m.window,
		Subjects: subjects,
	}
}

// Subject returns the state of a single subject
func (m *DeadlineMonitor) Subject(subjectID string) (model.SubjectStatus, bool) {
	s, ok := m.registry.get(subjectID)
	if !ok {
		return model.SubjectStatus{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(), true
}

// Notify sends an alert for subjectID right away, leaving its deadline untouched
func (m *DeadlineMonitor) Notify(ctx context.Context, subjectID string) (model.DeliveryReceipt, error) {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return model.DeliveryReceipt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, m.alertTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := m.dispatcher.Dispatch(ctx, subjectID, m.clock.Now())
	if err != nil {
		m.metrics.RecordAlert(metrics.ResultFailed, time.Since(start))
		return receipt, err
	}
	m.metrics.RecordAlert(metrics.ResultDelivered, time.Since(start))
	m.recordAlert(subjectID)

	return receipt, nil
}

// enroll returns the schedule for subjectID, creating and arming it when missing
func (m *DeadlineMonitor) enroll(subjectID string) *schedule {
	s, created := m.registry.getOrCreate(subjectID, func() *schedule {
		s := &schedule{
			subjectID:  subjectID,
			generation: 1,
		}
		// Not yet published, no lock needed
		m.arm(s, m.clock.Now())
		return s
	})

	if created {
		m.metrics.RecordEnrollment()
		s.mu.Lock()
		deadline := s.deadlineAt
		s.mu.Unlock()
		slog.Info("Subject enrolled",
			"subject_id", subjectID,
			"deadline", deadline.UTC().Format(time.RFC3339),
		)
	}
	return s
}

// arm replaces the subject's timer with one that fires a window after now for the
// current generation. Must be called with s.mu held.
func (m *DeadlineMonitor) arm(s *schedule, now time.Time) {
	s.stopTimer()
	s.deadlineAt = now.Add(m.window)

	subjectID, generation := s.subjectID, s.generation
	s.timer = m.clock.AfterFunc(m.window, func() {
		m.onDeadlineElapsed(subjectID, generation)
	})
}

// onDeadlineElapsed handles a timer fire. Only a fire whose generation matches the
// schedule's current generation raises an alert; the schedule is re-armed before the
// alert is queued so monitoring continues whatever the delivery outcome.
func (m *DeadlineMonitor) onDeadlineElapsed(subjectID string, generation uint64) {
	if m.stopped.Load() {
		return
	}

	s, ok := m.registry.get(subjectID)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.generation != generation {
		current := s.generation
		s.mu.Unlock()

		m.metrics.RecordStaleDeadline()
		slog.Debug("Discarding stale deadline",
			"subject_id", subjectID,
			"generation", generation,
			"current_generation", current,
		)
		return
	}

	missedAt := s.deadlineAt
	s.generation++
	m.arm(s, m.clock.Now())
	nextDeadline := s.deadlineAt
	s.mu.Unlock()

	m.metrics.RecordDeadlineMissed()

	job := worker.Job{
		SubjectID:     subjectID,
		Generation:    generation,
		MissedAt:      missedAt,
		CorrelationID: uuid.New().String(),
	}

	slog.Warn("Check-in deadline missed",
		"subject_id", subjectID,
		"generation", generation,
		"missed_at", missedAt.UTC().Format(time.RFC3339),
		"next_deadline", nextDeadline.UTC().Format(time.RFC3339),
		"correlation_id", job.CorrelationID,
	)

	ctx, cancel := context.WithTimeout(context.Background(), m.alertTimeout)
	defer cancel()

	if err := m.pool.Submit(ctx, job); err != nil {
		m.metrics.RecordAlert(metrics.ResultDropped, 0)
		slog.Error("Failed to queue alert",
			"subject_id", subjectID,
			"correlation_id", job.CorrelationID,
			"error", err,
		)
	}
}

// dispatch runs on a pool worker, outside every schedule lock
func (m *DeadlineMonitor) dispatch(ctx context.Context, job worker.Job) {
	ctx, cancel := context.WithTimeout(ctx, m.alertTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := m.dispatcher.Dispatch(ctx, job.SubjectID, job.MissedAt)
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordAlert(metrics.ResultFailed, duration)
		slog.Error("Alert dispatch failed, monitoring continues",
			"subject_id", job.SubjectID,
			"generation", job.Generation,
			"correlation_id", job.CorrelationID,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return
	}

	m.metrics.RecordAlert(metrics.ResultDelivered, duration)
	m.recordAlert(job.SubjectID)

	slog.Info("Missed check-in alert delivered",
		"subject_id", job.SubjectID,
		"generation", job.Generation,
		"correlation_id", job.CorrelationID,
		"receipt_id", receipt.ID,
		"duration_ms", duration.Milliseconds(),
	)
}

// recordAlert stamps lastAlertAt for an enrolled subject
func (m *DeadlineMonitor) recordAlert(subjectID string) {
	s, ok := m.registry.get(subjectID)
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastAlertAt = model.TimePtr(m.clock.Now())
	s.mu.Unlock()
}
