// Package scheduler implements the sweep monitoring policy: one global tick per window
// that alerts for every subject which has not checked in since the previous tick.
//
// This is a relaxed guarantee compared to monitor.DeadlineMonitor. A sweep cannot tell a
// check-in made just before the tick from one made just after the previous tick, so a
// subject may go up to almost two windows without an alert, and a subject enrolled just
// before a tick is alerted at that tick.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/metrics"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/monitor"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Config configures a Sweeper
type Config struct {
	Window       time.Duration
	AlertTimeout time.Duration
	Concurrency  int // Maximum alerts dispatched in parallel by one sweep
	Clock        clock.Clock
	Metrics      *metrics.Metrics
}

// entry is the sweep state of one subject. Every field except subjectID is guarded by mu.
type entry struct {
	mu sync.Mutex

	subjectID     string
	checkedIn     bool
	generation    uint64
	lastCheckInAt *time.Time
	lastAlertAt   *time.Time
}

// Sweeper runs the sweep policy on a cron schedule
type Sweeper struct {
	cfg        Config
	dispatcher monitor.Dispatcher
	cron       *cron.Cron
	semaphore  chan struct{} // Limits concurrent alert dispatches

	mu      sync.RWMutex
	entries map[string]*entry

	stateMu     sync.Mutex
	windowStart time.Time
	lastSweepAt *time.Time

	sweeping atomic.Bool
	stopped  atomic.Bool
}

// NewSweeper creates a new sweeper
func NewSweeper(cfg Config, dispatcher monitor.Dispatcher) *Sweeper {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}

	logger := cronLogger{}

	return &Sweeper{
		cfg:        cfg,
		dispatcher: dispatcher,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger)),
		),
		semaphore:   make(chan struct{}, cfg.Concurrency),
		entries:     make(map[string]*entry),
		windowStart: cfg.Clock.Now(),
	}
}

// Start schedules a sweep every window
func (s *Sweeper) Start(ctx context.Context) error {
	if s.stopped.Load() {
		return monitor.ErrStopped
	}

	s.stateMu.Lock()
	s.windowStart = s.cfg.Clock.Now()
	s.stateMu.Unlock()

	s.cron.Schedule(cron.Every(s.cfg.Window), cron.FuncJob(func() {
		s.Sweep(ctx)
	}))
	s.cron.Start()

	slog.Info("Starting sweeper",
		"window_sec", s.cfg.Window.Seconds(),
		"concurrency", s.cfg.Concurrency,
	)
	return nil
}

// Stop stops the cron schedule and waits for a running sweep until ctx is done
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	slog.Info("Stopping sweeper")

	select {
	case <-s.cron.Stop().Done():
		slog.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		slog.Warn("Timeout waiting for sweep to complete")
		return ctx.Err()
	}
}

// Enroll starts monitoring subjectID. Enrolling an already known subject changes nothing.
func (s *Sweeper) Enroll(subjectID string) error {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return err
	}
	if s.stopped.Load() {
		return monitor.ErrStopped
	}

	s.enroll(subjectID)
	return nil
}

// CheckIn marks the subject as checked in for the current window
func (s *Sweeper) CheckIn(subjectID string) (model.SchedulePreview, error) {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return model.SchedulePreview{}, err
	}
	if s.stopped.Load() {
		return model.SchedulePreview{}, monitor.ErrStopped
	}

	e := s.enroll(subjectID)
	deadline := s.nextSweepAt()

	e.mu.Lock()
	now := s.cfg.Clock.Now()
	e.checkedIn = true
	e.generation++
	e.lastCheckInAt = model.TimePtr(now)
	preview := e.preview(deadline)
	e.mu.Unlock()

	s.cfg.Metrics.RecordCheckIn()
	slog.Debug("Check-in recorded", "subject_id", subjectID)

	return preview, nil
}

// Status returns a snapshot of every enrolled subject
func (s *Sweeper) Status() model.MonitorSnapshot {
	deadline := s.nextSweepAt()

	s.stateMu.Lock()
	var lastSweepAt *time.Time
	if s.lastSweepAt != nil {
		lastSweepAt = model.TimePtr(*s.lastSweepAt)
	}
	s.stateMu.Unlock()

	entries := s.all()
	subjects := make([]model.SubjectStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		subjects = append(subjects, model.SubjectStatus{
			SchedulePreview: e.preview(deadline),
			Generation:      e.generation,
		})
		e.mu.Unlock()
	}

	return model.MonitorSnapshot{
		Policy:      model.PolicySweep,
		Window:      s.cfg.Window,
		Subjects:    subjects,
		LastSweepAt: lastSweepAt,
	}
}

// Subject returns the state of a single subject
func (s *Sweeper) Subject(subjectID string) (model.SubjectStatus, bool) {
	s.mu.RLock()
	e, ok := s.entries[subjectID]
	s.mu.RUnlock()
	if !ok {
		return model.SubjectStatus{}, false
	}

	deadline := s.nextSweepAt()
	e.mu.Lock()
	defer e.mu.Unlock()
	return model.SubjectStatus{
		SchedulePreview: e.preview(deadline),
		Generation:      e.generation,
	}, true
}

// Notify sends an alert for subjectID right away
func (s *Sweeper) Notify(ctx context.Context, subjectID string) (model.DeliveryReceipt, error) {
	if err := model.ValidateSubjectID(subjectID); err != nil {
		return model.DeliveryReceipt{}, err
	}
	return s.dispatch(ctx, subjectID, s.cfg.Clock.Now(), uuid.New().String())
}

// Sweep alerts for every subject that has not checked in since the previous sweep and
// starts a new window. A sweep that starts while another is still running is skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.cfg.Metrics.RecordSweepSkipped()
		slog.Warn("Previous sweep still running, skipping")
		return
	}
	defer s.sweeping.Store(false)

	now := s.cfg.Clock.Now()

	s.stateMu.Lock()
	s.windowStart = now
	s.lastSweepAt = model.TimePtr(now)
	s.stateMu.Unlock()

	// Flags are reset before any alert goes out so check-ins arriving during a slow
	// sweep count toward the new window
	var missed []string
	for _, e := range s.all() {
		e.mu.Lock()
		if !e.checkedIn {
			missed = append(missed, e.subjectID)
		}
		e.checkedIn = false
		e.generation++
		e.mu.Unlock()
	}

	slog.Info("Sweep",
		"time", now.UTC().Format(time.RFC3339),
		"missed", len(missed),
	)

	var wg sync.WaitGroup
	for _, subjectID := range missed {
		s.cfg.Metrics.RecordDeadlineMissed()

		select {
		case s.semaphore <- struct{}{}:
		case <-ctx.Done():
			s.cfg.Metrics.RecordAlert(metrics.ResultDropped, 0)
			slog.Warn("Sweep cancelled, alert dropped", "subject_id", subjectID)
			continue
		}

		wg.Add(1)
		go func(subjectID string) {
			defer wg.Done()
			defer func() { <-s.semaphore }()

			correlationID := uuid.New().String()
			slog.Warn("Check-in window missed",
				"subject_id", subjectID,
				"correlation_id", correlationID,
			)
			s.dispatch(ctx, subjectID, now, correlationID)
		}(subjectID)
	}
	wg.Wait()

	s.cfg.Metrics.RecordSweep()
}

// dispatch sends one alert with the configured timeout and stamps lastAlertAt on success
func (s *Sweeper) dispatch(ctx context.Context, subjectID string, missedAt time.Time, correlationID string) (model.DeliveryReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AlertTimeout)
	defer cancel()

	start := time.Now()
	receipt, err := s.dispatcher.Dispatch(ctx, subjectID, missedAt)
	duration := time.Since(start)

	if err != nil {
		s.cfg.Metrics.RecordAlert(metrics.ResultFailed, duration)
		slog.Error("Alert dispatch failed",
			"subject_id", subjectID,
			"correlation_id", correlationID,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		return receipt, err
	}

	s.cfg.Metrics.RecordAlert(metrics.ResultDelivered, duration)

	s.mu.RLock()
	e, ok := s.entries[subjectID]
	s.mu.RUnlock()
	if ok {
		e.mu.Lock()
		e.lastAlertAt = model.TimePtr(s.cfg.Clock.Now())
		e.mu.Unlock()
	}

	return receipt, nil
}

func (s *Sweeper) enroll(subjectID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[subjectID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[subjectID]; ok {
		return e
	}
	e = &entry{subjectID: subjectID, generation: 1}
	s.entries[subjectID] = e

	s.cfg.Metrics.RecordEnrollment()
	slog.Info("Subject enrolled", "subject_id", subjectID)
	return e
}

// all returns every entry sorted by subject ID
func (s *Sweeper) all() []*entry {
	s.mu.RLock()
	out := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].subjectID < out[j].subjectID
	})
	return out
}

// nextSweepAt is the deadline reported to subjects: the end of the current window
func (s *Sweeper) nextSweepAt() time.Time {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.windowStart.Add(s.cfg.Window)
}

// preview must be called with mu held
func (e *entry) preview(deadline time.Time) model.SchedulePreview {
	p := model.SchedulePreview{
		SubjectID:  e.subjectID,
		DeadlineAt: deadline,
	}
	if e.lastCheckInAt != nil {
		p.LastCheckInAt = model.TimePtr(*e.lastCheckInAt)
	}
	if e.lastAlertAt != nil {
		p.LastAlertAt = model.TimePtr(*e.lastAlertAt)
	}
	return p
}
