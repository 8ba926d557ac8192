package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/model"
)

// schedule is the per-subject deadline state. Every field except subjectID is guarded by mu.
type schedule struct {
	mu sync.Mutex

	subjectID     string
	deadlineAt    time.Time
	generation    uint64
	lastCheckInAt *time.Time
	lastAlertAt   *time.Time
	timer         *clock.Timer
}

// preview must be called with mu held
func (s *schedule) preview() model.SchedulePreview {
	p := model.SchedulePreview{
		SubjectID:  s.subjectID,
		DeadlineAt: s.deadlineAt,
	}
	if s.lastCheckInAt != nil {
		p.LastCheckInAt = model.TimePtr(*s.lastCheckInAt)
	}
	if s.lastAlertAt != nil {
		p.LastAlertAt = model.TimePtr(*s.lastAlertAt)
	}
	return p
}

// status must be called with mu held
func (s *schedule) status() model.SubjectStatus {
	return model.SubjectStatus{
		SchedulePreview: s.preview(),
		Generation:      s.generation,
	}
}

// stopTimer must be called with mu held
func (s *schedule) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// registry maps subject IDs to their schedules. Subjects are never removed.
type registry struct {
	mu        sync.RWMutex
	schedules map[string]*schedule
}

func newRegistry() *registry {
	return &registry{schedules: make(map[string]*schedule)}
}

func (r *registry) get(subjectID string) (*schedule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schedules[subjectID]
	return s, ok
}

// getOrCreate returns the schedule for subjectID, calling create under the write lock
// when it does not exist yet. The boolean reports whether create was called.
func (r *registry) getOrCreate(subjectID string, create func() *schedule) (*schedule, bool) {
	if s, ok := r.get(subjectID); ok {
		return s, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.schedules[subjectID]; ok {
		return s, false
	}
	s := create()
	r.schedules[subjectID] = s
	return s, true
}

// all returns every schedule sorted by subject ID
func (r *registry) all() []*schedule {
	r.mu.RLock()
	out := make([]*schedule, 0, len(r.schedules))
	for _, s := range r.schedules {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].subjectID < out[j].subjectID
	})
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schedules)
}
