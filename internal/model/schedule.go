package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxSubjectIDLength is the maximum number of characters in a subject identifier
const MaxSubjectIDLength = 64

// ErrInvalidArgument is returned when a caller supplies a malformed subject identifier
var ErrInvalidArgument = errors.New("invalid argument")

// Monitoring policies
const (
	PolicyDeadline = "deadline"
	PolicySweep    = "sweep"
)

// ValidateSubjectID rejects empty identifiers and identifiers longer than MaxSubjectIDLength
func ValidateSubjectID(subjectID string) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is required", ErrInvalidArgument)
	}
	if n := utf8.RuneCountInString(subjectID); n > MaxSubjectIDLength {
		return fmt.Errorf("%w: subject id must be %d characters or less (got %d)", ErrInvalidArgument, MaxSubjectIDLength, n)
	}
	return nil
}

// SchedulePreview is the view of a subject's schedule returned after a check-in
type SchedulePreview struct {
	SubjectID     string
	DeadlineAt    time.Time
	LastCheckInAt *time.Time
	LastAlertAt   *time.Time
}

// SubjectStatus is the full per-subject state reported by Status
type SubjectStatus struct {
	SchedulePreview
	Generation uint64
}

// MonitorSnapshot is a point-in-time copy of every enrolled subject
type MonitorSnapshot struct {
	Policy   string
	Window   time.Duration
	Subjects []SubjectStatus

	// Only set by the sweep policy
	LastSweepAt *time.Time
}

// TimePtr returns a pointer to a copy of t
func TimePtr(t time.Time) *time.Time {
	return &t
}
