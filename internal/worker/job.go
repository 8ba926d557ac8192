package worker

import (
	"time"
)

// Job is a missed-deadline alert waiting to be dispatched
type Job struct {
	SubjectID     string
	Generation    uint64 // generation of the window that was missed
	MissedAt      time.Time
	CorrelationID string
}
