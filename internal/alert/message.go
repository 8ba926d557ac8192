package alert

import (
	"fmt"
	"time"
)

// FormatMessage builds the human-readable alert text for a subject that missed its window
func FormatMessage(subjectID string, missedAt time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return fmt.Sprintf(
		"Check-in alert: %s has not checked in within the window. (%s)",
		subjectID,
		missedAt.In(loc).Format("15:04:05"),
	)
}
