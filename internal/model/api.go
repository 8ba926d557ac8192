package model

import (
	"time"
)

// ScheduleResponse is the JSON form of a SchedulePreview
type ScheduleResponse struct {
	SubjectID     string  `json:"subject_id"`
	DeadlineMs    int64   `json:"deadline_ms"`
	Deadline      string  `json:"deadline"`
	LastCheckInMs *int64  `json:"last_check_in_ms"`
	LastCheckIn   *string `json:"last_check_in"`
	LastAlertMs   *int64  `json:"last_alert_ms"`
	LastAlert     *string `json:"last_alert"`
}

// SubjectResponse is the JSON form of a SubjectStatus
type SubjectResponse struct {
	ScheduleResponse
	Generation uint64 `json:"generation"`
}

// StatusResponse is the JSON form of a MonitorSnapshot
type StatusResponse struct {
	Policy      string            `json:"policy"`
	WindowSec   int64             `json:"window_sec"`
	Subjects    []SubjectResponse `json:"subjects"`
	LastSweepMs *int64            `json:"last_sweep_ms,omitempty"`
	LastSweep   *string           `json:"last_sweep,omitempty"`
}

// NotifyResponse is returned by the manual notify and SMS test endpoints
type NotifyResponse struct {
	SubjectID string          `json:"subject_id,omitempty"`
	Receipt   DeliveryReceipt `json:"receipt"`
}

// SMSTestRequest is the body of the SMS test endpoint
type SMSTestRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// NewScheduleResponse converts a preview to its JSON form
func NewScheduleResponse(p SchedulePreview) ScheduleResponse {
	resp := ScheduleResponse{
		SubjectID:  p.SubjectID,
		DeadlineMs: p.DeadlineAt.UnixMilli(),
		Deadline:   formatTime(p.DeadlineAt),
	}
	resp.LastCheckInMs, resp.LastCheckIn = optionalTime(p.LastCheckInAt)
	resp.LastAlertMs, resp.LastAlert = optionalTime(p.LastAlertAt)
	return resp
}

// NewSubjectResponse converts a subject status to its JSON form
func NewSubjectResponse(s SubjectStatus) SubjectResponse {
	return SubjectResponse{
		ScheduleResponse: NewScheduleResponse(s.SchedulePreview),
		Generation:       s.Generation,
	}
}

// NewNotifyResponse pairs a receipt with the subject it was sent for
func NewNotifyResponse(subjectID string, receipt DeliveryReceipt) NotifyResponse {
	return NotifyResponse{SubjectID: subjectID, Receipt: receipt}
}

// NewStatusResponse converts a snapshot to its JSON form
func NewStatusResponse(s MonitorSnapshot) StatusResponse {
	resp := StatusResponse{
		Policy:    s.Policy,
		WindowSec: int64(s.Window / time.Second),
		Subjects:  make([]SubjectResponse, 0, len(s.Subjects)),
	}
	for _, subject := range s.Subjects {
		resp.Subjects = append(resp.Subjects, NewSubjectResponse(subject))
	}
	resp.LastSweepMs, resp.LastSweep = optionalTime(s.LastSweepAt)
	return resp
}

// DeadlineTime returns the deadline as a time.Time
func (r ScheduleResponse) DeadlineTime() time.Time {
	return time.UnixMilli(r.DeadlineMs)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func optionalTime(t *time.Time) (*int64, *string) {
	if t == nil {
		return nil, nil
	}
	ms := t.UnixMilli()
	s := formatTime(*t)
	return &ms, &s
}
