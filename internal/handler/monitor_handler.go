package handler

import (
	"context"
	"net/http"

	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/pkg/middleware"
)

// Monitor is implemented by both monitoring policies
type Monitor interface {
	Enroll(subjectID string) error
	CheckIn(subjectID string) (model.SchedulePreview, error)
	Status() model.MonitorSnapshot
	Subject(subjectID string) (model.SubjectStatus, bool)
	Notify(ctx context.Context, subjectID string) (model.DeliveryReceipt, error)
}

// MonitorHandler serves check-ins, enrollment, manual alerts and status
type MonitorHandler struct {
	monitor Monitor
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitor Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

// CheckIn handles GET/POST /api/checkin/{id}
func (h *MonitorHandler) CheckIn(w http.ResponseWriter, r *http.Request, subjectID string) {
	preview, err := h.monitor.CheckIn(subjectID)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	middleware.Logger(r.Context()).Info("Check-in received",
		"subject_id", subjectID,
		"deadline", preview.DeadlineAt.UTC().Format("15:04:05"),
	)

	writeJSON(w, http.StatusOK, model.NewScheduleResponse(preview))
}

// Notify handles POST /api/checkin/{id}/notify
func (h *MonitorHandler) Notify(w http.ResponseWriter, r *http.Request, subjectID string) {
	receipt, err := h.monitor.Notify(r.Context(), subjectID)
	if err != nil {
		middleware.Logger(r.Context()).Error("Manual alert failed",
			"subject_id", subjectID,
			"error", err,
		)
		writeError(w, statusForError(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.NewNotifyResponse(subjectID, receipt))
}

// Enroll handles POST /api/subjects/{id}
func (h *MonitorHandler) Enroll(w http.ResponseWriter, r *http.Request, subjectID string) {
	if err := h.monitor.Enroll(subjectID); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	h.Subject(w, r, subjectID)
}

// Subject handles GET /api/subjects/{id}
func (h *MonitorHandler) Subject(w http.ResponseWriter, r *http.Request, subjectID string) {
	status, ok := h.monitor.Subject(subjectID)
	if !ok {
		writeError(w, http.StatusNotFound, "Subject not enrolled")
		return
	}
	writeJSON(w, http.StatusOK, model.NewSubjectResponse(status))
}

// Status handles GET /api/status
func (h *MonitorHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, model.NewStatusResponse(h.monitor.Status()))
}
