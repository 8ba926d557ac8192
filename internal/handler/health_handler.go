package handler

import (
	"net/http"
	"sync/atomic"
	"time"
)

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	monitor   Monitor
	startTime time.Time
	version   string
	ready     atomic.Bool
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(monitor Monitor, version string) *HealthHandler {
	return &HealthHandler{
		monitor:   monitor,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	Policy        string `json:"policy"`
	Subjects      int    `json:"subjects"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready bool `json:"ready"`
}

// SetReady marks the service as ready or draining
func (h *HealthHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	snapshot := h.monitor.Status()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Policy:        snapshot.Policy,
		Subjects:      len(snapshot.Subjects),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready returns the service readiness status
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := h.ready.Load()

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{Ready: ready})
}
