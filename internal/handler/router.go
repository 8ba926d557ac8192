package handler

import (
	"net/http"
	"strings"

	"github.com/dandantas/lifeline/pkg/middleware"
)

// Router handles HTTP routing
type Router struct {
	monitorHandler *MonitorHandler
	smsHandler     *SMSHandler
	healthHandler  *HealthHandler
	metrics        http.Handler
	corsConfig     middleware.CORSConfig
	demoKey        string
}

// NewRouter creates a new router. A nil metrics handler leaves /metrics unrouted.
func NewRouter(
	monitorHandler *MonitorHandler,
	smsHandler *SMSHandler,
	healthHandler *HealthHandler,
	metrics http.Handler,
	corsConfig middleware.CORSConfig,
	demoKey string,
) *Router {
	return &Router{
		monitorHandler: monitorHandler,
		smsHandler:     smsHandler,
		healthHandler:  healthHandler,
		metrics:        metrics,
		corsConfig:     corsConfig,
		demoKey:        demoKey,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/checkin/", rt.handleCheckIn)
	api.HandleFunc("/api/subjects/", rt.handleSubjects)
	api.HandleFunc("/api/status", rt.monitorHandler.Status)
	api.HandleFunc("/api/sms/test", rt.smsHandler.Test)

	mux := http.NewServeMux()

	// Health and metrics endpoints (no demo key)
	mux.HandleFunc("/health", rt.healthHandler.Health)
	mux.HandleFunc("/ready", rt.healthHandler.Ready)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics)
	}

	mux.Handle("/api/", middleware.DemoKey(rt.demoKey)(api))

	// Apply middleware (CORS first to handle preflight requests)
	handler := middleware.CORS(rt.corsConfig)(mux)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}

// handleCheckIn routes /api/checkin/{id} and /api/checkin/{id}/notify
func (rt *Router) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/checkin/")

	if subjectID, ok := strings.CutSuffix(path, "/notify"); ok {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		if subjectID == "" || strings.Contains(subjectID, "/") {
			writeError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		rt.monitorHandler.Notify(w, r, subjectID)
		return
	}

	subjectID, ok := pathParam(r.URL.Path, "/api/checkin/")
	if !ok {
		writeError(w, http.StatusBadRequest, "A single subject id path segment is required")
		return
	}

	switch r.Method {
	case http.MethodGet, http.MethodPost:
		rt.monitorHandler.CheckIn(w, r, subjectID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleSubjects routes /api/subjects/{id}
func (rt *Router) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := pathParam(r.URL.Path, "/api/subjects/")
	if !ok {
		writeError(w, http.StatusBadRequest, "A single subject id path segment is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.monitorHandler.Subject(w, r, subjectID)
	case http.MethodPost:
		rt.monitorHandler.Enroll(w, r, subjectID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
