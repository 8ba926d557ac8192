package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/notify"
	"github.com/dandantas/lifeline/pkg/middleware"
)

// SMSHandler sends a one-off message through the configured sender
type SMSHandler struct {
	sender  notify.Sender
	timeout time.Duration
}

// NewSMSHandler creates a new SMS test handler
func NewSMSHandler(sender notify.Sender, timeout time.Duration) *SMSHandler {
	return &SMSHandler{
		sender:  sender,
		timeout: timeout,
	}
}

// Test handles POST /api/sms/test
func (h *SMSHandler) Test(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req model.SMSTestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	req.To = strings.TrimSpace(req.To)
	if req.To == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "Both 'to' and 'body' are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	receipt, err := h.sender.Send(ctx, req.To, req.Body)
	if err != nil {
		middleware.Logger(r.Context()).Error("Test message failed",
			"recipient", req.To,
			"error", err,
		)
		status := http.StatusBadGateway
		if ctx.Err() != nil {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, err.Error())
		return
	}

	middleware.Logger(r.Context()).Info("Test message sent",
		"recipient", req.To,
		"receipt_id", receipt.ID,
	)

	writeJSON(w, http.StatusOK, model.NotifyResponse{Receipt: receipt})
}
