package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/google/uuid"
	"github.com/oliveagle/jsonpath"
)

// WebhookSender posts alerts as JSON to a generic HTTP endpoint
type WebhookSender struct {
	httpClient *http.Client
	webhook    model.Webhook
	clock      clock.Clock
}

// webhookPayload is the body sent to the webhook
type webhookPayload struct {
	Text      string `json:"text"`
	Recipient string `json:"recipient"`
	Timestamp string `json:"timestamp"`
}

// NewWebhookSender creates a new webhook sender
func NewWebhookSender(webhook model.Webhook, timeout time.Duration, clk clock.Clock) (*WebhookSender, error) {
	if err := webhook.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	return &WebhookSender{
		httpClient: newHTTPClient(timeout),
		webhook:    webhook,
		clock:      clk,
	}, nil
}

// Send performs a single webhook delivery attempt
func (s *WebhookSender) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	start := s.clock.Now()
	receipt := model.DeliveryReceipt{
		Recipient: recipient,
		Channel:   "webhook",
	}

	payloadBytes, err := json.Marshal(webhookPayload{
		Text:      message,
		Recipient: recipient,
		Timestamp: start.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return receipt, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, s.webhook.Method, s.webhook.URL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return receipt, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return receipt, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response body (limit to 64KB to prevent memory issues)
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		slog.Warn("Failed to read webhook response body", "error", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return receipt, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(bodyBytes), 1024)}
	}

	receipt.ID, receipt.Status = s.extractReceipt(bodyBytes)
	if receipt.ID == "" {
		receipt.ID = uuid.New().String()
	}
	if receipt.Status == "" {
		receipt.Status = "delivered"
	}
	receipt.SentAt = s.clock.Now().UTC()

	slog.Debug("Webhook delivered",
		"webhook_url", s.webhook.URL,
		"status_code", resp.StatusCode,
		"receipt_id", receipt.ID,
		"duration_ms", s.clock.Since(start).Milliseconds(),
	)

	return receipt, nil
}

// extractReceipt pulls the receipt id and status out of the response body
func (s *WebhookSender) extractReceipt(body []byte) (string, string) {
	if s.webhook.ReceiptPath == "" && s.webhook.StatusPath == "" {
		return "", ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		slog.Debug("Webhook response is not JSON, skipping receipt extraction", "error", err)
		return "", ""
	}

	return lookupString(data, s.webhook.ReceiptPath), lookupString(data, s.webhook.StatusPath)
}

// lookupString evaluates a JSONPath expression and formats the result as a string
func lookupString(data interface{}, expression string) string {
	if expression == "" {
		return ""
	}

	pattern, err := jsonpath.Compile(expression)
	if err != nil {
		slog.Warn("Invalid JSONPath expression", "expression", expression, "error", err)
		return ""
	}

	value, err := pattern.Lookup(data)
	if err != nil || value == nil {
		return ""
	}

	switch v := value.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
