package notify

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/google/uuid"
)

// LogSender writes alerts to the structured log instead of a real provider.
// Useful for local development where no SMS credentials are available.
type LogSender struct {
	clock clock.Clock
}

// NewLogSender creates a new log sender
func NewLogSender(clk clock.Clock) *LogSender {
	if clk == nil {
		clk = clock.New()
	}
	return &LogSender{clock: clk}
}

// Send logs the alert and returns a synthetic receipt
func (s *LogSender) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	if err := ctx.Err(); err != nil {
		return model.DeliveryReceipt{}, err
	}

	receipt := model.DeliveryReceipt{
		ID:        uuid.New().String(),
		Status:    "logged",
		Recipient: recipient,
		Channel:   "log",
		SentAt:    s.clock.Now().UTC(),
	}

	slog.Info("Alert",
		"recipient", recipient,
		"message", message,
		"receipt_id", receipt.ID,
	)

	return receipt, nil
}
