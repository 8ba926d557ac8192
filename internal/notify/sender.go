package notify

import (
	"context"
	"fmt"

	"github.com/dandantas/lifeline/internal/model"
)

// Sender delivers a single alert message to a recipient.
// Implementations must honor ctx cancellation; the caller bounds every call with a timeout.
type Sender interface {
	Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error)
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error)

// Send calls f(ctx, recipient, message)
func (f SenderFunc) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	return f(ctx, recipient, message)
}

// StatusError is returned when a provider answers with a non-2xx status code
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}
