package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/notify"
)

// DispatchError wraps a failed alert delivery for a subject
type DispatchError struct {
	SubjectID string
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("alert dispatch failed for subject %q: %v", e.SubjectID, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Dispatcher formats missed check-in alerts and hands them to a notify.Sender.
// It makes exactly one Send call per Dispatch; retries are the sender's business.
type Dispatcher struct {
	sender    notify.Sender
	recipient string
	location  *time.Location
}

// NewDispatcher creates a new alert dispatcher
func NewDispatcher(sender notify.Sender, recipient string, location *time.Location) *Dispatcher {
	if location == nil {
		location = time.UTC
	}
	return &Dispatcher{
		sender:    sender,
		recipient: recipient,
		location:  location,
	}
}

// Dispatch sends the alert for subjectID, whose deadline elapsed at missedAt
func (d *Dispatcher) Dispatch(ctx context.Context, subjectID string, missedAt time.Time) (model.DeliveryReceipt, error) {
	message := FormatMessage(subjectID, missedAt, d.location)

	slog.Info("Dispatching alert",
		"subject_id", subjectID,
		"recipient", d.recipient,
		"missed_at", missedAt.UTC().Format(time.RFC3339),
	)

	receipt, err := d.sender.Send(ctx, d.recipient, message)
	if err != nil {
		return receipt, &DispatchError{SubjectID: subjectID, Err: err}
	}

	slog.Info("Alert dispatched",
		"subject_id", subjectID,
		"receipt_id", receipt.ID,
		"receipt_status", receipt.Status,
	)

	return receipt, nil
}

// Recipient returns the configured alert recipient
func (d *Dispatcher) Recipient() string {
	return d.recipient
}
