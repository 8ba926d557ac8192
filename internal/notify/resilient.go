package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/model"
)

// ResilientSender wraps a Sender with exponential-backoff retries and a circuit breaker
type ResilientSender struct {
	next    Sender
	retry   *RetryStrategy
	breaker *CircuitBreaker
	clock   clock.Clock
}

// NewResilientSender creates a new resilient sender around next
func NewResilientSender(next Sender, retry model.RetryConfig, breaker BreakerConfig, clk clock.Clock) *ResilientSender {
	if clk == nil {
		clk = clock.New()
	}
	return &ResilientSender{
		next:    next,
		retry:   NewRetryStrategy(retry),
		breaker: NewCircuitBreaker(breaker, clk),
		clock:   clk,
	}
}

// Send delivers the message, retrying transient failures until ctx expires
func (s *ResilientSender) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	if err := s.breaker.Allow(); err != nil {
		slog.Warn("Circuit breaker is open, skipping alert delivery",
			"recipient", recipient,
			"circuit_state", s.breaker.State().String(),
		)
		return model.DeliveryReceipt{Recipient: recipient}, err
	}

	maxAttempts := s.retry.GetMaxAttempts()

	for attempt := 1; ; attempt++ {
		receipt, err := s.next.Send(ctx, recipient, message)
		if err == nil {
			if attempt > 1 {
				slog.Info("Alert delivered after retry",
					"recipient", recipient,
					"attempt", attempt,
					"receipt_id", receipt.ID,
				)
			}
			s.breaker.RecordSuccess()
			return receipt, nil
		}

		if !s.retry.ShouldRetry(attempt, err) {
			s.breaker.RecordFailure()
			return receipt, fmt.Errorf("alert delivery failed after %d attempt(s): %w", attempt, err)
		}

		delay := s.retry.CalculateDelay(attempt)
		slog.Warn("Alert delivery failed, retrying",
			"recipient", recipient,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"next_retry_ms", delay.Milliseconds(),
			"error", err,
		)

		timer := s.clock.Timer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			s.breaker.RecordFailure()
			return receipt, fmt.Errorf("alert delivery abandoned after %d attempt(s): %w", attempt, ctx.Err())
		}
	}
}

// BreakerState returns the current circuit breaker state name
func (s *ResilientSender) BreakerState() string {
	return s.breaker.State().String()
}
