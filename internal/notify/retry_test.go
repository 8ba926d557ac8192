package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/dandantas/lifeline/internal/model"
)

func TestRetryStrategy_CalculateDelay(t *testing.T) {
	rs := NewRetryStrategy(model.RetryConfig{MaxAttempts: 5, InitialDelayMs: 100, MaxDelayMs: 500, Multiplier: 2})

	assert.Equal(t, time.Duration(0), rs.CalculateDelay(0))
	assert.Equal(t, 100*time.Millisecond, rs.CalculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, rs.CalculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, rs.CalculateDelay(3))
	assert.Equal(t, 500*time.Millisecond, rs.CalculateDelay(4))
}

func TestRetryStrategy_ShouldRetry(t *testing.T) {
	rs := NewRetryStrategy(model.RetryConfig{MaxAttempts: 3})

	tests := []struct {
		name    string
		attempt int
		err     error
		want    bool
	}{
		{"success", 1, nil, false},
		{"network error", 1, errors.New("dial tcp: refused"), true},
		{"server error", 1, &StatusError{StatusCode: 500}, true},
		{"rate limited", 2, &StatusError{StatusCode: 429}, true},
		{"client error", 1, &StatusError{StatusCode: 400}, false},
		{"redirect", 1, &StatusError{StatusCode: 302}, true},
		{"wrapped server error", 1, fmt.Errorf("send: %w", &StatusError{StatusCode: 503}), true},
		{"deadline", 1, fmt.Errorf("send: %w", context.DeadlineExceeded), false},
		{"attempts exhausted", 3, errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rs.ShouldRetry(tt.attempt, tt.err))
		})
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	mock := clock.NewMock()
	cb := NewCircuitBreaker(BreakerConfig{FailureThreshold: 1, SuccessThreshold: 2, Timeout: time.Second}, mock)

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	mock.Add(time.Second)
	assert.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}
