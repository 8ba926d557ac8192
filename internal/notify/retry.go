package notify

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/dandantas/lifeline/internal/model"
)

// RetryStrategy handles exponential backoff retry logic
type RetryStrategy struct {
	config model.RetryConfig
}

// NewRetryStrategy creates a new retry strategy
func NewRetryStrategy(config model.RetryConfig) *RetryStrategy {
	config.SetDefaults()
	return &RetryStrategy{
		config: config,
	}
}

// CalculateDelay calculates the delay for a given attempt using exponential backoff
// Formula: delay = min(initial_delay * (multiplier ^ (attempt-1)), max_delay)
func (rs *RetryStrategy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delayMs := float64(rs.config.InitialDelayMs) * math.Pow(rs.config.Multiplier, float64(attempt-1))

	if delayMs > float64(rs.config.MaxDelayMs) {
		delayMs = float64(rs.config.MaxDelayMs)
	}

	return time.Duration(delayMs) * time.Millisecond
}

// ShouldRetry determines if another attempt should be made after err
func (rs *RetryStrategy) ShouldRetry(attempt int, err error) bool {
	if err == nil || attempt >= rs.config.MaxAttempts {
		return false
	}

	// The caller's deadline covers all attempts
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		// Network error
		return true
	}

	switch {
	case statusErr.StatusCode >= 500:
		return true
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return true
	case statusErr.StatusCode >= 400:
		return false
	default:
		return statusErr.StatusCode >= 300
	}
}

// GetMaxAttempts returns the maximum number of attempts
func (rs *RetryStrategy) GetMaxAttempts() int {
	return rs.config.MaxAttempts
}
