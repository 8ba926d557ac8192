package notify_test

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/notify"
)

// flakySender fails with the queued errors before succeeding
type flakySender struct {
	calls  atomic.Int32
	errors []error
}

func (f *flakySender) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	n := int(f.calls.Add(1))
	if n <= len(f.errors) {
		return model.DeliveryReceipt{}, f.errors[n-1]
	}
	return model.DeliveryReceipt{ID: "ok", Status: "sent", Recipient: recipient}, nil
}

var fastRetry = model.RetryConfig{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 5, Multiplier: 2}

func TestResilientSender_RetriesTransientFailures(t *testing.T) {
	next := &flakySender{errors: []error{
		errors.New("connection reset"),
		&notify.StatusError{StatusCode: http.StatusServiceUnavailable},
	}}
	s := notify.NewResilientSender(next, fastRetry, notify.BreakerConfig{}, clock.New())

	receipt, err := s.Send(context.Background(), "+1555", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", receipt.ID)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestResilientSender_NoRetryOnClientError(t *testing.T) {
	next := &flakySender{errors: []error{&notify.StatusError{StatusCode: http.StatusUnauthorized}}}
	s := notify.NewResilientSender(next, fastRetry, notify.BreakerConfig{}, clock.New())

	_, err := s.Send(context.Background(), "+1555", "hi")
	require.Error(t, err)

	var statusErr *notify.StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestResilientSender_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("boom")
	next := &flakySender{errors: []error{boom, boom, boom, boom}}
	s := notify.NewResilientSender(next, fastRetry, notify.BreakerConfig{}, clock.New())

	_, err := s.Send(context.Background(), "+1555", "hi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(3), next.calls.Load())
}

func TestResilientSender_OpensCircuit(t *testing.T) {
	boom := errors.New("boom")
	next := &flakySender{errors: []error{boom, boom, boom}}
	mock := clock.NewMock()
	s := notify.NewResilientSender(next,
		model.RetryConfig{MaxAttempts: 1},
		notify.BreakerConfig{FailureThreshold: 2, Timeout: time.Minute},
		mock,
	)

	for i := 0; i < 2; i++ {
		_, err := s.Send(context.Background(), "+1555", "hi")
		require.ErrorIs(t, err, boom)
	}
	assert.Equal(t, "open", s.BreakerState())

	_, err := s.Send(context.Background(), "+1555", "hi")
	assert.ErrorIs(t, err, notify.ErrCircuitOpen)
	assert.Equal(t, int32(2), next.calls.Load())

	mock.Add(time.Minute)
	_, err = s.Send(context.Background(), "+1555", "hi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "open", s.BreakerState())
}

func TestResilientSender_StopsOnContextDeadline(t *testing.T) {
	next := &flakySender{errors: []error{errors.New("timeout talking to provider")}}
	s := notify.NewResilientSender(next,
		model.RetryConfig{MaxAttempts: 5, InitialDelayMs: 10000, MaxDelayMs: 10000, Multiplier: 1},
		notify.BreakerConfig{},
		clock.New(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Send(ctx, "+1555", "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), next.calls.Load())
}
