package notify_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/notify"
	"github.com/dandantas/lifeline/internal/notify/notifytest"
)

func TestWebhookSender_ExtractsReceipt(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()
	ts.Enqueue(notifytest.Response{
		StatusCode: http.StatusOK,
		Body:       `{"data":{"message_id":"msg-42","state":"accepted"}}`,
	})

	s, err := notify.NewWebhookSender(model.Webhook{
		URL:         ts.URL + "/hooks/alert",
		Headers:     map[string]string{"X-Token": "abc"},
		ReceiptPath: "$.data.message_id",
		StatusPath:  "$.data.state",
	}, 5*time.Second, clock.NewMock())
	require.NoError(t, err)

	receipt, err := s.Send(context.Background(), "ops-team", "Check-in alert: Andy")
	require.NoError(t, err)

	assert.Equal(t, "msg-42", receipt.ID)
	assert.Equal(t, "accepted", receipt.Status)
	assert.Equal(t, "webhook", receipt.Channel)

	reqs := ts.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/hooks/alert", reqs[0].Path)
	assert.Equal(t, "Check-in alert: Andy", reqs[0].JSON["text"])
	assert.Equal(t, "ops-team", reqs[0].JSON["recipient"])
}

func TestWebhookSender_DefaultsReceipt(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()
	ts.Enqueue(notifytest.Response{StatusCode: http.StatusNoContent})

	s, err := notify.NewWebhookSender(model.Webhook{URL: ts.URL}, 5*time.Second, nil)
	require.NoError(t, err)

	receipt, err := s.Send(context.Background(), "ops", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, "delivered", receipt.Status)
}

func TestWebhookSender_ServerError(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()
	ts.Enqueue(notifytest.Response{StatusCode: http.StatusBadGateway, Body: "upstream down"})

	s, err := notify.NewWebhookSender(model.Webhook{URL: ts.URL}, 5*time.Second, nil)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), "ops", "hi")
	var statusErr *notify.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestNewWebhookSender_InvalidConfig(t *testing.T) {
	_, err := notify.NewWebhookSender(model.Webhook{}, time.Second, nil)
	assert.Error(t, err)
}
