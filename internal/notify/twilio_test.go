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

	"github.com/dandantas/lifeline/internal/notify"
	"github.com/dandantas/lifeline/internal/notify/notifytest"
)

func newTwilioSender(t *testing.T, apiURL string) *notify.TwilioSender {
	t.Helper()

	s, err := notify.NewTwilioSender(notify.TwilioConfig{
		AccountSID:  "AC123",
		AuthToken:   "secret",
		PhoneNumber: "+15550000000",
		APIURL:      apiURL,
	}, 5*time.Second, clock.NewMock())
	require.NoError(t, err)
	return s
}

func TestTwilioSender_Send(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()

	s := newTwilioSender(t, ts.URL)

	receipt, err := s.Send(context.Background(), "+15551234567", "Check-in alert: Andy")
	require.NoError(t, err)

	assert.Equal(t, "SM00000000000000000000000000000001", receipt.ID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, "twilio", receipt.Channel)
	assert.Equal(t, "+15551234567", receipt.Recipient)

	reqs := ts.Requests()
	require.Len(t, reqs, 1)
	got := reqs[0]
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", got.Path)
	assert.Equal(t, "AC123", got.Username)
	assert.Equal(t, "secret", got.Password)
	assert.Equal(t, "+15551234567", got.Form.Get("To"))
	assert.Equal(t, "+15550000000", got.Form.Get("From"))
	assert.Equal(t, "Check-in alert: Andy", got.Form.Get("Body"))
}

func TestTwilioSender_APIError(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()
	ts.Enqueue(notifytest.Response{
		StatusCode: http.StatusBadRequest,
		Body:       `{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`,
	})

	s := newTwilioSender(t, ts.URL)

	_, err := s.Send(context.Background(), "bogus", "hello")
	require.Error(t, err)

	var statusErr *notify.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "21211")
}

func TestTwilioSender_RequiresRecipient(t *testing.T) {
	ts := notifytest.NewServer()
	defer ts.Close()

	s := newTwilioSender(t, ts.URL)

	_, err := s.Send(context.Background(), "", "hello")
	assert.Error(t, err)
	assert.Empty(t, ts.Requests())
}

func TestTwilioConfig_Validate(t *testing.T) {
	cfg := notify.TwilioConfig{AccountSID: "AC123"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth token")
	assert.Contains(t, err.Error(), "phone number")

	cfg = notify.TwilioConfig{AccountSID: "AC123", AuthToken: "x", PhoneNumber: "+1"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, notify.DefaultTwilioAPIURL, cfg.APIURL)
}
