package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/model"
)

// DefaultTwilioAPIURL is the base URL of the Twilio REST API
const DefaultTwilioAPIURL = "https://api.twilio.com"

// TwilioConfig holds the credentials used to send SMS through Twilio
type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string // the "From" number
	APIURL      string
}

// Validate checks that all credentials are present
func (c *TwilioConfig) Validate() error {
	var missing []string
	if c.AccountSID == "" {
		missing = append(missing, "account SID")
	}
	if c.AuthToken == "" {
		missing = append(missing, "auth token")
	}
	if c.PhoneNumber == "" {
		missing = append(missing, "phone number")
	}
	if len(missing) > 0 {
		return fmt.Errorf("twilio configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	if c.APIURL == "" {
		c.APIURL = DefaultTwilioAPIURL
	}
	return nil
}

// TwilioSender sends SMS alerts with the Twilio Messages API
type TwilioSender struct {
	cfg        TwilioConfig
	httpClient *http.Client
	clock      clock.Clock
}

// twilioMessage is the subset of the Message resource we care about
type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

// twilioError is the error body returned by the Twilio API
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
}

// NewTwilioSender creates a new Twilio SMS sender
func NewTwilioSender(cfg TwilioConfig, timeout time.Duration, clk clock.Clock) (*TwilioSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}

	return &TwilioSender{
		cfg:        cfg,
		httpClient: newHTTPClient(timeout),
		clock:      clk,
	}, nil
}

// Send creates a Twilio message resource for the recipient
func (s *TwilioSender) Send(ctx context.Context, recipient, message string) (model.DeliveryReceipt, error) {
	receipt := model.DeliveryReceipt{
		Recipient: recipient,
		Channel:   "twilio",
	}
	if recipient == "" {
		return receipt, errors.New("recipient phone number is required")
	}

	form := url.Values{}
	form.Set("To", recipient)
	form.Set("From", s.cfg.PhoneNumber)
	form.Set("Body", message)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.cfg.APIURL, "/"),
		url.PathEscape(s.cfg.AccountSID),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return receipt, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)

	slog.Debug("Sending SMS via Twilio", "to", recipient, "from", s.cfg.PhoneNumber)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return receipt, fmt.Errorf("twilio request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return receipt, fmt.Errorf("failed to read twilio response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr twilioError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr == nil && apiErr.Message != "" {
			return receipt, &StatusError{
				StatusCode: resp.StatusCode,
				Body:       fmt.Sprintf("twilio error %d: %s", apiErr.Code, apiErr.Message),
			}
		}
		return receipt, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 1024)}
	}

	var msg twilioMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return receipt, fmt.Errorf("failed to decode twilio response: %w", err)
	}

	receipt.ID = msg.SID
	receipt.Status = msg.Status
	receipt.SentAt = s.clock.Now().UTC()

	return receipt, nil
}
