// Package client is a small HTTP client for the Lifeline API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dandantas/lifeline/internal/model"
)

// DefaultURL is used when no server URL is configured
const DefaultURL = "http://localhost:3000"

// APIError is returned for non-2xx responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lifeline: %d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// Client talks to a Lifeline server
type Client struct {
	baseURL    *url.URL
	demoKey    string
	httpClient *http.Client
}

// New creates a client for the server at rawURL. demoKey may be empty.
func New(rawURL, demoKey string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", rawURL)
	}

	return &Client{
		baseURL:    u,
		demoKey:    demoKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// CheckIn records a check-in for subjectID
func (c *Client) CheckIn(ctx context.Context, subjectID string) (model.ScheduleResponse, error) {
	var resp model.ScheduleResponse
	err := c.do(ctx, http.MethodPost, "/api/checkin/"+url.PathEscape(subjectID), nil, &resp)
	return resp, err
}

// Enroll enrolls subjectID
func (c *Client) Enroll(ctx context.Context, subjectID string) (model.SubjectResponse, error) {
	var resp model.SubjectResponse
	err := c.do(ctx, http.MethodPost, "/api/subjects/"+url.PathEscape(subjectID), nil, &resp)
	return resp, err
}

// Subject fetches a single subject
func (c *Client) Subject(ctx context.Context, subjectID string) (model.SubjectResponse, error) {
	var resp model.SubjectResponse
	err := c.do(ctx, http.MethodGet, "/api/subjects/"+url.PathEscape(subjectID), nil, &resp)
	return resp, err
}

// Status fetches the state of every subject
func (c *Client) Status(ctx context.Context) (model.StatusResponse, error) {
	var resp model.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// Notify sends a manual alert for subjectID
func (c *Client) Notify(ctx context.Context, subjectID string) (model.NotifyResponse, error) {
	var resp model.NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/checkin/"+url.PathEscape(subjectID)+"/notify", nil, &resp)
	return resp, err
}

// SendTestSMS sends a one-off message through the server's sender
func (c *Client) SendTestSMS(ctx context.Context, to, body string) (model.NotifyResponse, error) {
	var resp model.NotifyResponse
	err := c.do(ctx, http.MethodPost, "/api/sms/test", model.SMSTestRequest{To: to, Body: body}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.demoKey != "" {
		req.Header.Set("X-Demo-Key", c.demoKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &errResp) == nil && (errResp.Message != "" || errResp.Error != "") {
			apiErr.Message = errResp.Message
			if apiErr.Message == "" {
				apiErr.Message = errResp.Error
			}
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
