package model

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// RetryConfig represents alert delivery retry configuration
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	InitialDelayMs int     `json:"initial_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
}

// SetDefaults sets default values for retry configuration
func (rc *RetryConfig) SetDefaults() {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 3
	}
	if rc.InitialDelayMs == 0 {
		rc.InitialDelayMs = 1000
	}
	if rc.MaxDelayMs == 0 {
		rc.MaxDelayMs = 30000
	}
	if rc.Multiplier == 0 {
		rc.Multiplier = 2.0
	}
}

// Webhook represents a generic HTTP alert endpoint
type Webhook struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`

	// JSONPath expressions evaluated against the response body to build the receipt
	ReceiptPath string `json:"receipt_path,omitempty"`
	StatusPath  string `json:"status_path,omitempty"`
}

// Validate validates webhook configuration
func (w *Webhook) Validate() error {
	if w.URL == "" {
		return errors.New("webhook URL is required")
	}

	parsedURL, err := url.Parse(w.URL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return errors.New("webhook URL must start with http:// or https://")
	}

	if w.Method == "" {
		w.Method = "POST"
	}
	w.Method = strings.ToUpper(w.Method)

	for _, path := range []string{w.ReceiptPath, w.StatusPath} {
		if path != "" && !strings.HasPrefix(path, "$") {
			return fmt.Errorf("invalid JSONPath expression: %s (must start with '$')", path)
		}
	}

	return nil
}
