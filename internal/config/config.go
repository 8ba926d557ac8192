package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dandantas/lifeline/internal/model"
)

// Alert senders
const (
	SenderLog     = "log"
	SenderTwilio  = "twilio"
	SenderWebhook = "webhook"
)

// Config holds all application configuration
type Config struct {
	// HTTP Server Configuration
	HTTPPort         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	// Logging Configuration
	LogLevel  string
	LogFormat string

	// CORS Configuration
	CORSAllowedOrigins   string
	CORSAllowedMethods   string
	CORSAllowedHeaders   string
	CORSAllowCredentials bool
	CORSMaxAge           int

	// Empty disables the X-Demo-Key check
	DemoKey string

	// Monitor Configuration
	CheckInWindow time.Duration
	MonitorPolicy string
	SeedSubjects  []string

	// Alert Configuration
	AlertRecipient string
	AlertTimeout   time.Duration
	AlertTimezone  string
	AlertSender    string
	AlertRetry     model.RetryConfig

	// Twilio Configuration
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
	TwilioAPIURL      string

	// Webhook Configuration
	WebhookURL         string
	WebhookMethod      string
	WebhookReceiptPath string
	WebhookStatusPath  string

	// Dispatch Worker Configuration
	DispatchWorkers   int
	DispatchQueueSize int
	SweepConcurrency  int

	MetricsEnabled bool
}

// Load reads configuration from environment variables with sensible defaults
func Load() *Config {
	return &Config{
		// HTTP Server
		HTTPPort:         getEnv("HTTP_PORT", "3000"),
		HTTPReadTimeout:  getDurationEnv("HTTP_READ_TIMEOUT_SEC", 15) * time.Second,
		HTTPWriteTimeout: getDurationEnv("HTTP_WRITE_TIMEOUT_SEC", 30) * time.Second,

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// CORS
		CORSAllowedOrigins:   getEnv("CORS_ALLOWED_ORIGINS", "*"),
		CORSAllowedMethods:   getEnv("CORS_ALLOWED_METHODS", "GET, POST, OPTIONS"),
		CORSAllowedHeaders:   getEnv("CORS_ALLOWED_HEADERS", "Content-Type, X-Demo-Key, X-Correlation-ID"),
		CORSAllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAge:           getIntEnv("CORS_MAX_AGE", 3600),

		DemoKey: getEnv("DEMO_KEY", ""),

		// Monitor
		CheckInWindow: getDurationEnv("CHECKIN_WINDOW_SEC", 300) * time.Second,
		MonitorPolicy: strings.ToLower(getEnv("MONITOR_POLICY", model.PolicyDeadline)),
		SeedSubjects:  getListEnv("SEED_SUBJECTS"),

		// Alerts
		AlertRecipient: getEnv("ALERT_RECIPIENT", ""),
		AlertTimeout:   getDurationEnv("ALERT_TIMEOUT_SEC", 10) * time.Second,
		AlertTimezone:  getEnv("ALERT_TIMEZONE", "UTC"),
		AlertSender:    strings.ToLower(getEnv("ALERT_SENDER", SenderLog)),
		AlertRetry: model.RetryConfig{
			MaxAttempts:    getIntEnv("ALERT_MAX_ATTEMPTS", 1),
			InitialDelayMs: getIntEnv("ALERT_INITIAL_DELAY_MS", 1000),
			MaxDelayMs:     getIntEnv("ALERT_MAX_DELAY_MS", 5000),
			Multiplier:     getFloatEnv("ALERT_BACKOFF_MULTIPLIER", 2.0),
		},

		// Twilio
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioAPIURL:      getEnv("TWILIO_API_URL", ""),

		// Webhook
		WebhookURL:         getEnv("WEBHOOK_URL", ""),
		WebhookMethod:      getEnv("WEBHOOK_METHOD", "POST"),
		WebhookReceiptPath: getEnv("WEBHOOK_RECEIPT_PATH", ""),
		WebhookStatusPath:  getEnv("WEBHOOK_STATUS_PATH", ""),

		// Dispatch workers
		DispatchWorkers:   getIntEnv("DISPATCH_WORKERS", 4),
		DispatchQueueSize: getIntEnv("DISPATCH_QUEUE_SIZE", 100),
		SweepConcurrency:  getIntEnv("SWEEP_CONCURRENCY", 10),

		MetricsEnabled: getBoolEnv("METRICS_ENABLED", true),
	}
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.CheckInWindow <= 0 {
		errs = append(errs, errors.New("CHECKIN_WINDOW_SEC must be positive"))
	}
	if c.MonitorPolicy != model.PolicyDeadline && c.MonitorPolicy != model.PolicySweep {
		errs = append(errs, fmt.Errorf("MONITOR_POLICY must be %q or %q (got %q)", model.PolicyDeadline, model.PolicySweep, c.MonitorPolicy))
	}
	if c.AlertTimeout <= 0 {
		errs = append(errs, errors.New("ALERT_TIMEOUT_SEC must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("ALERT_TIMEZONE: %w", err))
	}
	if c.DispatchWorkers <= 0 {
		errs = append(errs, errors.New("DISPATCH_WORKERS must be positive"))
	}
	if c.DispatchQueueSize < 0 {
		errs = append(errs, errors.New("DISPATCH_QUEUE_SIZE must not be negative"))
	}
	for _, id := range c.SeedSubjects {
		if err := model.ValidateSubjectID(id); err != nil {
			errs = append(errs, fmt.Errorf("SEED_SUBJECTS: %w", err))
		}
	}

	switch c.AlertSender {
	case SenderLog:
	case SenderTwilio:
		if c.AlertRecipient == "" {
			errs = append(errs, errors.New("ALERT_RECIPIENT is required for the twilio sender"))
		}
	case SenderWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required for the webhook sender"))
		}
	default:
		errs = append(errs, fmt.Errorf("ALERT_SENDER must be one of log, twilio, webhook (got %q)", c.AlertSender))
	}

	return errors.Join(errs...)
}

// Location returns the time zone used to format alert messages
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.AlertTimezone)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: Invalid float value for %s, using default %g", key, defaultValue)
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return time.Duration(intVal)
		}
		log.Printf("Warning: Invalid duration value for %s, using default %d", key, defaultValue)
	}
	return time.Duration(defaultValue)
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		log.Printf("Warning: Invalid boolean value for %s, using default %t", key, defaultValue)
	}
	return defaultValue
}

// getListEnv splits a comma separated variable, dropping blanks
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
