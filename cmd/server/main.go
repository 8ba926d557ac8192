package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dandantas/lifeline/internal/alert"
	"github.com/dandantas/lifeline/internal/config"
	"github.com/dandantas/lifeline/internal/handler"
	"github.com/dandantas/lifeline/internal/metrics"
	"github.com/dandantas/lifeline/internal/model"
	"github.com/dandantas/lifeline/internal/monitor"
	"github.com/dandantas/lifeline/internal/notify"
	"github.com/dandantas/lifeline/internal/scheduler"
	"github.com/dandantas/lifeline/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// runner is a monitoring policy with a lifecycle
type runner interface {
	handler.Monitor
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Lifeline check-in monitor", "version", version)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()

	// Metrics
	var (
		mt             *metrics.Metrics
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		mt = metrics.New(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
	}

	// Initialize alert sender and dispatcher
	sender, err := buildSender(cfg, clk)
	if err != nil {
		slog.Error("Failed to create alert sender", "sender", cfg.AlertSender, "error", err)
		os.Exit(1)
	}

	location, _ := cfg.Location()
	dispatcher := alert.NewDispatcher(sender, cfg.AlertRecipient, location)

	// Initialize monitor
	mon := buildMonitor(cfg, dispatcher, clk, mt)

	for _, subjectID := range cfg.SeedSubjects {
		if err := mon.Enroll(subjectID); err != nil {
			slog.Error("Failed to seed subject", "subject_id", subjectID, "error", err)
			os.Exit(1)
		}
	}

	if err := mon.Start(ctx); err != nil {
		slog.Error("Failed to start monitor", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	monitorHandler := handler.NewMonitorHandler(mon)
	smsHandler := handler.NewSMSHandler(sender, cfg.AlertTimeout)
	healthHandler := handler.NewHealthHandler(mon, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		monitorHandler,
		smsHandler,
		healthHandler,
		metricsHandler,
		corsConfig,
		cfg.DemoKey,
	)

	if cfg.DemoKey == "" {
		slog.Warn("DEMO_KEY is not set, API routes are unauthenticated")
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()
	healthHandler.SetReady(true)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")
	healthHandler.SetReady(false)

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop accepting check-ins before the monitor goes away
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Stopping monitor...")
	if err := mon.Stop(shutdownCtx); err != nil {
		slog.Error("Monitor shutdown error", "error", err)
	}

	slog.Info("Lifeline check-in monitor stopped")
}

// buildSender creates the configured provider, wrapped with retries when more than one attempt is allowed
func buildSender(cfg *config.Config, clk clock.Clock) (notify.Sender, error) {
	var (
		sender notify.Sender
		err    error
	)

	switch cfg.AlertSender {
	case config.SenderTwilio:
		sender, err = notify.NewTwilioSender(notify.TwilioConfig{
			AccountSID:  cfg.TwilioAccountSID,
			AuthToken:   cfg.TwilioAuthToken,
			PhoneNumber: cfg.TwilioPhoneNumber,
			APIURL:      cfg.TwilioAPIURL,
		}, cfg.AlertTimeout, clk)
	case config.SenderWebhook:
		sender, err = notify.NewWebhookSender(model.Webhook{
			URL:         cfg.WebhookURL,
			Method:      cfg.WebhookMethod,
			ReceiptPath: cfg.WebhookReceiptPath,
			StatusPath:  cfg.WebhookStatusPath,
		}, cfg.AlertTimeout, clk)
	case config.SenderLog:
		sender = notify.NewLogSender(clk)
	default:
		err = fmt.Errorf("unknown alert sender %q", cfg.AlertSender)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AlertRetry.MaxAttempts > 1 {
		slog.Info("Alert retries enabled",
			"max_attempts", cfg.AlertRetry.MaxAttempts,
			"initial_delay_ms", cfg.AlertRetry.InitialDelayMs,
		)
		sender = notify.NewResilientSender(sender, cfg.AlertRetry, notify.BreakerConfig{}, clk)
	}

	return sender, nil
}

// buildMonitor creates the configured monitoring policy
func buildMonitor(cfg *config.Config, dispatcher *alert.Dispatcher, clk clock.Clock, mt *metrics.Metrics) runner {
	if cfg.MonitorPolicy == model.PolicySweep {
		slog.Info("Using sweep monitoring policy", "window_sec", cfg.CheckInWindow.Seconds())
		return scheduler.NewSweeper(scheduler.Config{
			Window:       cfg.CheckInWindow,
			AlertTimeout: cfg.AlertTimeout,
			Concurrency:  cfg.SweepConcurrency,
			Clock:        clk,
			Metrics:      mt,
		}, dispatcher)
	}

	slog.Info("Using deadline monitoring policy", "window_sec", cfg.CheckInWindow.Seconds())
	return monitor.NewDeadlineMonitor(cfg.CheckInWindow, dispatcher,
		monitor.WithClock(clk),
		monitor.WithMetrics(mt),
		monitor.WithAlertTimeout(cfg.AlertTimeout),
		monitor.WithWorkers(cfg.DispatchWorkers, cfg.DispatchQueueSize),
	)
}
