package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bnema/ytaudio/config"
	HTTPAdapter "github.com/bnema/ytaudio/internal/adapter/http"
	"github.com/bnema/ytaudio/internal/infrastructure/logger"
	"github.com/bnema/ytaudio/internal/infrastructure/metrics"
	"github.com/bnema/ytaudio/internal/service"
)

const (
	cleanupInterval = time.Hour
	shutdownTimeout = 30 * time.Second
)

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	logger.Info.Printf("starting ytaudio %s on port %d, domain=%s", version, cfg.Port, cfg.Domain)

	authSvc, err := service.NewAuthService(cfg.APIKey, cfg.APIKeyHash)
	if err != nil {
		return fmt.Errorf("failed to set up auth: %w", err)
	}

	history, closeHistory, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("failed to open job history: %w", err)
	}
	defer func() { _ = closeHistory() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	extractionSvc, err := newExtractionService(cfg, history, m)
	if err != nil {
		return err
	}

	server := HTTPAdapter.NewServer(authSvc, extractionSvc, m, reg, HTTPAdapter.ServerConfig{
		Version:           version,
		Domain:            cfg.Domain,
		MaxBodyBytes:      cfg.MaxRequestBodyBytes(),
		MaxAttempts:       cfg.MaxAttempts,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		RequestsPerSecond: cfg.RequestsPerSecond,
		RequestBurst:      cfg.RequestBurst,
		AuthMaxFailures:   cfg.AuthMaxFailures,
		AuthFailureWindow: 15 * time.Minute,
		AuthBlockDuration: 30 * time.Minute,
		BehindProxy:       cfg.BehindProxy,
		AllowedOrigins:    cfg.AllowedOrigins,
		HistoryEnabled:    history != nil,
		MetricsEnabled:    cfg.MetricsEnabled,
	})
	defer server.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, extractionSvc)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      cfg.AttemptTimeout*time.Duration(cfg.MaxAttempts) + 2*cfg.MaxDelay + time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}
	logger.Info.Printf("shutdown complete")
	return nil
}

// runCleanup prunes history and stale job directories once at startup and
// then hourly until ctx ends.
func runCleanup(ctx context.Context, svc *service.ExtractionService) {
	cleanup := func() {
		if err := svc.Cleanup(); err != nil {
			logger.Error.Printf("cleanup failed: %v", err)
		}
	}
	cleanup()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cleanup()
		case <-ctx.Done():
			return
		}
	}
}
