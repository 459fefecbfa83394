package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reaper/internal/adapters/config"
	"reaper/internal/adapters/errors/noop"
	"reaper/internal/adapters/errors/sentry"
	"reaper/internal/bootstrap"
	"reaper/pkg/errors"
	"reaper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	container, err := bootstrap.New(cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := container.SeedLevels(ctx); err != nil {
		log.Fatalf("Failed to seed level table: %v", err)
	}

	if err := container.Scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	go func() {
		if err := container.Beacon.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("Beacon consumer stopped: %v", err)
		}
	}()

	go func() {
		if err := container.Server.Start(); err != nil {
			log.Errorf("HTTP server stopped: %v", err)
			cancel()
		}
	}()

	log.Info("Engine running")

	waitForShutdown(ctx, cancel, container, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func waitForShutdown(ctx context.Context, cancel context.CancelFunc, container *bootstrap.Container, log *logger.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Infof("Received signal %s, shutting down", sig)
	case <-ctx.Done():
		log.Info("Context cancelled, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	container.Shutdown(shutdownCtx)
	log.Info("Shutdown complete")
}
