// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/fintrack and cmd/recommendation-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/backend"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// sets it as the default logger.
func SetupLogger(cfg *config.Config, out io.Writer, component string) *log.Logger {
	level, err := log.ParseLevel(cfg.LogLevel)
	logger := log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info level", log.FieldError, err)
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenBackend creates the configured store, wrapped by the snapshot cache when
// SNAPSHOT_CACHE_TTL is set. Callers must Close the result.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", bc.Type, err)
	}
	return result, nil
}

// NewEngine wires a RecommendationEngine with the configured thresholds.
func NewEngine(cfg *config.Config, provider services.DataProvider, logger *log.Logger) *services.RecommendationEngine {
	return services.NewRecommendationEngine(provider,
		services.WithLogger(logger),
		services.WithZScoreThreshold(cfg.ZScoreThreshold),
		services.WithSpikeWindow(cfg.SpikeWindowDays),
		services.WithDefaultLimit(cfg.RecommendationLimit),
	)
}

// NewRecurringProcessor wires the recurring processor to the backend's store,
// invalidating the snapshot cache after postings when one is configured.
func NewRecurringProcessor(result *backend.BackendResult, logger *log.Logger) *services.RecurringProcessor {
	var inv services.Invalidator
	if result.Cache != nil {
		inv = result.Cache
	}
	return services.NewRecurringProcessor(result.Store, inv, logger.WithComponent(log.ComponentRecurring))
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals or when parent
// is cancelled, and a channel that is closed once cleanup has run.
func GracefulShutdown(parent context.Context, logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// RunUntilDone runs fn in its own goroutine and calls abort when it returns, so
// a failing consumer brings the process down. The returned channel yields
// fn's error once, or nil when fn stopped because ctx was cancelled.
func RunUntilDone(ctx context.Context, logger *log.Logger, abort context.CancelFunc, fn func(context.Context) error) <-chan error {
	errc := make(chan error, 1)
	go func() {
		defer abort()
		err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err)
		} else {
			err = nil
		}
		errc <- err
	}()
	return errc
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
