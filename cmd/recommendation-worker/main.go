package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fintrack/internal/amqp"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := cli.SetupLogger(cfg, os.Stdout, log.ComponentWorker)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the recommendation worker")
		os.Exit(1)
	}

	logger.Info("Starting recommendation-worker",
		log.FieldBackend, cfg.DataBackend,
		log.FieldQueue, cfg.AMQPRequestQueue)

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	parent, abort := context.WithCancel(context.Background())
	defer abort()

	result, err := cli.OpenBackend(parent, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Warn("Failed to close backend", log.FieldError, err)
		}
	}()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRequestQueue, cfg.AMQPResultQueue,
		logger.WithComponent(log.ComponentAMQP))
	if err != nil {
		return err
	}
	defer client.Close()

	engine := cli.NewEngine(cfg, result.Provider, logger)
	processor := cli.NewRecurringProcessor(result, logger)
	wcfg := worker.Config{
		Concurrency:  cfg.WorkerConcurrency,
		DefaultLimit: cfg.RecommendationLimit,
		Logger:       logger.WithComponent(log.ComponentWorker),
		Recurring:    processor,
	}
	if result.Cache != nil {
		wcfg.Cache = result.Cache
	}
	w := worker.NewRecommendationWorker(engine, result.Store, client, wcfg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, done := cli.GracefulShutdown(parent, logger, shutdownTimeout, func(shutdownCtx context.Context) {
		logger.Info("Shutting down worker...", log.FieldOperation, log.OpShutdown)
		if err := w.Stop(shutdownCtx); err != nil {
			logger.Warn("Scheduler did not stop cleanly", log.FieldError, err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", log.FieldError, err)
		}
	})

	go func() {
		logger.Info("Serving metrics", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", log.FieldError, err)
		}
	}()

	if result.Cache != nil {
		manager := cache.NewManager(logger.WithComponent(log.ComponentCache))
		result.Cache.Register(manager)
		go manager.Run(ctx, cfg.SnapshotCacheTTL)
	}

	if cfg.RecurringSchedule != "" {
		// Catch up on anything that fell due while the worker was down.
		if err := w.RunRecurring(ctx); err != nil {
			logger.Error("Initial recurring run failed", log.FieldError, err)
		}
	}
	schedule := worker.Schedule{Digest: cfg.DigestSchedule, Recurring: cfg.RecurringSchedule}
	if schedule.Digest != "" || schedule.Recurring != "" {
		if err := w.Start(ctx, schedule); err != nil {
			abort()
			<-done
			return err
		}
	}

	consumeErr := cli.RunUntilDone(ctx, logger, abort, func(ctx context.Context) error {
		return client.ConsumeRecommendationRequests(ctx, w.HandleRequest)
	})

	cli.WaitForShutdown(ctx, done)
	return <-consumeErr
}
