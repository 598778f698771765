package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/api"
	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/ingest"
	"github.com/smukkama/store-monitoring/internal/logging"
	"github.com/smukkama/store-monitoring/internal/queue"
	"github.com/smukkama/store-monitoring/internal/report"
	"github.com/smukkama/store-monitoring/internal/timer"
	"github.com/smukkama/store-monitoring/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	logrus.Info("Starting Store Monitoring Server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Connected to database")

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	// Seed tables from CSV snapshots
	loader := ingest.NewLoader(db, cfg.Ingest)
	if err := loader.Bootstrap(ctx); err != nil {
		logrus.Fatalf("Failed to load initial data: %v", err)
	}

	// Optional status cache
	var cache report.StatusCache
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logrus.WithError(err).Warn("Redis unavailable, serving report status from database only")
		} else {
			cache = report.NewRedisStatusCache(redisClient, cfg.Redis.StatusTTL)
			logrus.WithField("addr", cfg.Redis.Addr).Info("Connected to Redis")
		}
	}

	// Optional report events
	var publisher report.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		if err := queue.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicReports, 1, 1); err != nil {
			logrus.WithError(err).Warn("Could not ensure report topic")
		}
		reportPublisher := queue.NewReportPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicReports)
		defer reportPublisher.Close()
		publisher = reportPublisher
		logrus.WithField("topic", cfg.Kafka.TopicReports).Info("Kafka report publisher initialized")
	}

	generator := report.NewGenerator(db, cfg.Report.Window, cfg.Report.Concurrency)
	manager := report.NewManager(db, cache, publisher, generator, report.NewFileSink(cfg.Report.Dir))
	if err := manager.RecoverInterrupted(ctx); err != nil {
		logrus.WithError(err).Warn("Could not recover interrupted reports")
	}

	// Periodic status refresh
	timerManager := timer.NewTimerManager(1)
	timerManager.Start()
	defer timerManager.Stop()

	if err := loader.Schedule(timerManager, time.Now()); err != nil {
		logrus.Fatalf("Failed to schedule status refresh: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.NewRouter(manager),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	logrus.WithField("addr", cfg.HTTP.Addr).Info("Store Monitoring Server is running")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logrus.WithError(err).Error("HTTP server failed")
	}

	logrus.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown did not complete")
	}

	// Let in-flight reports reach a terminal state before the database closes.
	// Reports still running afterwards are failed on the next start.
	if err := manager.Wait(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("In-flight reports did not finish before shutdown timeout")
	}
	logrus.Info("Store Monitoring Server stopped")
}
