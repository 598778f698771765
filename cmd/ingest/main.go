package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/logging"
	"github.com/smukkama/store-monitoring/internal/queue"
	"github.com/smukkama/store-monitoring/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		logrus.Fatal("KAFKA_BROKERS is required for streaming ingestion")
	}

	logrus.Info("Starting Status Ingest Service...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logrus.Info("Connected to database")

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	if err := queue.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicObservations, 3, 1); err != nil {
		logrus.WithError(err).Warn("Could not ensure observation topic")
	}

	consumer := queue.NewObservationConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicObservations, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	batchWriter := queue.NewBatchWriter(consumer, db, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval)
	if err := batchWriter.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start batch writer: %v", err)
	}

	// Log consumer stats periodically
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stats := consumer.Stats()
				logrus.WithFields(logrus.Fields{
					"messages": stats.Messages,
					"bytes":    stats.Bytes,
					"errors":   stats.Errors,
					"lag":      stats.Lag,
				}).Info("Consumer stats")
			case <-ctx.Done():
				return
			}
		}
	}()

	logrus.WithFields(logrus.Fields{
		"topic":          cfg.Kafka.TopicObservations,
		"group":          cfg.Kafka.ConsumerGroup,
		"batch_size":     cfg.Kafka.BatchSize,
		"flush_interval": cfg.Kafka.FlushInterval,
	}).Info("Status Ingest Service is running")

	<-ctx.Done()

	logrus.Info("Shutting down gracefully...")
	batchWriter.Stop()
	logrus.Info("Status Ingest Service stopped")
}
