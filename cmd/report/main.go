package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/ingest"
	"github.com/smukkama/store-monitoring/internal/logging"
	"github.com/smukkama/store-monitoring/internal/report"
	"github.com/smukkama/store-monitoring/pkg/config"
)

func main() {
	refresh := flag.Bool("refresh", false, "re-import the status CSV before generating")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logging.Setup(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logrus.Fatalf("Failed to run migrations: %v", err)
	}

	loader := ingest.NewLoader(db, cfg.Ingest)
	if err := loader.Bootstrap(ctx); err != nil {
		logrus.Fatalf("Failed to load initial data: %v", err)
	}
	if *refresh {
		if _, err := loader.Refresh(ctx); err != nil {
			logrus.Fatalf("Failed to refresh status data: %v", err)
		}
	}

	generator := report.NewGenerator(db, cfg.Report.Window, cfg.Report.Concurrency)
	manager := report.NewManager(db, nil, nil, generator, report.NewFileSink(cfg.Report.Dir))

	job, err := manager.Run(ctx)
	if err != nil {
		logrus.Fatalf("Failed to generate report: %v", err)
	}
	if job.Status != database.ReportStatusComplete {
		logrus.WithField("report_id", job.ReportID).Errorf("Report failed: %s", job.Error)
		os.Exit(1)
	}

	fmt.Println(job.ArtifactPath)
}
