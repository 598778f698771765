package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/metrics"
	"github.com/smukkama/store-monitoring/internal/timer"
	"github.com/smukkama/store-monitoring/pkg/config"
)

// RefreshTaskID identifies the recurring status refresh in the scheduler
const RefreshTaskID = "status-refresh"

// Importer loads CSV snapshots into the database
type Importer interface {
	TableEmpty(ctx context.Context, table string) (bool, error)
	ImportStatusCSV(ctx context.Context, r io.Reader) (database.ImportStats, error)
	ImportMenuHoursCSV(ctx context.Context, r io.Reader) (database.ImportStats, error)
	ImportTimezonesCSV(ctx context.Context, r io.Reader) (database.ImportStats, error)
}

type importFunc func(ctx context.Context, r io.Reader) (database.ImportStats, error)

// Loader seeds and refreshes the store tables from CSV files
type Loader struct {
	db  Importer
	cfg config.IngestConfig
}

// NewLoader creates a new loader
func NewLoader(db Importer, cfg config.IngestConfig) *Loader {
	return &Loader{db: db, cfg: cfg}
}

// Bootstrap imports each CSV whose table is still empty. Missing files are
// skipped with a warning.
func (l *Loader) Bootstrap(ctx context.Context) error {
	sources := []struct {
		table string
		path  string
		load  importFunc
	}{
		{"store_timezones", l.cfg.TimezonesCSV, l.db.ImportTimezonesCSV},
		{"menu_hours", l.cfg.MenuHoursCSV, l.db.ImportMenuHoursCSV},
		{"store_status", l.cfg.StatusCSV, l.db.ImportStatusCSV},
	}

	for _, src := range sources {
		empty, err := l.db.TableEmpty(ctx, src.table)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", src.table, err)
		}
		if !empty {
			logrus.WithField("table", src.table).Debug("Table already seeded")
			continue
		}

		if _, err := l.importFile(ctx, src.path, src.table, src.load); err != nil {
			return err
		}
	}

	return nil
}

// Refresh re-imports the status CSV. Rows already stored are skipped.
func (l *Loader) Refresh(ctx context.Context) (database.ImportStats, error) {
	return l.importFile(ctx, l.cfg.StatusCSV, "store_status", l.db.ImportStatusCSV)
}

// Schedule registers Refresh as a recurring task aligned to the configured
// interval and delay
func (l *Loader) Schedule(tm *timer.TimerManager, now time.Time) error {
	first := timer.NextRunTime(now, l.cfg.RefreshInterval, l.cfg.RefreshDelay)

	logrus.WithFields(logrus.Fields{
		"first_run": first.Format(time.RFC3339),
		"interval":  l.cfg.RefreshInterval,
	}).Info("Scheduling status refresh")

	return tm.Every(RefreshTaskID, first, l.cfg.RefreshInterval, func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.cfg.RefreshInterval)
		defer cancel()
		if _, err := l.Refresh(ctx); err != nil {
			logrus.WithError(err).Error("Status refresh failed")
		}
	})
}

func (l *Loader) importFile(ctx context.Context, path, table string, load importFunc) (database.ImportStats, error) {
	log := logrus.WithFields(logrus.Fields{"table": table, "file": path})

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("CSV file not found, skipping import")
		return database.ImportStats{}, nil
	}
	if err != nil {
		return database.ImportStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	stats, err := load(ctx, f)
	if err != nil {
		return stats, fmt.Errorf("failed to import %s into %s: %w", path, table, err)
	}

	if table == "store_status" {
		metrics.ObservationsIngested.WithLabelValues("csv").Add(float64(stats.Inserted))
		metrics.ObservationsRejected.WithLabelValues("csv").Add(float64(stats.Rejected))
	}

	log.WithFields(logrus.Fields{
		"read":     stats.Read,
		"inserted": stats.Inserted,
		"rejected": stats.Rejected,
		"duration": time.Since(start),
	}).Info("CSV import complete")

	return stats, nil
}
