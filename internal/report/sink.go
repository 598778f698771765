package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Header is the fixed column order of a report file
var Header = []string{
	"store_id",
	"uptime_last_hour",
	"downtime_last_hour",
	"uptime_last_day",
	"downtime_last_day",
	"uptime_last_week",
	"downtime_last_week",
}

// Sink persists report rows and returns a reference to the artifact
type Sink interface {
	Write(ctx context.Context, reportID string, rows []Row) (string, error)
}

// FileSink writes each report as a CSV file in a directory
type FileSink struct {
	dir string
	now func() time.Time
}

// NewFileSink creates a sink writing into dir
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir, now: time.Now}
}

// Write stores rows as <dir>/report_<timestamp>_<id>.csv. The file is
// written under a temporary name and renamed once complete.
func (s *FileSink) Write(ctx context.Context, reportID string, rows []Row) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("report_%s_%s.csv", s.now().Format("20060102_150405"), shortID(reportID))
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeCSV(ctx, tmp, rows); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to finalize report file: %w", err)
	}

	return path, nil
}

func writeCSV(ctx context.Context, f *os.File, rows []Row) error {
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.Write(Record(row)); err != nil {
			return fmt.Errorf("failed to write store %d: %w", row.StoreID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// Record formats a row in Header order
func Record(row Row) []string {
	return []string{
		strconv.FormatInt(row.StoreID, 10),
		formatFloat(row.UptimeLastHour),
		formatFloat(row.DowntimeLastHour),
		formatFloat(row.UptimeLastDay),
		formatFloat(row.DowntimeLastDay),
		formatFloat(row.UptimeLastWeek),
		formatFloat(row.DowntimeLastWeek),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
