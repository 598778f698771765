package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/uptime"
)

// ErrReportNotRunning is returned when finishing a report that already
// reached a terminal state or does not exist
var ErrReportNotRunning = errors.New("report is not running")

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// Connect establishes a connection to the database
func Connect(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &DB{db}, nil
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		logrus.WithField("migration", filename).Info("Running migration")

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	logrus.WithField("count", len(sqlFiles)).Info("All migrations completed successfully")
	return nil
}

// Timezone returns the timezone of a store, falling back to
// uptime.DefaultTimezone when the store has no record
func (db *DB) Timezone(ctx context.Context, storeID int64) (string, error) {
	query := `
		SELECT timezone
		FROM store_timezones
		WHERE store_id = $1
	`

	var tz string
	err := db.QueryRowContext(ctx, query, storeID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && tz == "") {
		return uptime.DefaultTimezone, nil
	}
	if err != nil {
		return "", err
	}
	return tz, nil
}

// BusinessHours returns the weekly opening windows of a store. Weekdays
// with several rows are widened to span the earliest open and latest close.
func (db *DB) BusinessHours(ctx context.Context, storeID int64) (uptime.BusinessHours, error) {
	query := `
		SELECT day_of_week, start_time_local::text, end_time_local::text
		FROM menu_hours
		WHERE store_id = $1
		ORDER BY day_of_week, start_time_local
	`

	rows, err := db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := make(uptime.BusinessHours)
	for rows.Next() {
		var row MenuHoursRow
		if err := rows.Scan(&row.DayOfWeek, &row.StartTime, &row.EndTime); err != nil {
			return nil, err
		}

		w, err := row.Window()
		if err != nil {
			return nil, fmt.Errorf("store %d day %d: %w", storeID, row.DayOfWeek, err)
		}
		if existing, ok := hours[row.DayOfWeek]; ok {
			w.Open = min(w.Open, existing.Open)
			w.Close = max(w.Close, existing.Close)
		}
		hours[row.DayOfWeek] = w
	}

	return hours, rows.Err()
}

// Window converts the row's local times to an uptime.Window
func (r MenuHoursRow) Window() (uptime.Window, error) {
	open, err := uptime.ParseTimeOfDay(r.StartTime)
	if err != nil {
		return uptime.Window{}, err
	}
	closing, err := uptime.ParseTimeOfDay(r.EndTime)
	if err != nil {
		return uptime.Window{}, err
	}
	return uptime.Window{Open: open, Close: closing}, nil
}

// Observations returns the status readings of a store in [start, end)
func (db *DB) Observations(ctx context.Context, storeID int64, start, end time.Time) ([]uptime.Observation, error) {
	query := `
		SELECT timestamp_utc, status
		FROM store_status
		WHERE store_id = $1
		  AND timestamp_utc >= $2
		  AND timestamp_utc < $3
	`

	rows, err := db.QueryContext(ctx, query, storeID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var observations []uptime.Observation
	for rows.Next() {
		var obs uptime.Observation
		var status string
		if err := rows.Scan(&obs.Timestamp, &status); err != nil {
			return nil, err
		}
		obs.Status = uptime.Status(status)
		observations = append(observations, obs)
	}

	return observations, rows.Err()
}

// StoreIDs returns every store referenced by observations or business
// hours, ascending
func (db *DB) StoreIDs(ctx context.Context) ([]int64, error) {
	query := `
		SELECT store_id FROM store_status
		UNION
		SELECT store_id FROM menu_hours
		ORDER BY store_id
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// InsertObservations inserts status rows, skipping any already stored with
// the same store, timestamp and status. It returns the number inserted.
func (db *DB) InsertObservations(ctx context.Context, rows []StatusRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO store_status (store_id, status, timestamp_utc)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT store_status_dedup DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		result, err := stmt.ExecContext(ctx, row.StoreID, row.Status, row.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("failed to insert observation for store %d: %w", row.StoreID, err)
		}
		n, _ := result.RowsAffected()
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit observations: %w", err)
	}
	return inserted, nil
}

// TableEmpty reports whether one of the seedable tables has no rows
func (db *DB) TableEmpty(ctx context.Context, table string) (bool, error) {
	switch table {
	case "store_status", "menu_hours", "store_timezones":
	default:
		return false, fmt.Errorf("unknown table %q", table)
	}

	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s LIMIT 1)`, pq.QuoteIdentifier(table))
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		return false, err
	}
	return !exists, nil
}

// CreateReport records a new report in the Running state
func (db *DB) CreateReport(ctx context.Context, reportID string, createdAt time.Time) error {
	query := `
		INSERT INTO reports (report_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
	`
	_, err := db.ExecContext(ctx, query, reportID, ReportStatusRunning, createdAt)
	return err
}

// CompleteReport moves a running report to Complete with its artifact path
func (db *DB) CompleteReport(ctx context.Context, reportID, artifactPath string) error {
	query := `
		UPDATE reports
		SET status = $1, artifact_path = $2, updated_at = CURRENT_TIMESTAMP
		WHERE report_id = $3 AND status = $4
	`
	return db.finishReport(ctx, query, ReportStatusComplete, artifactPath, reportID, ReportStatusRunning)
}

// FailReport moves a running report to Failed with an error message
func (db *DB) FailReport(ctx context.Context, reportID, message string) error {
	query := `
		UPDATE reports
		SET status = $1, error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE report_id = $3 AND status = $4
	`
	return db.finishReport(ctx, query, ReportStatusFailed, message, reportID, ReportStatusRunning)
}

// FailRunningReports marks every report still Running as Failed. Used at
// startup for jobs whose process went away mid-generation.
func (db *DB) FailRunningReports(ctx context.Context, message string) (int64, error) {
	query := `
		UPDATE reports
		SET status = $1, error = $2, updated_at = CURRENT_TIMESTAMP
		WHERE status = $3
	`
	result, err := db.ExecContext(ctx, query, ReportStatusFailed, message, ReportStatusRunning)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (db *DB) finishReport(ctx context.Context, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrReportNotRunning
	}
	return nil
}

// GetReport retrieves a report by id, or nil if it does not exist
func (db *DB) GetReport(ctx context.Context, reportID string) (*Report, error) {
	query := `
		SELECT report_id, status, artifact_path, error, created_at, updated_at
		FROM reports
		WHERE report_id = $1
	`

	var r Report
	err := db.QueryRowContext(ctx, query, reportID).Scan(
		&r.ReportID,
		&r.Status,
		&r.ArtifactPath,
		&r.Error,
		&r.CreatedAt,
		&r.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}
