package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/uptime"
)

// Layouts accepted for status timestamps, e.g. "2023-01-22 12:09:39.388884 UTC"
var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999Z07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses a status timestamp; values without a zone are UTC
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ParseStatusRecord parses a store_id,status,timestamp_utc record
func ParseStatusRecord(record []string) (StatusRow, error) {
	if len(record) != 3 {
		return StatusRow{}, fmt.Errorf("expected 3 fields, got %d", len(record))
	}
	storeID, err := parseStoreID(record[0])
	if err != nil {
		return StatusRow{}, err
	}
	status := strings.TrimSpace(record[1])
	if status == "" {
		return StatusRow{}, errors.New("empty status")
	}
	ts, err := ParseTimestamp(record[2])
	if err != nil {
		return StatusRow{}, err
	}
	return StatusRow{StoreID: storeID, Status: status, Timestamp: ts}, nil
}

// ParseMenuHoursRecord parses a store_id,day,start_time_local,end_time_local record
func ParseMenuHoursRecord(record []string) (MenuHoursRow, error) {
	if len(record) != 4 {
		return MenuHoursRow{}, fmt.Errorf("expected 4 fields, got %d", len(record))
	}
	storeID, err := parseStoreID(record[0])
	if err != nil {
		return MenuHoursRow{}, err
	}
	day, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil || day < 0 || day > 6 {
		return MenuHoursRow{}, fmt.Errorf("invalid day of week %q", record[1])
	}
	row := MenuHoursRow{
		StoreID:   storeID,
		DayOfWeek: day,
		StartTime: strings.TrimSpace(record[2]),
		EndTime:   strings.TrimSpace(record[3]),
	}
	if _, err := row.Window(); err != nil {
		return MenuHoursRow{}, err
	}
	return row, nil
}

// ParseTimezoneRecord parses a store_id,timezone_str record
func ParseTimezoneRecord(record []string) (TimezoneRow, error) {
	if len(record) != 2 {
		return TimezoneRow{}, fmt.Errorf("expected 2 fields, got %d", len(record))
	}
	storeID, err := parseStoreID(record[0])
	if err != nil {
		return TimezoneRow{}, err
	}
	tz := strings.TrimSpace(record[1])
	if _, err := uptime.LoadZone(tz); err != nil {
		return TimezoneRow{}, err
	}
	return TimezoneRow{StoreID: storeID, Timezone: tz}, nil
}

func parseStoreID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid store id %q", s)
	}
	return id, nil
}

// readRecords reads every data record of a headed CSV, converting each with
// parse. Malformed records are logged and counted, not fatal.
func readRecords[T any](r io.Reader, source string, parse func([]string) (T, error)) ([]T, ImportStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var stats ImportStats
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, nil
		}
		return nil, stats, fmt.Errorf("failed to read %s header: %w", source, err)
	}

	var out []T
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read %s: %w", source, err)
		}
		line, _ := reader.FieldPos(0)
		stats.Read++

		row, err := parse(record)
		if err != nil {
			stats.Rejected++
			logrus.WithFields(logrus.Fields{"source": source, "line": line}).WithError(err).Warn("Skipping malformed record")
			continue
		}
		out = append(out, row)
	}

	return out, stats, nil
}

// ImportStatusCSV merges a store status CSV into store_status. Rows already
// present with the same store, timestamp and status are skipped, so the
// import can be repeated safely.
func (db *DB) ImportStatusCSV(ctx context.Context, r io.Reader) (ImportStats, error) {
	rows, stats, err := readRecords(r, "store status", ParseStatusRecord)
	if err != nil {
		return stats, err
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = []interface{}{row.StoreID, row.Status, row.Timestamp}
	}

	stats.Inserted, err = db.copyMerge(ctx, "store_status", []string{"store_id", "status", "timestamp_utc"}, values, `
		INSERT INTO store_status (store_id, status, timestamp_utc)
		SELECT store_id, status, timestamp_utc FROM tmp_store_status
		ON CONFLICT ON CONSTRAINT store_status_dedup DO NOTHING
	`)
	return stats, err
}

// ImportMenuHoursCSV loads a business hours CSV into menu_hours
func (db *DB) ImportMenuHoursCSV(ctx context.Context, r io.Reader) (ImportStats, error) {
	rows, stats, err := readRecords(r, "menu hours", ParseMenuHoursRecord)
	if err != nil {
		return stats, err
	}

	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = []interface{}{row.StoreID, row.DayOfWeek, row.StartTime, row.EndTime}
	}

	stats.Inserted, err = db.copyMerge(ctx, "menu_hours", []string{"store_id", "day_of_week", "start_time_local", "end_time_local"}, values, `
		INSERT INTO menu_hours (store_id, day_of_week, start_time_local, end_time_local)
		SELECT DISTINCT store_id, day_of_week, start_time_local, end_time_local FROM tmp_menu_hours
	`)
	return stats, err
}

// ImportTimezonesCSV loads a store timezone CSV into store_timezones. The
// first row for a store wins.
func (db *DB) ImportTimezonesCSV(ctx context.Context, r io.Reader) (ImportStats, error) {
	rows, stats, err := readRecords(r, "timezones", ParseTimezoneRecord)
	if err != nil {
		return stats, err
	}

	rows = firstTimezones(rows)
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = []interface{}{row.StoreID, row.Timezone}
	}

	stats.Inserted, err = db.copyMerge(ctx, "store_timezones", []string{"store_id", "timezone"}, values, `
		INSERT INTO store_timezones (store_id, timezone)
		SELECT store_id, timezone FROM tmp_store_timezones
		ON CONFLICT (store_id) DO NOTHING
	`)
	return stats, err
}

// firstTimezones keeps the first row seen for each store, in file order
func firstTimezones(rows []TimezoneRow) []TimezoneRow {
	seen := make(map[int64]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		if seen[row.StoreID] {
			continue
		}
		seen[row.StoreID] = true
		out = append(out, row)
	}
	return out
}

// copyMerge bulk loads values into a temporary copy of table with COPY and
// runs mergeSQL to move them into place, all in one transaction.
func (db *DB) copyMerge(ctx context.Context, table string, columns []string, values [][]interface{}, mergeSQL string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	tmp := "tmp_" + table

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	create := fmt.Sprintf(`CREATE TEMPORARY TABLE %s (LIKE %s) ON COMMIT DROP`,
		pq.QuoteIdentifier(tmp), pq.QuoteIdentifier(table))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(tmp, columns...))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy into %s: %w", tmp, err)
	}
	for _, row := range values {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy row into %s: %w", tmp, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy into %s: %w", tmp, err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy into %s: %w", tmp, err)
	}

	result, err := tx.ExecContext(ctx, mergeSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to merge into %s: %w", table, err)
	}
	inserted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s import: %w", table, err)
	}
	return inserted, nil
}
