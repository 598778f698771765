package database

import (
	"time"
)

// StatusRow is one polled store status as stored in store_status
type StatusRow struct {
	StoreID   int64
	Status    string
	Timestamp time.Time
}

// MenuHoursRow is one business-hours row in store-local time
type MenuHoursRow struct {
	StoreID   int64
	DayOfWeek int // 0 = Monday
	StartTime string
	EndTime   string
}

// TimezoneRow maps a store to its IANA timezone
type TimezoneRow struct {
	StoreID  int64
	Timezone string
}

// Report represents a report generation job
type Report struct {
	ReportID     string
	Status       string
	ArtifactPath *string
	Error        *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

const (
	ReportStatusRunning  = "Running"
	ReportStatusComplete = "Complete"
	ReportStatusFailed   = "Failed"
)

// ImportStats summarises one CSV import
type ImportStats struct {
	Read     int64
	Inserted int64
	Rejected int64
}
