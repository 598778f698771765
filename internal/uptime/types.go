package uptime

import (
	"context"
	"fmt"
	"time"
)

// Status is the polled state of a store at one instant
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Observation is a single polled status reading
type Observation struct {
	Timestamp time.Time
	Status    Status
}

// Result holds the six uptime/downtime figures for one store.
// The LastHour figures are minutes, the others are hours.
type Result struct {
	UptimeLastHour   float64
	DowntimeLastHour float64
	UptimeLastDay    float64
	DowntimeLastDay  float64
	UptimeLastWeek   float64
	DowntimeLastWeek float64
}

// Source supplies the per-store inputs of the estimator
type Source interface {
	// Timezone returns the IANA zone of a store, or "" when unknown.
	Timezone(ctx context.Context, storeID int64) (string, error)
	BusinessHours(ctx context.Context, storeID int64) (BusinessHours, error)
	// Observations returns the readings with timestamps in [start, end).
	Observations(ctx context.Context, storeID int64, start, end time.Time) ([]Observation, error)
}

// ComputationError reports a failure computing one store's result
type ComputationError struct {
	StoreID int64
	Err     error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("store %d: %v", e.StoreID, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
