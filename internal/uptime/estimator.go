package uptime

import (
	"context"
	"fmt"
	"time"
)

// Hours starting in [dayWindowStart, dayWindowEnd) local time count toward
// the day figures. This window is fixed and independent of a store's own
// business hours.
var (
	dayWindowStart = NewTimeOfDay(9, 0, 0)
	dayWindowEnd   = NewTimeOfDay(21, 0, 0)
)

// Estimator computes per-store results from a Source
type Estimator struct {
	source Source
}

// NewEstimator creates a new estimator
func NewEstimator(source Source) *Estimator {
	return &Estimator{source: source}
}

// Compute loads a store's inputs and estimates its uptime over [start, end).
// Any failure is returned as a *ComputationError.
func (e *Estimator) Compute(ctx context.Context, storeID int64, start, end time.Time) (Result, error) {
	tz, err := e.source.Timezone(ctx, storeID)
	if err != nil {
		return Result{}, &ComputationError{StoreID: storeID, Err: fmt.Errorf("failed to resolve timezone: %w", err)}
	}
	loc, err := LoadZone(tz)
	if err != nil {
		return Result{}, &ComputationError{StoreID: storeID, Err: err}
	}

	hours, err := e.source.BusinessHours(ctx, storeID)
	if err != nil {
		return Result{}, &ComputationError{StoreID: storeID, Err: fmt.Errorf("failed to resolve business hours: %w", err)}
	}

	observations, err := e.source.Observations(ctx, storeID, start, end)
	if err != nil {
		return Result{}, &ComputationError{StoreID: storeID, Err: fmt.Errorf("failed to fetch observations: %w", err)}
	}

	return Estimate(loc, hours, observations, start, end), nil
}

// Estimate walks [start, end) one hour at a time and accumulates the
// apportioned uptime and downtime of every hour that overlaps business
// hours. It is a pure function of its arguments.
func Estimate(loc *time.Location, hours BusinessHours, observations []Observation, start, end time.Time) Result {
	var hourUp, hourDown, dayUp, dayDown, weekUp, weekDown float64

	for t := range Hours(start, end) {
		hourStart := Localize(t, loc)
		hourEnd := hourStart.Add(time.Hour)

		if !hours.Overlaps(hourStart, hourEnd) {
			continue
		}

		up, down := apportion(observations, loc, hourStart, hourEnd)

		hourUp += up
		hourDown += down

		if clock := ClockOf(hourStart); clock >= dayWindowStart && clock < dayWindowEnd {
			dayUp += up
			dayDown += down
		}

		weekUp += up
		weekDown += down
	}

	return Result{
		UptimeLastHour:   hourUp,
		DowntimeLastHour: hourDown,
		UptimeLastDay:    dayUp / 60,
		DowntimeLastDay:  dayDown / 60,
		UptimeLastWeek:   weekUp / 60,
		DowntimeLastWeek: weekDown / 60,
	}
}

// apportion returns the uptime and downtime minutes credited to the hour
// [hourStart, hourEnd). Each observation inside the hour covers one hour
// forward from the later of its own time and hourStart; the span is not
// clipped at hourEnd and observations are not deduplicated.
func apportion(observations []Observation, loc *time.Location, hourStart, hourEnd time.Time) (up, down float64) {
	for _, obs := range observations {
		ts := Localize(obs.Timestamp, loc)
		if ts.Before(hourStart) || !ts.Before(hourEnd) {
			continue
		}

		from := ts
		if hourStart.After(from) {
			from = hourStart
		}
		span := ts.Add(time.Hour).Sub(from).Minutes()

		switch obs.Status {
		case StatusActive:
			up += span
		case StatusInactive:
			down += span
		}
	}
	return up, down
}
