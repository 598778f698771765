package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/smukkama/store-monitoring/internal/metrics"
	"github.com/smukkama/store-monitoring/internal/uptime"
)

// Store supplies the estimator inputs and enumerates the stores to report on
type Store interface {
	uptime.Source
	StoreIDs(ctx context.Context) ([]int64, error)
}

// Row is one store's line in a report
type Row struct {
	StoreID int64
	uptime.Result
}

// Summary is the outcome of one generation run
type Summary struct {
	Rows     []Row
	Excluded []int64
	Start    time.Time
	End      time.Time
}

// Generator computes report rows for every store
type Generator struct {
	store       Store
	estimator   *uptime.Estimator
	window      time.Duration
	concurrency int
	now         func() time.Time
}

// NewGenerator creates a generator reporting on [now-window, now) with at
// most concurrency stores computed at once
func NewGenerator(store Store, window time.Duration, concurrency int) *Generator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Generator{
		store:       store,
		estimator:   uptime.NewEstimator(store),
		window:      window,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Generate computes one row per store in enumeration order. A store whose
// computation fails is logged and left out; only failing to enumerate the
// stores fails the whole run.
func (g *Generator) Generate(ctx context.Context) (*Summary, error) {
	ids, err := g.store.StoreIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate stores: %w", err)
	}

	end := g.now().UTC()
	start := end.Add(-g.window)

	slots := make([]*Row, len(ids))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)

	for i, id := range ids {
		eg.Go(func() error {
			result, err := g.compute(egCtx, id, start, end)
			if err != nil {
				metrics.StoreFailures.Inc()
				entry := logrus.WithField("store_id", id).WithError(err)
				var compErr *uptime.ComputationError
				if errors.As(err, &compErr) {
					entry = entry.WithField("cause", compErr.Err)
				}
				entry.Warn("Excluding store from report")
				return nil
			}
			metrics.StoresComputed.Inc()
			slots[i] = &Row{StoreID: id, Result: result}
			return nil
		})
	}
	_ = eg.Wait()

	summary := &Summary{
		Rows:  make([]Row, 0, len(ids)),
		Start: start,
		End:   end,
	}
	for i, row := range slots {
		if row == nil {
			summary.Excluded = append(summary.Excluded, ids[i])
			continue
		}
		summary.Rows = append(summary.Rows, *row)
	}

	return summary, nil
}

// compute runs the estimator for one store. A panic is turned into that
// store's ComputationError so it cannot take down the process.
func (g *Generator) compute(ctx context.Context, id int64, start, end time.Time) (result uptime.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &uptime.ComputationError{StoreID: id, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return g.estimator.Compute(ctx, id, start, end)
}
