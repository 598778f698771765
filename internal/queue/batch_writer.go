package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/metrics"
)

// ObservationSource is the consuming half of an observation consumer
type ObservationSource interface {
	Fetch(ctx context.Context) (Delivery, error)
	Commit(ctx context.Context, deliveries ...Delivery) error
}

// ObservationStore persists status observations
type ObservationStore interface {
	InsertObservations(ctx context.Context, rows []database.StatusRow) (int64, error)
}

// BatchWriter stores observations in batches. A batch is committed only
// after it is stored, and a batch that fails to store is retried before any
// later message is taken, so a commit never skips unstored offsets.
type BatchWriter struct {
	source        ObservationSource
	store         ObservationStore
	batchSize     int
	flushInterval time.Duration
	retryBackoff  time.Duration
	maxBackoff    time.Duration
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source ObservationSource, store ObservationStore, batchSize int, flushInterval time.Duration) *BatchWriter {
	return &BatchWriter{
		source:        source,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryBackoff:  500 * time.Millisecond,
		maxBackoff:    30 * time.Second,
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) error {
	if bw.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", bw.batchSize)
	}
	if bw.flushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", bw.flushInterval)
	}
	ctx, bw.cancel = context.WithCancel(ctx)

	deliveries := make(chan Delivery, bw.batchSize)
	bw.wg.Add(2)
	go bw.consume(ctx, deliveries)
	go bw.run(ctx, deliveries)
	return nil
}

// Stop stops the batch writer, making a last attempt to store the pending
// batch
func (bw *BatchWriter) Stop() {
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

func (bw *BatchWriter) consume(ctx context.Context, out chan<- Delivery) {
	defer bw.wg.Done()
	defer close(out)

	for {
		d, err := bw.source.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).Warn("Consumer error")
			continue
		}

		select {
		case out <- d:
		case <-ctx.Done():
			return
		}
	}
}

func (bw *BatchWriter) run(ctx context.Context, in <-chan Delivery) {
	defer bw.wg.Done()

	var batch []Delivery
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if len(batch) > 0 {
				logrus.WithField("messages", len(batch)).Debug("Flush interval reached")
				if bw.flush(ctx, batch) == nil {
					batch = nil
				}
			}

		case d, ok := <-in:
			if !ok {
				if len(batch) > 0 {
					flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					if err := bw.flush(flushCtx, batch); err != nil {
						logrus.WithError(err).WithField("messages", len(batch)).
							Warn("Pending observations left uncommitted for redelivery")
					}
					cancel()
				}
				return
			}
			batch = append(batch, d)

			if len(batch) >= bw.batchSize {
				if bw.flush(ctx, batch) == nil {
					batch = nil
				}
			}
		}
	}
}

// flush stores the decodable observations of a batch, retrying with
// backoff until it succeeds or ctx ends, then commits every delivery in it.
// Undecodable deliveries are committed too so they do not block the
// partition. A non-nil error means nothing was committed.
func (bw *BatchWriter) flush(ctx context.Context, batch []Delivery) error {
	if len(batch) == 0 {
		return nil
	}

	rows, rejected := collectRows(batch)

	backoff := bw.retryBackoff
	var inserted int64
	for attempt := 1; ; attempt++ {
		n, err := bw.store.InsertObservations(ctx, rows)
		if err == nil {
			inserted = n
			break
		}

		logrus.WithError(err).WithFields(logrus.Fields{
			"messages": len(batch),
			"attempt":  attempt,
			"retry_in": backoff,
		}).Error("Failed to store observation batch")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("observation batch not stored: %w", err)
		}
		backoff = min(backoff*2, bw.maxBackoff)
	}

	metrics.ObservationsIngested.WithLabelValues("kafka").Add(float64(inserted))
	if rejected > 0 {
		metrics.ObservationsRejected.WithLabelValues("kafka").Add(float64(rejected))
	}

	if err := bw.source.Commit(ctx, batch...); err != nil && !errors.Is(err, context.Canceled) {
		logrus.WithError(err).Warn("Failed to commit offsets")
	}

	logrus.WithFields(logrus.Fields{
		"messages": len(batch),
		"inserted": inserted,
		"rejected": rejected,
	}).Info("Flushed observation batch")
	return nil
}

func collectRows(batch []Delivery) ([]database.StatusRow, int) {
	rows := make([]database.StatusRow, 0, len(batch))
	rejected := 0

	for _, d := range batch {
		if d.Err != nil || d.Observation == nil {
			rejected++
			logrus.WithFields(logrus.Fields{
				"partition": d.Message.Partition,
				"offset":    d.Message.Offset,
			}).WithError(d.Err).Warn("Skipping malformed observation")
			continue
		}
		rows = append(rows, database.StatusRow{
			StoreID:   d.Observation.StoreID,
			Status:    d.Observation.Status,
			Timestamp: d.Observation.Timestamp,
		})
	}

	return rows, rejected
}
