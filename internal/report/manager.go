package report

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/smukkama/store-monitoring/internal/database"
	"github.com/smukkama/store-monitoring/internal/metrics"
	"github.com/smukkama/store-monitoring/internal/protocol"
)

// ErrNotFound is returned for report ids that were never issued
var ErrNotFound = errors.New("report not found")

// Job is the externally visible state of a report
type Job struct {
	ReportID     string    `json:"report_id"`
	Status       string    `json:"status"` // Running, Complete, Failed
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the job has finished
func (j *Job) Terminal() bool {
	return j.Status == database.ReportStatusComplete || j.Status == database.ReportStatusFailed
}

func jobFromReport(r *database.Report) *Job {
	job := &Job{
		ReportID:  r.ReportID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ArtifactPath != nil {
		job.ArtifactPath = *r.ArtifactPath
	}
	if r.Error != nil {
		job.Error = *r.Error
	}
	return job
}

// JobStore persists the report lifecycle
type JobStore interface {
	CreateReport(ctx context.Context, reportID string, createdAt time.Time) error
	CompleteReport(ctx context.Context, reportID, artifactPath string) error
	FailReport(ctx context.Context, reportID, message string) error
	GetReport(ctx context.Context, reportID string) (*database.Report, error)
	FailRunningReports(ctx context.Context, message string) (int64, error)
}

// Publisher announces finished reports
type Publisher interface {
	PublishReportEvent(ctx context.Context, event *protocol.ReportEvent) error
}

// Manager issues report ids and runs generation in the background
type Manager struct {
	jobs      JobStore
	cache     StatusCache
	publisher Publisher
	generator *Generator
	sink      Sink
	now       func() time.Time

	// Terminal states that could not be written to the job store
	unsaved sync.Map
	wg      sync.WaitGroup
}

// NewManager creates a report manager. cache and publisher may be nil.
func NewManager(jobs JobStore, cache StatusCache, publisher Publisher, generator *Generator, sink Sink) *Manager {
	return &Manager{
		jobs:      jobs,
		cache:     cache,
		publisher: publisher,
		generator: generator,
		sink:      sink,
		now:       time.Now,
	}
}

// Trigger registers a new Running report, starts generating it and
// returns its id without waiting for the result
func (m *Manager) Trigger(ctx context.Context) (string, error) {
	job, err := m.create(ctx)
	if err != nil {
		return "", err
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.execute(context.WithoutCancel(ctx), job)
	}()

	return job.ReportID, nil
}

// Run registers a report and generates it synchronously
func (m *Manager) Run(ctx context.Context) (*Job, error) {
	job, err := m.create(ctx)
	if err != nil {
		return nil, err
	}
	return m.execute(ctx, job), nil
}

// Wait blocks until every background generation has finished or ctx ends.
// It returns ctx's error if generations are still running.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("reports still running: %w", ctx.Err())
	}
}

// Status returns the current state of a report
func (m *Manager) Status(ctx context.Context, reportID string) (*Job, error) {
	if v, ok := m.unsaved.Load(reportID); ok {
		return v.(*Job), nil
	}

	// Only terminal states are served from the cache. A cached Running entry
	// may belong to a job another process has since failed or finished.
	if m.cache != nil {
		job, err := m.cache.Get(ctx, reportID)
		if err != nil {
			logrus.WithField("report_id", reportID).WithError(err).Warn("Status cache read failed")
		} else if job != nil && job.Terminal() {
			return job, nil
		}
	}

	r, err := m.jobs.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", reportID, err)
	}
	if r == nil {
		return nil, ErrNotFound
	}

	job := jobFromReport(r)
	if job.Terminal() {
		m.cacheJob(ctx, job)
	}
	return job, nil
}

// RecoverInterrupted fails reports left Running by a previous process
func (m *Manager) RecoverInterrupted(ctx context.Context) error {
	n, err := m.jobs.FailRunningReports(ctx, "interrupted by restart")
	if err != nil {
		return fmt.Errorf("failed to recover interrupted reports: %w", err)
	}
	if n > 0 {
		logrus.WithField("reports", n).Warn("Marked interrupted reports as failed")
	}
	return nil
}

func (m *Manager) create(ctx context.Context) (*Job, error) {
	now := m.now().UTC()
	job := &Job{
		ReportID:  uuid.NewString(),
		Status:    database.ReportStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := m.jobs.CreateReport(ctx, job.ReportID, now); err != nil {
		return nil, fmt.Errorf("failed to register report: %w", err)
	}
	m.cacheJob(ctx, job)

	logrus.WithField("report_id", job.ReportID).Info("Report triggered")
	return job, nil
}

// execute generates the report and records its terminal state. It never
// leaves the job Running.
func (m *Manager) execute(ctx context.Context, job *Job) (final *Job) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			final = m.finish(ctx, job, nil, fmt.Errorf("report generation panicked: %v", r))
		}
		metrics.ReportDuration.Observe(time.Since(started).Seconds())
	}()

	summary, err := m.generator.Generate(ctx)
	if err != nil {
		return m.finish(ctx, job, nil, err)
	}

	path, err := m.sink.Write(ctx, job.ReportID, summary.Rows)
	if err != nil {
		return m.finish(ctx, job, summary, fmt.Errorf("failed to write report: %w", err))
	}

	done := *job
	done.Status = database.ReportStatusComplete
	done.ArtifactPath = path
	return m.finish(ctx, &done, summary, nil)
}

func (m *Manager) finish(ctx context.Context, job *Job, summary *Summary, genErr error) *Job {
	final := *job
	final.UpdatedAt = m.now().UTC()

	log := logrus.WithField("report_id", final.ReportID)

	var storeErr error
	if genErr != nil {
		final.Status = database.ReportStatusFailed
		final.ArtifactPath = ""
		final.Error = genErr.Error()
		storeErr = m.jobs.FailReport(ctx, final.ReportID, final.Error)
		log.WithError(genErr).Error("Report generation failed")
	} else {
		storeErr = m.jobs.CompleteReport(ctx, final.ReportID, final.ArtifactPath)
		log.WithField("path", final.ArtifactPath).Info("Report complete")
	}
	metrics.ReportsTotal.WithLabelValues(final.Status).Inc()

	if storeErr != nil {
		log.WithError(storeErr).Error("Failed to persist report state")
		m.unsaved.Store(final.ReportID, &final)
	}
	m.cacheJob(ctx, &final)
	m.publish(ctx, &final, summary)

	return &final
}

func (m *Manager) cacheJob(ctx context.Context, job *Job) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Set(ctx, job); err != nil {
		logrus.WithField("report_id", job.ReportID).WithError(err).Warn("Status cache write failed")
	}
}

func (m *Manager) publish(ctx context.Context, job *Job, summary *Summary) {
	if m.publisher == nil {
		return
	}

	event := &protocol.ReportEvent{
		Type:         protocol.ReportEventCompleted,
		ReportID:     job.ReportID,
		ArtifactPath: job.ArtifactPath,
		Error:        job.Error,
		FinishedAt:   job.UpdatedAt,
	}
	if job.Status == database.ReportStatusFailed {
		event.Type = protocol.ReportEventFailed
	}
	if summary != nil {
		event.Stores = len(summary.Rows)
		event.Excluded = len(summary.Excluded)
	}

	if err := m.publisher.PublishReportEvent(ctx, event); err != nil {
		logrus.WithField("report_id", job.ReportID).WithError(err).Warn("Failed to publish report event")
	}
}
