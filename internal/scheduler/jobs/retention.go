package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/retention"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/metrics"
)

// RetentionJob prunes aged artifacts
type RetentionJob struct {
	manager *retention.Manager
	metrics *metrics.Recorder
	logger  *logger.Logger
	now     func() time.Time
}

// NewRetentionJob creates a new retention sweep job
func NewRetentionJob(manager *retention.Manager, m *metrics.Recorder, log *logger.Logger) *RetentionJob {
	return &RetentionJob{
		manager: manager,
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "retention_sweep"
}

// Schedule returns the cron schedule (daily 04:00)
func (j *RetentionJob) Schedule() string {
	return "0 0 4 * * *"
}

// Run executes the sweep. Delete failures are logged by the sweep and never
// fail the job; only cancellation does.
func (j *RetentionJob) Run(ctx context.Context) error {
	j.Execute(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	return nil
}

// Execute runs one sweep and publishes metrics
func (j *RetentionJob) Execute(ctx context.Context) *retention.Report {
	start := time.Now()
	report := j.manager.Sweep(ctx, j.now())
	j.metrics.RecordDuration("retention", time.Since(start).Seconds())
	if err := j.metrics.Flush(); err != nil {
		j.logger.WithError(err).Warn("Failed to flush metrics")
	}

	j.logger.WithFields(map[string]interface{}{
		"deleted": report.DeletedCount(),
		"skipped": report.Skipped,
		"errors":  len(report.Errors),
		"dry_run": report.DryRun,
	}).Info("Retention sweep completed")

	return report
}
