package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/admission"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/metrics"
)

// ConsumedSuffix appended to the inbox once its signals were admitted
const ConsumedSuffix = ".consumed"

// AdmissionJob feeds the forecaster's inbox file through the admission scheduler
// Schedule: hourly, so the Monday release window is never missed
type AdmissionJob struct {
	scheduler *admission.Scheduler
	inbox     string
	metrics   *metrics.Recorder
	logger    *logger.Logger
}

// NewAdmissionJob creates a new admission job
func NewAdmissionJob(s *admission.Scheduler, inbox string, m *metrics.Recorder, log *logger.Logger) *AdmissionJob {
	return &AdmissionJob{
		scheduler: s,
		inbox:     inbox,
		metrics:   m,
		logger:    log,
	}
}

// Name returns the job name
func (j *AdmissionJob) Name() string {
	return "admission"
}

// Schedule returns the cron schedule (five past every hour)
func (j *AdmissionJob) Schedule() string {
	return "0 5 * * * *"
}

// Run executes one admission pass
func (j *AdmissionJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute reads the inbox (if any) and admits it. Without an inbox only the
// Monday release check runs. The inbox is renamed once consumed so an hourly
// rerun never rewrites the same day.
func (j *AdmissionJob) Execute(ctx context.Context) (*contracts.AdmissionDecision, error) {
	data, err := os.ReadFile(j.inbox)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if !j.scheduler.InReleaseWindow() {
			j.logger.Debug("No signals inbox, nothing to admit")
			return nil, nil
		}
		data = nil
	case err != nil:
		return nil, fmt.Errorf("read signals inbox: %w", err)
	}

	var inbox *admission.Inbox
	if data != nil {
		inbox, err = admission.ParseInbox(data)
		if err != nil {
			return nil, err
		}
		for _, rejected := range inbox.Rejected {
			j.logger.WithError(rejected).Warn("Signal rejected at ingestion")
		}
	} else {
		inbox = &admission.Inbox{}
	}

	decision, err := j.scheduler.Admit(ctx, inbox.Signals, inbox.Narrative)
	if err != nil {
		return nil, fmt.Errorf("admit signals: %w", err)
	}
	j.metrics.RecordAdmission(string(decision.Kind))

	// signals handed in during the release window stay for the next run
	if data != nil && decision.ConsumedSignals() {
		if err := os.Rename(j.inbox, j.inbox+ConsumedSuffix); err != nil {
			j.logger.WithError(err).Warn("Failed to mark signals inbox consumed")
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"decision": decision.Kind,
		"signals":  len(inbox.Signals),
		"buffered": decision.BufferedCount,
	}).Info("Admission completed")

	return decision, nil
}
