package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects predictor metrics in a private registry.
// Batch commands flush it to a node_exporter textfile; the API server serves it.
type Recorder struct {
	registry *prometheus.Registry
	textfile string

	backtestRuns     *prometheus.CounterVec
	resolutions      *prometheus.CounterVec
	admissions       *prometheus.CounterVec
	retentionDeleted *prometheus.CounterVec
	duration         *prometheus.HistogramVec

	totalPredictions   prometheus.Gauge
	correctPredictions prometheus.Gauge
	accuracy           prometheus.Gauge
	totalReturn        prometheus.Gauge
}

// New creates a Recorder. An empty textfile disables Flush.
func New(textfile string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		textfile: textfile,
		backtestRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictor",
			Name:      "backtest_runs_total",
			Help:      "Incremental backtest runs by status",
		}, []string{"status"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictor",
			Name:      "outcome_resolutions_total",
			Help:      "Outcome lookups by result",
		}, []string{"result"}),
		admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictor",
			Name:      "admission_decisions_total",
			Help:      "Admission decisions by kind",
		}, []string{"decision"}),
		retentionDeleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "predictor",
			Name:      "retention_deleted_total",
			Help:      "Artifacts deleted by the retention sweep, by class",
		}, []string{"class"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "predictor",
			Name:      "operation_duration_seconds",
			Help:      "Duration of batch operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		totalPredictions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "predictor",
			Name:      "cumulative_predictions",
			Help:      "Scored predictions in the cumulative stats",
		}),
		correctPredictions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "predictor",
			Name:      "cumulative_correct_predictions",
			Help:      "Correct predictions in the cumulative stats",
		}),
		accuracy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "predictor",
			Name:      "cumulative_accuracy_percent",
			Help:      "Cumulative directional accuracy",
		}),
		totalReturn: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "predictor",
			Name:      "cumulative_return_percent",
			Help:      "Cumulative simulated return",
		}),
	}
}

// RecordBacktestRun records a backtest run outcome (processed, noop, locked, failed).
func (r *Recorder) RecordBacktestRun(status string) {
	r.backtestRuns.WithLabelValues(status).Inc()
}

// RecordResolution records whether an outcome lookup produced a change.
func (r *Recorder) RecordResolution(resolved bool) {
	result := "unresolved"
	if resolved {
		result = "resolved"
	}
	r.resolutions.WithLabelValues(result).Inc()
}

// RecordAdmission records an admission decision kind.
func (r *Recorder) RecordAdmission(decision string) {
	r.admissions.WithLabelValues(decision).Inc()
}

// RecordRetentionDeleted adds n deletions for an artifact class.
func (r *Recorder) RecordRetentionDeleted(class string, n int) {
	r.retentionDeleted.WithLabelValues(class).Add(float64(n))
}

// RecordDuration observes an operation duration.
func (r *Recorder) RecordDuration(operation string, seconds float64) {
	r.duration.WithLabelValues(operation).Observe(seconds)
}

// SetCumulative publishes the current cumulative stats.
func (r *Recorder) SetCumulative(total, correct int, accuracy, totalReturn float64) {
	r.totalPredictions.Set(float64(total))
	r.correctPredictions.Set(float64(correct))
	r.accuracy.Set(accuracy)
	r.totalReturn.Set(totalReturn)
}

// Flush writes the registry to the configured textfile.
func (r *Recorder) Flush() error {
	if r.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler serves the registry over HTTP.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
