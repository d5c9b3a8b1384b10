// Package retention prunes aged prediction artifacts.
//
// Pruning looks only at the date embedded in each artifact name and ignores
// whether the aggregator has processed a record. Horizons must therefore
// exceed the longest gap between a record being written and the next
// backtest run, or unprocessed records are lost.
package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/admission"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/backtest"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/records"
)

// Class managed artifact class
type Class string

const (
	ClassPredictions    Class = "predictions"
	ClassReports        Class = "reports"
	ClassSnapshots      Class = "snapshots"
	ClassBackups        Class = "backups"
	ClassWeekendBuffers Class = "weekend_buffers"
)

// Classes in sweep order
var Classes = []Class{ClassPredictions, ClassReports, ClassSnapshots, ClassBackups, ClassWeekendBuffers}

var reportPattern = regexp.MustCompile(`^report_(\d{8})$`)

// Policy directories and horizons (days)
type Policy struct {
	PredictionsDir  string
	ReportsDir      string
	SnapshotDir     string
	WeekendCacheDir string
	PredictionDays  int
	BackupDays      int
	Location        *time.Location
	DryRun          bool
}

// Report outcome of one sweep
type Report struct {
	DryRun  bool               `json:"dry_run"`
	Deleted map[Class][]string `json:"deleted"`
	Kept    map[Class]int      `json:"kept"`
	Failed  map[Class]int      `json:"failed"`
	Skipped int                `json:"skipped"`
	Errors  []string           `json:"errors,omitempty"`
}

// DeletedCount total artifacts removed (or that would be removed in a dry run)
func (r *Report) DeletedCount() int {
	n := 0
	for _, paths := range r.Deleted {
		n += len(paths)
	}
	return n
}

func newReport(dryRun bool) *Report {
	return &Report{
		DryRun:  dryRun,
		Deleted: make(map[Class][]string),
		Kept:    make(map[Class]int),
		Failed:  make(map[Class]int),
	}
}

// candidate one dated artifact found on disk
type candidate struct {
	path  string
	date  time.Time
	isDir bool
}

// Manager age-based cleanup of on-disk artifacts
type Manager struct {
	policy   Policy
	log      zerolog.Logger
	onDelete func(class string, n int)
}

// NewManager creates a retention manager
func NewManager(policy Policy, log zerolog.Logger) *Manager {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Manager{
		policy: policy,
		log:    log.With().Str("component", "retention").Logger(),
	}
}

// OnDelete registers a per-class deletion hook (metrics)
func (m *Manager) OnDelete(fn func(class string, n int)) *Manager {
	m.onDelete = fn
	return m
}

// Expired reports whether an artifact dated embedded is past the horizon.
// Whole calendar days are compared; equality with the horizon is kept.
func Expired(embedded, now time.Time, horizonDays int) bool {
	return daysBetween(embedded, now) > horizonDays
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// Sweep walks every managed class and removes expired artifacts.
// Parse failures are skipped; delete failures are counted, never fatal.
func (m *Manager) Sweep(ctx context.Context, now time.Time) *Report {
	now = now.In(m.policy.Location)
	report := newReport(m.policy.DryRun)

	for _, class := range Classes {
		if err := ctx.Err(); err != nil {
			report.Errors = append(report.Errors, err.Error())
			break
		}

		found, skipped, err := m.scan(class)
		report.Skipped += skipped
		if err != nil {
			m.log.Warn().Err(err).Str("class", string(class)).Msg("cannot scan retention class")
			report.Errors = append(report.Errors, err.Error())
			continue
		}

		horizon := m.horizon(class)
		deleted := 0
		for _, c := range found {
			if !Expired(c.date, now, horizon) {
				report.Kept[class]++
				continue
			}
			if !m.policy.DryRun {
				if err := remove(c); err != nil {
					m.log.Error().Err(err).Str("path", c.path).Msg("failed to delete expired artifact")
					report.Failed[class]++
					report.Errors = append(report.Errors, err.Error())
					continue
				}
			}
			report.Deleted[class] = append(report.Deleted[class], c.path)
			deleted++
		}

		if deleted > 0 {
			m.log.Info().
				Str("class", string(class)).
				Int("deleted", deleted).
				Int("horizon_days", horizon).
				Bool("dry_run", m.policy.DryRun).
				Msg("expired artifacts pruned")
			if m.onDelete != nil && !m.policy.DryRun {
				m.onDelete(string(class), deleted)
			}
		}
	}

	return report
}

func (m *Manager) horizon(class Class) int {
	if class == ClassBackups {
		return m.policy.BackupDays
	}
	return m.policy.PredictionDays
}

func remove(c candidate) error {
	if c.isDir {
		return os.RemoveAll(c.path)
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// scan lists dated artifacts of a class; names that match the class prefix
// but carry no parseable date are counted as skipped
func (m *Manager) scan(class Class) ([]candidate, int, error) {
	switch class {
	case ClassPredictions:
		return scanDir(m.policy.PredictionsDir, false, func(name string) (time.Time, bool, bool) {
			if !strings.HasPrefix(name, "prediction_") || filepath.Ext(name) != ".json" {
				return time.Time{}, false, false
			}
			if _, _, isBackup := records.ParseBackupName(name); isBackup {
				return time.Time{}, false, false
			}
			key, ok := records.ParsePrimaryName(name)
			if !ok {
				return time.Time{}, false, true
			}
			t, err := contracts.ParseDateKey(key)
			return t, err == nil, err != nil
		}, m.log)

	case ClassReports:
		return scanDir(m.policy.ReportsDir, true, func(name string) (time.Time, bool, bool) {
			if !strings.HasPrefix(name, "report_") {
				return time.Time{}, false, false
			}
			mm := reportPattern.FindStringSubmatch(name)
			if mm == nil {
				return time.Time{}, false, true
			}
			t, err := time.Parse("20060102", mm[1])
			return t, err == nil, err != nil
		}, m.log)

	case ClassSnapshots:
		return scanDir(m.policy.SnapshotDir, false, func(name string) (time.Time, bool, bool) {
			if !strings.HasPrefix(name, "backtest_result_") {
				return time.Time{}, false, false
			}
			t, ok := backtest.ParseSnapshotName(name)
			return t, ok, !ok
		}, m.log)

	case ClassBackups:
		dir := filepath.Join(m.policy.PredictionsDir, records.BackupDirName)
		return scanDir(dir, false, func(name string) (time.Time, bool, bool) {
			if !strings.HasPrefix(name, "prediction_") {
				return time.Time{}, false, false
			}
			_, written, ok := records.ParseBackupName(name)
			// stamps are UTC instants; count days on the market calendar
			return written.In(m.policy.Location), ok, !ok
		}, m.log)

	case ClassWeekendBuffers:
		return scanDir(m.policy.WeekendCacheDir, false, func(name string) (time.Time, bool, bool) {
			if !strings.HasPrefix(name, "weekend_") {
				return time.Time{}, false, false
			}
			t, ok := admission.ParseBufferName(name)
			return t, ok, !ok
		}, m.log)
	}
	return nil, 0, fmt.Errorf("unknown retention class %q", class)
}

// dateParser returns (date, matched, malformed)
type dateParser func(name string) (time.Time, bool, bool)

func scanDir(dir string, wantDirs bool, parse dateParser, log zerolog.Logger) ([]candidate, int, error) {
	if dir == "" {
		return nil, 0, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []candidate
	skipped := 0
	for _, e := range entries {
		if e.IsDir() != wantDirs {
			continue
		}
		date, ok, malformed := parse(e.Name())
		if malformed {
			log.Warn().Str("name", e.Name()).Msg("cannot parse date from artifact name, skipping")
			skipped++
			continue
		}
		if !ok {
			continue
		}
		out = append(out, candidate{path: filepath.Join(dir, e.Name()), date: date, isDir: wantDirs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].path < out[j].path })
	return out, skipped, nil
}
