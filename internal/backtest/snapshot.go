package backtest

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/fileutil"
)

const snapshotTimeLayout = "20060102_150405"

var snapshotPattern = regexp.MustCompile(`^backtest_result_(\d{8})_(\d{6})(?:_\d+)?\.json$`)

// SnapshotName file name of the per-run snapshot written at t
func SnapshotName(t time.Time) string {
	return fmt.Sprintf("backtest_result_%s.json", t.Format(snapshotTimeLayout))
}

// ParseSnapshotName extracts the date embedded in a snapshot file name
func ParseSnapshotName(name string) (time.Time, bool) {
	m := snapshotPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SnapshotWriter writes per-run result artifacts into a directory
type SnapshotWriter struct {
	dir string
}

// NewSnapshotWriter creates a writer for dir
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir}
}

// Dir snapshot directory
func (w *SnapshotWriter) Dir() string {
	return w.dir
}

// Write stores the snapshot and returns its path
func (w *SnapshotWriter) Write(snapshot *contracts.BacktestSnapshot, at time.Time) (string, error) {
	path := filepath.Join(w.dir, SnapshotName(at))
	if err := fileutil.WriteJSONAtomic(path, snapshot); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
