package records

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// BackupTimestampLayout write timestamp embedded in backup names
const BackupTimestampLayout = "20060102T150405.000000000"

// BackupDirName backup subdirectory of the predictions directory
const BackupDirName = "backup"

var (
	primaryPattern = regexp.MustCompile(`^prediction_(\d{4}-\d{2}-\d{2})\.json$`)
	backupPattern  = regexp.MustCompile(`^prediction_(\d{4}-\d{2}-\d{2})_backup_(\d{8}T\d{6}\.\d{9})(?:_\d+)?\.json$`)
)

// PrimaryName file name of the primary record of a date key
func PrimaryName(dateKey string) string {
	return fmt.Sprintf("prediction_%s.json", dateKey)
}

// BackupName file name of a backup; attempt > 0 adds a collision suffix
func BackupName(dateKey string, written time.Time, attempt int) string {
	ts := written.Format(BackupTimestampLayout)
	if attempt == 0 {
		return fmt.Sprintf("prediction_%s_backup_%s.json", dateKey, ts)
	}
	return fmt.Sprintf("prediction_%s_backup_%s_%d.json", dateKey, ts, attempt)
}

// ParsePrimaryName extracts the date key of a primary record file name
func ParsePrimaryName(name string) (string, bool) {
	m := primaryPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", false
	}
	if _, err := contracts.ParseDateKey(m[1]); err != nil {
		return "", false
	}
	return m[1], true
}

// ParseBackupName extracts the date key and write timestamp of a backup file name
func ParseBackupName(name string) (string, time.Time, bool) {
	m := backupPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return "", time.Time{}, false
	}
	written, err := time.Parse(BackupTimestampLayout, m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], written, true
}
