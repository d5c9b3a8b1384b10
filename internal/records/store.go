package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/fileutil"
)

// ErrNotFound no readable primary record exists for the date key
var ErrNotFound = errors.New("prediction record not found")

// maxBackupAttempts bound on collision suffixes for one timestamp
const maxBackupAttempts = 100

// Backup one superseded version of a record
type Backup struct {
	DateKey string    `json:"date_key"`
	Path    string    `json:"path"`
	Written time.Time `json:"written"`
}

// Store file-backed prediction record store
// ⭐ SSOT: the only writer of predictions/; it never deletes (retention does)
type Store struct {
	dir string
	log zerolog.Logger
	now func() time.Time
}

// NewStore creates a store rooted at dir
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "records.store").Logger(),
		now: time.Now,
	}
}

// WithClock overrides the wall clock (tests)
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Dir predictions directory
func (s *Store) Dir() string {
	return s.dir
}

// BackupDir directory holding superseded versions
func (s *Store) BackupDir() string {
	return filepath.Join(s.dir, BackupDirName)
}

func (s *Store) primaryPath(dateKey string) string {
	return filepath.Join(s.dir, PrimaryName(dateKey))
}

// Write persists record as the latest version of its date key.
// An existing primary is first copied byte for byte into the backup directory.
func (s *Store) Write(ctx context.Context, record *contracts.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	record.VersionTag = contracts.VersionLatest
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now.UTC()
	}
	if record.Predictions == nil {
		record.Predictions = []contracts.Prediction{}
	}
	if err := record.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create predictions dir: %w", err)
	}

	primary := s.primaryPath(record.Date)
	if _, err := os.Stat(primary); err == nil {
		backup, err := s.backup(primary, record.Date, now)
		if err != nil {
			return fmt.Errorf("backup %s: %w", record.Date, err)
		}
		s.log.Info().
			Str("date", record.Date).
			Str("backup", filepath.Base(backup)).
			Msg("existing record backed up")
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", primary, err)
	}

	if err := fileutil.WriteJSONAtomic(primary, record); err != nil {
		return fmt.Errorf("write record %s: %w", record.Date, err)
	}

	s.log.Info().
		Str("date", record.Date).
		Str("target_date", record.TargetDate).
		Int("predictions", len(record.Predictions)).
		Bool("weekend_batch", record.IsWeekendBatch).
		Msg("prediction record saved")
	return nil
}

// backup copies primary into a collision-free backup path
func (s *Store) backup(primary, dateKey string, now time.Time) (string, error) {
	for attempt := 0; attempt < maxBackupAttempts; attempt++ {
		dst := filepath.Join(s.BackupDir(), BackupName(dateKey, now.UTC(), attempt))
		err := fileutil.CopyFileExclusive(primary, dst)
		if err == nil {
			return dst, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free backup name after %d attempts", maxBackupAttempts)
}

// ReadLatest returns the primary record of a date key.
// Missing and unparseable files both yield ErrNotFound.
func (s *Store) ReadLatest(ctx context.Context, dateKey string) (*contracts.PredictionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.primaryPath(dateKey))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", dateKey, err)
	}

	var record contracts.PredictionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		s.log.Warn().Err(err).Str("date", dateKey).Msg("unparseable record treated as absent")
		return nil, ErrNotFound
	}
	return &record, nil
}

// List date keys of all primary records, ascending
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := ParsePrimaryName(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Backups superseded versions of a date key, oldest first
func (s *Store) Backups(ctx context.Context, dateKey string) ([]Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.BackupDir())
	if errors.Is(err, os.ErrNotExist) {
		return []Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}

	backups := make([]Backup, 0)
	for _, e := range entries {
		key, written, ok := ParseBackupName(e.Name())
		if !ok || key != dateKey {
			continue
		}
		backups = append(backups, Backup{
			DateKey: key,
			Path:    filepath.Join(s.BackupDir(), e.Name()),
			Written: written,
		})
	}
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Written.Equal(backups[j].Written) {
			return backups[i].Path < backups[j].Path
		}
		return backups[i].Written.Before(backups[j].Written)
	})
	return backups, nil
}
