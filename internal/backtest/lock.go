package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrLocked another aggregator run holds the lock
var ErrLocked = errors.New("backtest lock is held by another run")

// lockInfo holder details written into the lock file for operators
type lockInfo struct {
	Run        string    `json:"run"`
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// FileLock advisory lock serializing aggregator runs.
// The kernel drops the lock when the holding process exits, so a crashed
// run never blocks the next one. The file itself is left in place.
type FileLock struct {
	path string
	log  zerolog.Logger
	now  func() time.Time
}

// NewFileLock creates a lock at path
func NewFileLock(path string, log zerolog.Logger) *FileLock {
	return &FileLock{
		path: path,
		log:  log.With().Str("component", "backtest.lock").Logger(),
		now:  time.Now,
	}
}

// Acquire takes the lock without waiting and returns its release function.
// A lock held by anyone else yields ErrLocked.
func (l *FileLock) Acquire() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", l.path, err)
	}
	if !ok {
		if holder, err := l.holder(); err == nil {
			l.log.Warn().Str("run", holder.Run).Int("pid", holder.PID).Time("acquired_at", holder.AcquiredAt).Msg("backtest lock held")
		}
		return nil, ErrLocked
	}

	run := uuid.NewString()
	info := lockInfo{Run: run, PID: os.Getpid(), AcquiredAt: l.now().UTC()}
	if data, err := json.Marshal(info); err == nil {
		if err := os.WriteFile(l.path, data, 0o644); err != nil {
			l.log.Warn().Err(err).Str("path", l.path).Msg("cannot record lock holder")
		}
	}
	l.log.Debug().Str("run", run).Msg("backtest lock acquired")

	return func() {
		if err := fl.Unlock(); err != nil {
			l.log.Error().Err(err).Str("path", l.path).Msg("failed to release backtest lock")
		}
	}, nil
}

// holder reads the details of the run that last took the lock
func (l *FileLock) holder() (*lockInfo, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode lock file: %w", err)
	}
	return &info, nil
}
