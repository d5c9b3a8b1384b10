package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/fileutil"
)

// FileStatsStore keeps CumulativeStats in a single JSON file
type FileStatsStore struct {
	path string
	log  zerolog.Logger
	now  func() time.Time
}

// NewFileStatsStore creates a store at path
func NewFileStatsStore(path string, log zerolog.Logger) *FileStatsStore {
	return &FileStatsStore{
		path: path,
		log:  log.With().Str("component", "backtest.stats_file").Logger(),
		now:  time.Now,
	}
}

// Path location of the stats file
func (s *FileStatsStore) Path() string {
	return s.path
}

// Load reads the stats; a missing file is the zero singleton.
// A corrupt file is moved aside and the zero singleton returned.
func (s *FileStatsStore) Load(ctx context.Context) (*contracts.CumulativeStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return contracts.NewCumulativeStats(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cumulative stats: %w", err)
	}

	var stats contracts.CumulativeStats
	if err := json.Unmarshal(data, &stats); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().UTC().Format("20060102T150405"))
		if renameErr := os.Rename(s.path, aside); renameErr != nil {
			return nil, fmt.Errorf("move corrupt stats aside: %w", renameErr)
		}
		s.log.Error().
			Err(err).
			Str("path", s.path).
			Str("moved_to", aside).
			Msg("CUMULATIVE STATS CORRUPT: starting from zero, previous file preserved")
		return contracts.NewCumulativeStats(), nil
	}

	stats.Normalize()
	return &stats, nil
}

// Save atomically replaces the stats file
func (s *FileStatsStore) Save(ctx context.Context, stats *contracts.CumulativeStats) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(s.path, stats); err != nil {
		return fmt.Errorf("save cumulative stats: %w", err)
	}
	return nil
}
