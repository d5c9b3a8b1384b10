package admission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/fileutil"
)

var bufferPattern = regexp.MustCompile(`^weekend_(\d{8})\.json$`)

// BufferName file name of the buffer anchored at the given Friday
func BufferName(anchor time.Time) string {
	return fmt.Sprintf("weekend_%s.json", anchor.Format("20060102"))
}

// ParseBufferName extracts the anchor date of a buffer file name
func ParseBufferName(name string) (time.Time, bool) {
	m := bufferPattern.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102", m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// BufferStore file-backed WeekendBuffer persistence, one file per window
type BufferStore struct {
	dir string
	log zerolog.Logger
}

// NewBufferStore creates a store in dir
func NewBufferStore(dir string, log zerolog.Logger) *BufferStore {
	return &BufferStore{
		dir: dir,
		log: log.With().Str("component", "admission.buffers").Logger(),
	}
}

// Dir buffer directory
func (s *BufferStore) Dir() string {
	return s.dir
}

func (s *BufferStore) path(anchor time.Time) string {
	return filepath.Join(s.dir, BufferName(anchor))
}

// Load returns the buffer of a window, or nil when none exists.
// An unreadable buffer is logged and treated as absent.
func (s *BufferStore) Load(ctx context.Context, anchor time.Time) (*contracts.WeekendBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(anchor))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read weekend buffer: %w", err)
	}

	var buf contracts.WeekendBuffer
	if err := json.Unmarshal(data, &buf); err != nil {
		s.log.Error().Err(err).Str("anchor", contracts.DateKey(anchor)).Msg("weekend buffer unreadable, starting a new one")
		return nil, nil
	}
	return &buf, nil
}

// Save replaces the buffer file
func (s *BufferStore) Save(ctx context.Context, buf *contracts.WeekendBuffer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	anchor, err := contracts.ParseDateKey(buf.AnchorDate)
	if err != nil {
		return err
	}
	if err := fileutil.WriteJSONAtomic(s.path(anchor), buf); err != nil {
		return fmt.Errorf("save weekend buffer: %w", err)
	}
	return nil
}

// Delete removes the buffer of a window; a missing buffer is not an error
func (s *BufferStore) Delete(ctx context.Context, anchor time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(anchor)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete weekend buffer: %w", err)
	}
	return nil
}

// Anchors lists the anchor dates of all buffers on disk, ascending
func (s *BufferStore) Anchors() ([]time.Time, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list weekend buffers: %w", err)
	}

	var anchors []time.Time
	for _, e := range entries {
		if t, ok := ParseBufferName(e.Name()); ok {
			anchors = append(anchors, t)
		}
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i].Before(anchors[j]) })
	return anchors, nil
}
