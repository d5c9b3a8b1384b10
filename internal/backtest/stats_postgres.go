package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

const statsSingletonID = "singleton"

// PostgresStatsStore keeps CumulativeStats as a JSONB row in backtest.cumulative_stats
type PostgresStatsStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStatsStore creates a store on pool
func NewPostgresStatsStore(pool *pgxpool.Pool, log zerolog.Logger) *PostgresStatsStore {
	return &PostgresStatsStore{
		pool: pool,
		log:  log.With().Str("component", "backtest.stats_postgres").Logger(),
	}
}

// EnsureSchema creates the schema and table when missing
func (s *PostgresStatsStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE SCHEMA IF NOT EXISTS backtest;
		CREATE TABLE IF NOT EXISTS backtest.cumulative_stats (
			id         TEXT PRIMARY KEY,
			payload    JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure stats schema: %w", err)
	}
	return nil
}

// Load reads the singleton row; no row is the zero singleton.
// A payload that does not decode is renamed aside and the zero singleton returned.
func (s *PostgresStatsStore) Load(ctx context.Context) (*contracts.CumulativeStats, error) {
	query := `SELECT payload FROM backtest.cumulative_stats WHERE id = $1`

	var payload []byte
	err := s.pool.QueryRow(ctx, query, statsSingletonID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.NewCumulativeStats(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("query cumulative stats: %w", err)
	}

	var stats contracts.CumulativeStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		asideID := fmt.Sprintf("corrupt-%s", time.Now().UTC().Format("20060102T150405"))
		if _, renameErr := s.pool.Exec(ctx,
			`UPDATE backtest.cumulative_stats SET id = $2 WHERE id = $1`,
			statsSingletonID, asideID,
		); renameErr != nil {
			return nil, fmt.Errorf("move corrupt stats aside: %w", renameErr)
		}
		s.log.Error().
			Err(err).
			Str("moved_to", asideID).
			Msg("CUMULATIVE STATS CORRUPT: starting from zero, previous row preserved")
		return contracts.NewCumulativeStats(), nil
	}

	stats.Normalize()
	return &stats, nil
}

// Save upserts the singleton row
func (s *PostgresStatsStore) Save(ctx context.Context, stats *contracts.CumulativeStats) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal cumulative stats: %w", err)
	}

	query := `
		INSERT INTO backtest.cumulative_stats (id, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.pool.Exec(ctx, query, statsSingletonID, payload); err != nil {
		return fmt.Errorf("save cumulative stats: %w", err)
	}
	return nil
}
