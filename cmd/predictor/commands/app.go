package commands

import (
	"context"
	"fmt"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/admission"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/backtest"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/external/yahoo"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/outcome"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/records"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/retention"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/config"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/database"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/httputil"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/metrics"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/redis"
)

// app wires every component from configuration.
// Market data and Redis are only connected when a command needs outcomes.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Recorder

	db    *database.DB
	redis *redis.Client

	records *records.Store
	stats   contracts.StatsStore
	buffers *admission.BufferStore
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFile(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp loads configuration and opens the stores
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(cfg)
	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(cfg.MetricsTextfile),
		records: records.NewStore(cfg.Storage.PredictionsDir, log.Zerolog()),
		buffers: admission.NewBufferStore(cfg.Storage.WeekendCacheDir, log.Zerolog()),
	}

	switch cfg.Backtest.StatsBackend {
	case "postgres":
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		pg := backtest.NewPostgresStatsStore(db.Pool, log.Zerolog())
		if err := pg.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.stats = pg
	default:
		a.stats = backtest.NewFileStatsStore(cfg.Storage.CumulativeStatsFile, log.Zerolog())
	}

	return a, nil
}

// close releases connections
func (a *app) close() {
	a.db.Close()
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// resolver builds the outcome resolver over the Yahoo adapters, cached in
// Redis when enabled. An unreachable Redis disables the cache.
func (a *app) resolver(ctx context.Context) *outcome.Resolver {
	httpClient := httputil.New(a.log, a.cfg.MarketData.Timeout).
		WithRateLimit(a.cfg.MarketData.RPS)

	fetcher := yahoo.NewFallbackFetcher(a.log,
		yahoo.NewChartClient(httpClient, a.log, a.cfg.MarketData.BaseURL),
		yahoo.NewHistoryClient(httpClient, a.log, a.cfg.MarketData.HistoryURL),
	)

	client, err := redis.New(ctx, a.cfg)
	if err != nil {
		a.log.WithError(err).Warn("Redis unavailable, price cache disabled")
		cfg := *a.cfg
		cfg.Redis.Enabled = false
		client, _ = redis.New(ctx, &cfg)
	}
	a.redis = client

	cached := outcome.NewCachedFetcher(fetcher, redis.NewCache(client, "predictor"), a.cfg.MarketData.CacheTTL, a.log.Zerolog())
	return outcome.NewResolver(cached, a.cfg.MarketData.Timeout, a.log.Zerolog()).
		OnLookup(a.metrics.RecordResolution)
}

// engine builds the incremental aggregator
func (a *app) engine(ctx context.Context) (*backtest.Engine, error) {
	resolveOn, err := backtest.ParseResolveOn(a.cfg.Backtest.ResolveOn)
	if err != nil {
		return nil, err
	}

	return backtest.NewEngine(
		a.records,
		a.resolver(ctx),
		a.stats,
		backtest.NewSnapshotWriter(a.cfg.Storage.SnapshotDir),
		backtest.NewFileLock(a.cfg.Storage.LockFile, a.log.Zerolog()),
		backtest.Config{
			ResolveOn:       resolveOn,
			HistoryCapacity: a.cfg.Backtest.HistoryCapacity,
			Location:        a.cfg.Location(),
		},
		a.log.Zerolog(),
	), nil
}

// admission builds the weekend-window scheduler
func (a *app) admission() *admission.Scheduler {
	return admission.NewScheduler(a.buffers, a.records, a.cfg.Location(), a.cfg.Admission.ReleaseHour, a.log.Zerolog())
}

// retention builds the sweeper
func (a *app) retention(dryRun bool) *retention.Manager {
	return retention.NewManager(retention.Policy{
		PredictionsDir:  a.cfg.Storage.PredictionsDir,
		ReportsDir:      a.cfg.Storage.ReportsDir,
		SnapshotDir:     a.cfg.Storage.SnapshotDir,
		WeekendCacheDir: a.cfg.Storage.WeekendCacheDir,
		PredictionDays:  a.cfg.Retention.PredictionDays,
		BackupDays:      a.cfg.Retention.BackupDays,
		Location:        a.cfg.Location(),
		DryRun:          dryRun,
	}, a.log.Zerolog()).OnDelete(a.metrics.RecordRetentionDeleted)
}
