package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and only here
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage layout
	Storage StorageConfig

	// Backtest
	Backtest BacktestConfig

	// Retention
	Retention RetentionConfig

	// Admission
	Admission AdmissionConfig

	// Market data
	MarketData MarketDataConfig

	// Database (only used when Backtest.StatsBackend == "postgres")
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsTextfile string
}

// StorageConfig holds the on-disk layout of every artifact
type StorageConfig struct {
	DataDir             string
	PredictionsDir      string
	ReportsDir          string
	SnapshotDir         string
	WeekendCacheDir     string
	CumulativeStatsFile string
	LockFile            string
	SignalsInbox        string
}

// BacktestConfig holds incremental backtest settings
type BacktestConfig struct {
	ResolveOn       string // date, target_date
	HistoryCapacity int
	StatsBackend    string // file, postgres
}

// RetentionConfig holds age-based cleanup horizons (days)
type RetentionConfig struct {
	PredictionDays int
	BackupDays     int
}

// AdmissionConfig holds the weekend-window state machine settings
type AdmissionConfig struct {
	MarketTZ    string
	ReleaseHour int
}

// MarketDataConfig holds the market data collaborator settings
type MarketDataConfig struct {
	BaseURL    string
	HistoryURL string
	Timeout    time.Duration
	RPS        float64
	CacheTTL   time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	dataDir := getEnv("DATA_DIR", ".")

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Storage: StorageConfig{
			DataDir:             dataDir,
			PredictionsDir:      getEnv("PREDICTIONS_DIR", filepath.Join(dataDir, "predictions")),
			ReportsDir:          getEnv("REPORTS_DIR", dataDir),
			SnapshotDir:         getEnv("SNAPSHOT_DIR", dataDir),
			WeekendCacheDir:     getEnv("WEEKEND_CACHE_DIR", filepath.Join(dataDir, "weekend_cache")),
			CumulativeStatsFile: getEnv("CUMULATIVE_STATS_FILE", filepath.Join(dataDir, "backtest_cumulative_stats.json")),
			LockFile:            getEnv("LOCK_FILE", filepath.Join(dataDir, "backtest.lock")),
			SignalsInbox:        getEnv("SIGNALS_INBOX", filepath.Join(dataDir, "signals_today.json")),
		},

		Backtest: BacktestConfig{
			ResolveOn:       getEnv("BACKTEST_RESOLVE_ON", "date"),
			HistoryCapacity: getEnvAsInt("HISTORY_CAPACITY", 100),
			StatsBackend:    getEnv("STATS_BACKEND", "file"),
		},

		Retention: RetentionConfig{
			PredictionDays: getEnvAsInt("PREDICTION_RETENTION_DAYS", 90),
			BackupDays:     getEnvAsInt("BACKUP_RETENTION_DAYS", 7),
		},

		Admission: AdmissionConfig{
			MarketTZ:    getEnv("MARKET_TZ", "Asia/Tokyo"),
			ReleaseHour: getEnvAsInt("RELEASE_HOUR", 3),
		},

		MarketData: MarketDataConfig{
			BaseURL:    getEnv("MARKET_DATA_BASE_URL", "https://query1.finance.yahoo.com"),
			HistoryURL: getEnv("MARKET_DATA_HISTORY_URL", "https://finance.yahoo.co.jp"),
			Timeout:    getEnvAsDuration("MARKET_DATA_TIMEOUT", "15s"),
			RPS:        getEnvAsFloat("MARKET_DATA_RPS", 2),
			CacheTTL:   getEnvAsDuration("MARKET_DATA_CACHE_TTL", "6h"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 4),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile loads an explicit env file before reading the environment.
// Variables already set in the environment win.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return Load()
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Backtest.ResolveOn != "date" && c.Backtest.ResolveOn != "target_date" {
		return fmt.Errorf("BACKTEST_RESOLVE_ON must be one of: date, target_date")
	}

	if c.Backtest.HistoryCapacity <= 0 {
		return fmt.Errorf("HISTORY_CAPACITY must be positive")
	}

	switch c.Backtest.StatsBackend {
	case "file":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STATS_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("STATS_BACKEND must be one of: file, postgres")
	}

	if c.Retention.PredictionDays <= 0 || c.Retention.BackupDays <= 0 {
		return fmt.Errorf("retention horizons must be positive")
	}

	if c.Admission.ReleaseHour < 0 || c.Admission.ReleaseHour > 23 {
		return fmt.Errorf("RELEASE_HOUR must be within 0-23")
	}

	if _, err := time.LoadLocation(c.Admission.MarketTZ); err != nil {
		return fmt.Errorf("MARKET_TZ is invalid: %w", err)
	}

	if c.MarketData.Timeout <= 0 {
		return fmt.Errorf("MARKET_DATA_TIMEOUT must be positive")
	}

	return nil
}

// Location returns the market time zone (validated in Load)
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Admission.MarketTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
