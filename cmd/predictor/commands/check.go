package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration, storage and collaborators",
	Long: `Loads the configuration and probes everything a backtest run needs:

- storage directories are writable
- cumulative stats load (file or Postgres)
- Postgres pool health (STATS_BACKEND=postgres)
- Redis price cache (REDIS_ENABLED=true)
- market data resolves one outcome (--symbol)

Example:
  go run ./cmd/predictor check
  go run ./cmd/predictor check --symbol 7203.T --date 2025-01-10`,
	RunE: runCheck,
}

var (
	checkSymbol string
	checkDate   string
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkSymbol, "symbol", "", "resolve one outcome for this symbol")
	checkCmd.Flags().StringVar(&checkDate, "date", "", "date to resolve (YYYY-MM-DD, default: previous weekday)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	PrintHeader("Predictor Check")

	a, err := newApp(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	defer a.close()

	PrintSuccess(fmt.Sprintf("Config loaded (ENV: %s, TZ: %s)", a.cfg.Env, a.cfg.Admission.MarketTZ))
	PrintKeyValue("Backend", a.cfg.Backtest.StatsBackend, 10)
	PrintKeyValue("Resolve", a.cfg.Backtest.ResolveOn, 10)
	if a.cfg.Database.URL != "" {
		PrintKeyValue("Database", maskPassword(a.cfg.Database.URL), 10)
	}

	failed := 0
	for _, dir := range []string{
		a.cfg.Storage.PredictionsDir,
		a.cfg.Storage.WeekendCacheDir,
		a.cfg.Storage.SnapshotDir,
		filepath.Dir(a.cfg.Storage.CumulativeStatsFile),
	} {
		if err := checkWritable(dir); err != nil {
			PrintError(fmt.Sprintf("%s not writable: %v", dir, err))
			failed++
			continue
		}
		PrintSuccess(dir + " writable")
	}

	stats, err := a.stats.Load(ctx)
	if err != nil {
		PrintError("stats load failed: " + err.Error())
		failed++
	} else {
		PrintSuccess(fmt.Sprintf("Stats loaded (%d predictions, %d dates)", stats.TotalPredictions, len(stats.ProcessedDateKeys)))
	}

	if a.db != nil {
		status, err := a.db.HealthCheck(ctx)
		if err != nil {
			PrintError("database unhealthy: " + err.Error())
			failed++
		} else {
			PrintSuccess(fmt.Sprintf("Database healthy in %v (conns total %d, idle %d)", status.ResponseTime, status.TotalConns, status.IdleConns))
		}
	}

	resolver := a.resolver(ctx)
	if a.cfg.Redis.Enabled {
		if a.redis.Enabled() {
			PrintSuccess("Redis price cache connected")
		} else {
			PrintWarning("Redis unreachable, running without price cache")
		}
	}

	if checkSymbol != "" {
		day := previousWeekday(time.Now().In(a.cfg.Location()))
		if checkDate != "" {
			if day, err = contracts.ParseDateKey(checkDate); err != nil {
				return err
			}
		}
		change, ok := resolver.Resolve(ctx, checkSymbol, day)
		if ok {
			PrintSuccess(fmt.Sprintf("%s on %s: %s", checkSymbol, contracts.DateKey(day), FormatPct(change)))
		} else {
			PrintError(fmt.Sprintf("%s on %s: no outcome", checkSymbol, contracts.DateKey(day)))
			failed++
		}
	}

	fmt.Println()
	if failed > 0 {
		return fmt.Errorf("%d checks failed", failed)
	}
	PrintSuccess("All checks passed")
	return nil
}

func previousWeekday(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// maskPassword masks the password in a connection URL for display
func maskPassword(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
