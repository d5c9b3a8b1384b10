package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/api"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the read-only JSON API",
	Long: `Serves records and cumulative backtest state over HTTP.

Endpoints:
  GET /health                       - Health check (includes Postgres when used)
  GET /metrics                      - Prometheus metrics
  GET /api/backtest/stats           - Cumulative stats summary
  GET /api/backtest/history?limit=N - Recent evaluations
  GET /api/records                  - Date keys with a record
  GET /api/records/{date}           - Latest record of a date
  GET /api/records/{date}/backups   - Superseded versions

Example:
  go run ./cmd/predictor api
  go run ./cmd/predictor api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API port (default PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	deps := api.Handlers{
		Backtest: handlers.NewBacktestHandler(a.stats, a.log),
		Records:  handlers.NewRecordHandler(a.records, a.log),
		Metrics:  a.metrics.Handler(),
	}
	if a.db != nil {
		deps.Database = a.db
	}

	server := api.New(a.cfg, a.log, api.NewRouter(deps, a.log))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
