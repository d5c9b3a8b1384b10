package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/backtest"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/scheduler/jobs"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run the incremental backtest, then the retention sweep",
	Long: `Scores every prediction record not yet processed, folds the results into
the cumulative stats and prunes aged artifacts.

A run with nothing new writes nothing and still exits 0. A run blocked by
another holder of the lock exits non-zero.

Example:
  go run ./cmd/predictor backtest
  go run ./cmd/predictor backtest --skip-retention
  go run ./cmd/predictor backtest stats`,
	RunE: runBacktest,
}

var backtestStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cumulative stats without running",
	RunE:  showBacktestStats,
}

var (
	skipRetention bool
	statsHistory  int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestStatsCmd)

	backtestCmd.Flags().BoolVar(&skipRetention, "skip-retention", false, "do not sweep after the run")
	backtestStatsCmd.Flags().IntVar(&statsHistory, "history", 10, "recent evaluations to show")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	result, err := jobs.NewBacktestJob(engine, a.metrics, a.log).Execute(ctx)
	if backtest.IsLocked(err) {
		PrintError("another backtest holds the lock: " + a.cfg.Storage.LockFile)
		return err
	}
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	printBacktestResult(result)

	if !skipRetention {
		report := jobs.NewRetentionJob(a.retention(false), a.metrics, a.log).Execute(ctx)
		printRetentionReport(report)
	}

	return nil
}

func printBacktestResult(r *backtest.Result) {
	PrintHeader("Incremental Backtest")

	if r.NothingToDo() {
		PrintInfo("Nothing to do: every record is already processed")
		if len(r.DeferredKeys) > 0 {
			PrintKeyValue("Deferred", fmt.Sprintf("%v", r.DeferredKeys), 12)
		}
		printStatsSummary(r.Stats)
		return
	}

	PrintKeyValue("Processed", fmt.Sprintf("%d dates %v", len(r.ProcessedKeys), r.ProcessedKeys), 12)
	if len(r.DeferredKeys) > 0 {
		PrintKeyValue("Deferred", fmt.Sprintf("%v", r.DeferredKeys), 12)
	}
	if len(r.SkippedKeys) > 0 {
		PrintKeyValue("Skipped", fmt.Sprintf("%v", r.SkippedKeys), 12)
	}
	PrintKeyValue("Evaluated", fmt.Sprintf("%d (unresolved %d, unevaluable %d)", r.Evaluated, r.Unresolved, r.Unevaluable), 12)
	PrintKeyValue("Duration", r.Duration.String(), 12)
	if r.SnapshotPath != "" {
		PrintKeyValue("Snapshot", r.SnapshotPath, 12)
	}

	if len(r.Details) > 0 {
		fmt.Println()
		printEvaluations(r.Details)
	}

	printStatsSummary(r.Stats)
}

func printEvaluations(details []contracts.EvaluationResult) {
	widths := []int{10, 10, 9, 9, 3, 9}
	PrintTableHeader([]string{"Date", "Symbol", "Direction", "Change", "OK", "Return"}, widths)
	for _, d := range details {
		PrintTableRow([]string{
			d.Date,
			d.Symbol,
			string(d.Direction),
			FormatPct(d.RealizedChangePct),
			FormatMark(d.IsCorrect),
			FormatPct(d.ReturnPct),
		}, widths)
	}
}

func printStatsSummary(s *contracts.CumulativeStats) {
	if s == nil {
		return
	}
	fmt.Println()
	PrintSeparator()
	PrintKeyValue("Predictions", fmt.Sprintf("%d", s.TotalPredictions), 12)
	PrintKeyValue("Correct", fmt.Sprintf("%d", s.CorrectPredictions), 12)
	PrintKeyValue("Accuracy", fmt.Sprintf("%.2f%%", contracts.Round2(s.Accuracy())), 12)
	PrintKeyValue("Total return", FormatPct(contracts.Round2(s.TotalReturnPct)), 12)
	PrintKeyValue("Avg return", FormatPct(contracts.Round2(s.AverageReturn())), 12)
	PrintKeyValue("Dates", fmt.Sprintf("%d processed", len(s.ProcessedDateKeys)), 12)
	if s.LastUpdated != nil {
		PrintKeyValue("Updated", s.LastUpdated.Format("2006-01-02 15:04:05"), 12)
	}
}

func showBacktestStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	stats, err := a.stats.Load(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	PrintHeader("Cumulative Backtest Stats")
	printStatsSummary(stats)

	history := stats.History
	if statsHistory >= 0 && len(history) > statsHistory {
		history = history[len(history)-statsHistory:]
	}
	if len(history) > 0 {
		fmt.Println()
		printEvaluations(history)
	}
	return nil
}
