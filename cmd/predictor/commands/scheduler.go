package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/scheduler"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Cron daemon for admission, backtest and retention",
	Long: `Runs the recurring jobs in the market time zone (MARKET_TZ).

Subcommands:
  start   - start the daemon
  list    - list registered jobs and their schedules
  run     - run one job now

Example:
  go run ./cmd/predictor scheduler start
  go run ./cmd/predictor scheduler list
  go run ./cmd/predictor scheduler run backtest_incremental`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		Long: `Starts the scheduler with every job registered:

- admission: five past every hour (reads SIGNALS_INBOX)
- backtest_incremental: weekdays 16:30
- retention_sweep: daily 04:00

Stop with Ctrl+C.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// initScheduler registers every job against one app
func initScheduler(ctx context.Context) (*scheduler.Scheduler, *app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, nil, err
	}

	engine, err := a.engine(ctx)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	sched := scheduler.New(a.log, a.cfg.Location())
	for _, job := range []scheduler.Job{
		jobs.NewAdmissionJob(a.admission(), a.cfg.Storage.SignalsInbox, a.metrics, a.log),
		jobs.NewBacktestJob(engine, a.metrics, a.log),
		jobs.NewRetentionJob(a.retention(false), a.metrics, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			a.close()
			return nil, nil, err
		}
	}

	return sched, a, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	sched, a, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	sched.Start()

	PrintHeader("Predictor Scheduler")
	PrintSuccess("Scheduler started")
	printJobs(sched)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	return nil
}

func printJobs(sched *scheduler.Scheduler) {
	stats := sched.GetJobStats()
	widths := []int{22, 18, 19}
	PrintTableHeader([]string{"Job", "Schedule", "Next run"}, widths)
	for _, name := range sched.GetAllJobs() {
		next := "-"
		if t := sched.NextRun(name); !t.IsZero() {
			next = t.Format("2006-01-02 15:04:05")
		}
		PrintTableRow([]string{name, stats[name].Schedule, next}, widths)
	}
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, a, err := initScheduler(context.Background())
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	PrintHeader("Registered jobs")
	printJobs(sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sched, a, err := initScheduler(ctx)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.close()

	fmt.Printf("Running job: %s\n", args[0])
	result, err := sched.WithRetry(0, 0).RunJobSync(ctx, args[0])
	if err != nil {
		return err
	}
	if !result.Success {
		PrintError(result.Error)
		return fmt.Errorf("job %s failed", args[0])
	}
	PrintSuccess(fmt.Sprintf("%s completed in %s", result.JobName, result.Duration))
	return nil
}
