package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/retention"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/scheduler/jobs"
)

// retentionCmd represents the retention command
var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Age-based cleanup of artifacts",
	Long: `Deletes predictions, reports, snapshots and weekend buffers older than
PREDICTION_RETENTION_DAYS and record backups older than BACKUP_RETENTION_DAYS.

The horizon must exceed the longest gap between writing a record and the
next backtest run: pruning does not look at processed state.

Example:
  go run ./cmd/predictor retention sweep --dry-run`,
}

var retentionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one sweep",
	RunE:  runRetentionSweep,
}

var dryRun bool

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionSweepCmd)

	retentionSweepCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without deleting")
}

func runRetentionSweep(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	report := jobs.NewRetentionJob(a.retention(dryRun), a.metrics, a.log).Execute(ctx)
	printRetentionReport(report)
	return nil
}

func printRetentionReport(r *retention.Report) {
	title := "Retention Sweep"
	if r.DryRun {
		title += " (dry run)"
	}
	PrintHeader(title)

	widths := []int{16, 8, 6, 7}
	PrintTableHeader([]string{"Class", "Deleted", "Kept", "Failed"}, widths)
	for _, class := range retention.Classes {
		PrintTableRow([]string{
			string(class),
			fmt.Sprintf("%d", len(r.Deleted[class])),
			fmt.Sprintf("%d", r.Kept[class]),
			fmt.Sprintf("%d", r.Failed[class]),
		}, widths)
	}

	if r.Skipped > 0 {
		PrintInfo(fmt.Sprintf("%d names without a parseable date skipped", r.Skipped))
	}
	if r.DryRun && r.DeletedCount() > 0 {
		fmt.Println()
		for _, class := range retention.Classes {
			PrintList(r.Deleted[class])
		}
	}
	for _, e := range r.Errors {
		PrintError(e)
	}
}
