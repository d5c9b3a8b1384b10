package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/records"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Inspect prediction records",
	Long: `Lists and shows prediction records and their superseded backups.

Example:
  go run ./cmd/predictor record list
  go run ./cmd/predictor record show 2025-01-10
  go run ./cmd/predictor record backups 2025-01-10`,
}

var (
	recordListCmd = &cobra.Command{
		Use:   "list",
		Short: "List date keys with a primary record",
		RunE:  listRecords,
	}

	recordShowCmd = &cobra.Command{
		Use:   "show [date]",
		Short: "Print the latest record of a date as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  showRecord,
	}

	recordBackupsCmd = &cobra.Command{
		Use:   "backups [date]",
		Short: "List superseded versions of a date",
		Args:  cobra.ExactArgs(1),
		RunE:  listBackups,
	}
)

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.AddCommand(recordListCmd)
	recordCmd.AddCommand(recordShowCmd)
	recordCmd.AddCommand(recordBackupsCmd)
}

func listRecords(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	keys, err := a.records.List(ctx)
	if err != nil {
		return err
	}
	stats, err := a.stats.Load(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	PrintHeader(fmt.Sprintf("Prediction records (%d)", len(keys)))
	widths := []int{10, 8, 7, 10, 9}
	PrintTableHeader([]string{"Date", "Signals", "Weekend", "Target", "Processed"}, widths)
	for _, key := range keys {
		row := []string{key, "?", "", "", FormatMark(stats.ProcessedDateKeys.Has(key))}
		if rec, err := a.records.ReadLatest(ctx, key); err == nil {
			row[1] = fmt.Sprintf("%d", len(rec.Predictions))
			if rec.IsWeekendBatch {
				row[2] = "yes"
			}
			row[3] = rec.TargetDate
		}
		PrintTableRow(row, widths)
	}
	return nil
}

func showRecord(cmd *cobra.Command, args []string) error {
	if _, err := contracts.ParseDateKey(args[0]); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	rec, err := a.records.ReadLatest(ctx, args[0])
	if errors.Is(err, records.ErrNotFound) {
		return fmt.Errorf("no record for %s", args[0])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func listBackups(cmd *cobra.Command, args []string) error {
	if _, err := contracts.ParseDateKey(args[0]); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	backups, err := a.records.Backups(ctx, args[0])
	if err != nil {
		return err
	}

	PrintHeader(fmt.Sprintf("Backups of %s (%d)", args[0], len(backups)))
	for _, b := range backups {
		PrintKeyValue(b.Written.Format("2006-01-02 15:04:05.000"), b.Path, 23)
	}
	return nil
}
