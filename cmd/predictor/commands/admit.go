package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/admission"
	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// admitCmd represents the admit command
var admitCmd = &cobra.Command{
	Use:   "admit [file|-]",
	Short: "Admit today's signals through the weekend window",
	Long: `Reads a JSON array of {symbol, direction, source?} signals (or an object
with "signals" and "narrative") and runs the admission scheduler.

Weekdays write today's record. Friday to Sunday accumulate into the
weekend buffer. Monday before the release hour writes the buffered weekend
batch under the Friday date.

Without an argument the configured inbox (SIGNALS_INBOX) is read.

Example:
  go run ./cmd/predictor admit signals_today.json
  cat signals.json | go run ./cmd/predictor admit -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdmit,
}

func init() {
	rootCmd.AddCommand(admitCmd)
}

func readSignals(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func runAdmit(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	path := a.cfg.Storage.SignalsInbox
	if len(args) == 1 {
		path = args[0]
	}

	data, err := readSignals(path)
	if err != nil {
		return fmt.Errorf("read signals: %w", err)
	}

	inbox, err := admission.ParseInbox(data)
	if err != nil {
		return err
	}
	for _, rejected := range inbox.Rejected {
		PrintWarning(rejected.Error())
	}

	decision, err := a.admission().Admit(ctx, inbox.Signals, inbox.Narrative)
	if err != nil {
		return err
	}
	a.metrics.RecordAdmission(string(decision.Kind))
	if err := a.metrics.Flush(); err != nil {
		a.log.WithError(err).Warn("Failed to flush metrics")
	}

	PrintHeader("Admission")
	PrintKeyValue("Decision", string(decision.Kind), 10)
	PrintKeyValue("State", string(decision.State), 10)

	switch decision.Kind {
	case contracts.DecisionEmit:
		PrintKeyValue("Target", decision.TargetDate, 10)
		PrintSuccess(fmt.Sprintf("%d predictions written", len(decision.Signals)))
	case contracts.DecisionBufferReleased:
		PrintKeyValue("Anchor", decision.AnchorDate, 10)
		PrintKeyValue("Target", decision.TargetDate, 10)
		PrintSuccess(fmt.Sprintf("weekend batch of %d predictions written", len(decision.Signals)))
	case contracts.DecisionBuffered:
		PrintKeyValue("Buffered", fmt.Sprintf("%d", decision.BufferedCount), 10)
		if decision.Waiting {
			PrintInfo("release window open, nothing buffered yet")
		}
	}
	return nil
}
