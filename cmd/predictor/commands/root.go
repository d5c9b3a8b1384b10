package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "predictor",
	Short: "Prediction lifecycle and incremental backtest engine",
	Long: `Predictor CLI

Admits daily {symbol, direction} predictions, keeps one latest record per
date, scores each record exactly once against realized closes and prunes
aged artifacts.

Usage:
  go run ./cmd/predictor [command]

Examples:
  go run ./cmd/predictor admit signals_today.json
  go run ./cmd/predictor backtest
  go run ./cmd/predictor backtest stats
  go run ./cmd/predictor record list
  go run ./cmd/predictor retention sweep --dry-run
  go run ./cmd/predictor scheduler start
  go run ./cmd/predictor api`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "env file (default is .env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
