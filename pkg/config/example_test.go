package config_test

import (
	"fmt"

	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/config"
)

// Example demonstrates how to use the config package
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return
	}

	fmt.Printf("Predictions: %s\n", cfg.Storage.PredictionsDir)
	fmt.Printf("Stats backend: %s\n", cfg.Backtest.StatsBackend)
	fmt.Printf("Retention: %d days\n", cfg.Retention.PredictionDays)
}
