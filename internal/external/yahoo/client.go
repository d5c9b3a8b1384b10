package yahoo

import (
	"strings"

	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/httputil"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
)

// ChartClient reads daily closes from the Yahoo Finance v8 chart API
// ⭐ SSOT: primary market data source of the outcome resolver
type ChartClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewChartClient creates a chart API client
func NewChartClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *ChartClient {
	return &ChartClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// HistoryClient scrapes the daily history table of Yahoo! Finance Japan
// Used as a fallback when the chart API has no data for a symbol
type HistoryClient struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewHistoryClient creates a history page client
func NewHistoryClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *HistoryClient {
	return &HistoryClient{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}
