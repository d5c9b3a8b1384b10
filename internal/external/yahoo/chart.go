package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// chartResponse subset of the v8 chart payload
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchSeries fetches daily bars with start <= date < end
func (c *ChartClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")

	fullURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("chart request for %s failed: %w", symbol, err)
	}

	bars, err := parseChart(body, start, end)
	if err != nil {
		return nil, fmt.Errorf("parse chart for %s: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched chart series")
	return bars, nil
}

// parseChart converts the payload into bars keyed by exchange-local date.
// Sessions with a null close are dropped.
func parseChart(body []byte, start, end time.Time) ([]contracts.Bar, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return []contracts.Bar{}, nil
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return []contracts.Bar{}, nil
	}
	closes := result.Indicators.Quote[0].Close
	offset := time.Duration(result.Meta.GMTOffset) * time.Second

	startKey := contracts.DateKey(start)
	endKey := contracts.DateKey(end)

	bars := make([]contracts.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		local := time.Unix(ts, 0).UTC().Add(offset)
		date := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		key := contracts.DateKey(date)
		if key < startKey || key >= endKey {
			continue
		}
		bars = append(bars, contracts.Bar{Date: date, Close: *closes[i]})
	}
	return bars, nil
}
