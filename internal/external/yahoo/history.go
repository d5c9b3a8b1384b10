package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
)

// closeColumn index of the close price in a history row
// columns: date | open | high | low | close | volume | adjusted close
const closeColumn = 4

var historyDateRe = regexp.MustCompile(`(\d{4})[年/.-](\d{1,2})[月/.-](\d{1,2})`)

// FetchSeries scrapes daily bars with start <= date < end
func (c *HistoryClient) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Bar, error) {
	params := url.Values{}
	params.Set("from", start.Format("20060102"))
	params.Set("to", end.Format("20060102"))
	params.Set("timeFrame", "d")

	fullURL := fmt.Sprintf("%s/quote/%s/history?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("history request for %s failed: %w", symbol, err)
	}

	bars, err := parseHistoryHTML(body, start, end)
	if err != nil {
		return nil, fmt.Errorf("parse history for %s: %w", symbol, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"count":  len(bars),
	}).Debug("Fetched history table")
	return bars, nil
}

// parseHistoryHTML reads every table row whose first cell is a date
func parseHistoryHTML(body []byte, start, end time.Time) ([]contracts.Bar, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	startKey := contracts.DateKey(start)
	endKey := contracts.DateKey(end)

	bars := make([]contracts.Bar, 0)
	doc.Find("table tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() <= closeColumn {
			return
		}

		date, ok := parseHistoryDate(cells.Eq(0).Text())
		if !ok {
			return
		}
		key := contracts.DateKey(date)
		if key < startKey || key >= endKey {
			return
		}

		closePrice, ok := parsePrice(cells.Eq(closeColumn).Text())
		if !ok {
			return
		}
		bars = append(bars, contracts.Bar{Date: date, Close: closePrice})
	})
	return bars, nil
}

func parseHistoryDate(s string) (time.Time, bool) {
	m := historyDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
}

func parsePrice(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || s == "-" || s == "---" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}
