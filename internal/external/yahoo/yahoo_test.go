package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagirisensee/Japanese-stock-prediction-system/internal/contracts"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/httputil"
	"github.com/sagirisensee/Japanese-stock-prediction-system/pkg/logger"
)

func date(s string) time.Time {
	t, _ := time.Parse(contracts.DateLayout, s)
	return t
}

// 2025-01-07 09:00 JST = 2025-01-07T00:00:00Z (1736208000)
const chartJSON = `{"chart":{"result":[{"meta":{"symbol":"7203.T","gmtoffset":32400},
"timestamp":[1736208000,1736294400,1736380800,1736467200],
"indicators":{"quote":[{"close":[2800.5,null,2850,2790]}]}}],"error":null}}`

func newHTTPClient() *httputil.Client {
	return httputil.New(logger.Nop(), 2*time.Second).DisableRetry()
}

func TestChartClientFetchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/7203.T", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(chartJSON))
	}))
	defer server.Close()

	client := NewChartClient(newHTTPClient(), logger.Nop(), server.URL+"/")
	bars, err := client.FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
	require.NoError(t, err)

	require.Len(t, bars, 2, "null close dropped, end date excluded")
	assert.Equal(t, "2025-01-07", contracts.DateKey(bars[0].Date))
	assert.Equal(t, 2800.5, bars[0].Close)
	assert.Equal(t, "2025-01-09", contracts.DateKey(bars[1].Date))
}

func TestParseChartError(t *testing.T) {
	_, err := parseChart([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`), date("2025-01-01"), date("2025-01-10"))
	assert.Error(t, err)

	_, err = parseChart([]byte(`<html>`), date("2025-01-01"), date("2025-01-10"))
	assert.Error(t, err)

	bars, err := parseChart([]byte(`{"chart":{"result":[],"error":null}}`), date("2025-01-01"), date("2025-01-10"))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

const historyHTML = `<html><body><table>
<thead><tr><th>日付</th><th>始値</th><th>高値</th><th>安値</th><th>終値</th><th>出来高</th><th>調整後終値</th></tr></thead>
<tbody>
<tr><th>2025年1月9日</th><td>2,840</td><td>2,870</td><td>2,830</td><td>2,850</td><td>1,000,000</td><td>2,850</td></tr>
<tr><th>2025年1月8日</th><td>2,800</td><td>2,810</td><td>2,780</td><td>---</td><td>0</td><td>---</td></tr>
<tr><th>2025年1月7日</th><td>2,790</td><td>2,805</td><td>2,785</td><td>2,800.5</td><td>900,000</td><td>2,800.5</td></tr>
<tr><th>2025年1月10日</th><td>2,850</td><td>2,860</td><td>2,780</td><td>2,790</td><td>800,000</td><td>2,790</td></tr>
</tbody></table></body></html>`

func TestHistoryClientFetchSeries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/7203.T/history", r.URL.Path)
		assert.Equal(t, "20250103", r.URL.Query().Get("from"))
		_, _ = w.Write([]byte(historyHTML))
	}))
	defer server.Close()

	client := NewHistoryClient(newHTTPClient(), logger.Nop(), server.URL)
	bars, err := client.FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
	require.NoError(t, err)

	require.Len(t, bars, 2)
	assert.Equal(t, "2025-01-09", contracts.DateKey(bars[0].Date))
	assert.Equal(t, 2850.0, bars[0].Close)
	assert.Equal(t, 2800.5, bars[1].Close)
}

func TestHistoryClientHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHistoryClient(newHTTPClient(), logger.Nop(), server.URL)
	_, err := client.FetchSeries(context.Background(), "0000.T", date("2025-01-03"), date("2025-01-10"))
	assert.Error(t, err)
}

func TestParseHistoryDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2025年1月9日", "2025-01-09", true},
		{" 2025/12/31 ", "2025-12-31", true},
		{"2025.01.09", "2025-01-09", true},
		{"日付", "", false},
		{"2025/13/01", "", false},
	}

	for _, tt := range tests {
		got, ok := parseHistoryDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if ok {
			assert.Equal(t, tt.want, contracts.DateKey(got))
		}
	}
}

type stubFetcher struct {
	bars  []contracts.Bar
	err   error
	calls int
}

func (s *stubFetcher) FetchSeries(ctx context.Context, symbol string, start, end time.Time) ([]contracts.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func TestFallbackFetcher(t *testing.T) {
	series := []contracts.Bar{{Date: date("2025-01-07"), Close: 1}, {Date: date("2025-01-08"), Close: 2}}

	t.Run("first non-empty wins", func(t *testing.T) {
		empty := &stubFetcher{}
		full := &stubFetcher{bars: series}
		unused := &stubFetcher{bars: series}

		bars, err := NewFallbackFetcher(logger.Nop(), empty, full, unused).
			FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
		require.NoError(t, err)
		assert.Equal(t, series, bars)
		assert.Equal(t, 0, unused.calls)
	})

	t.Run("error then success", func(t *testing.T) {
		bars, err := NewFallbackFetcher(logger.Nop(), &stubFetcher{err: errors.New("down")}, &stubFetcher{bars: series}).
			FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
		require.NoError(t, err)
		assert.Len(t, bars, 2)
	})

	t.Run("all failed", func(t *testing.T) {
		down := errors.New("down")
		_, err := NewFallbackFetcher(logger.Nop(), &stubFetcher{err: down}).
			FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
		assert.ErrorIs(t, err, down)
	})

	t.Run("all empty", func(t *testing.T) {
		bars, err := NewFallbackFetcher(logger.Nop(), &stubFetcher{}).
			FetchSeries(context.Background(), "7203.T", date("2025-01-03"), date("2025-01-10"))
		require.NoError(t, err)
		assert.Empty(t, bars)
	})
}
