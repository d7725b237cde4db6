package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/stocksentry/stocksentry/internal/config"
)

// ChartClient fetches daily bar history from a Yahoo-style chart endpoint.
// It backs the pump detector (trailing averages), the position tracker
// (latest price) and the market-weakness gate (benchmark two-day change).
type ChartClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewChartClient(cfg config.Feed) *ChartClient {
	return &ChartClient{
		baseURL:    cfg.ChartURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
			Timestamp []int64 `json:"timestamp"`
		} `json:"result"`
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	} `json:"chart"`
}

// Bars returns up to n most-recent daily bars, oldest first. Bars with null
// fields (halted days, partial rows) are skipped.
func (c *ChartClient) Bars(ctx context.Context, symbol string, n int) ([]Bar, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/v8/finance/chart/%s?range=3mo&interval=1d", c.baseURL, symbol)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chart request %s: %w", symbol, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart status %d for %s", resp.StatusCode, symbol)
	}

	var out chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("chart decode %s: %w", symbol, err)
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", symbol, out.Chart.Error.Code)
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	res := out.Chart.Result[0]
	q := res.Indicators.Quote[0]
	bars := make([]Bar, 0, len(res.Timestamp))
	for i := range res.Timestamp {
		if i >= len(q.Close) || i >= len(q.Open) || i >= len(q.Volume) {
			break
		}
		if q.Close[i] == nil || q.Open[i] == nil || q.Volume[i] == nil {
			continue
		}
		bars = append(bars, Bar{
			Time:   time.Unix(res.Timestamp[i], 0).UTC(),
			Open:   *q.Open[i],
			Close:  *q.Close[i],
			Volume: *q.Volume[i],
		})
	}
	if n > 0 && len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return bars, nil
}

// Price returns the latest daily close for a symbol.
func (c *ChartClient) Price(ctx context.Context, symbol string) (float64, error) {
	bars, err := c.Bars(ctx, symbol, 1)
	if err != nil {
		return 0, err
	}
	if len(bars) == 0 {
		return 0, fmt.Errorf("no price data for %s", symbol)
	}
	return bars[len(bars)-1].Close, nil
}

// TwoDayChange returns the percent change between the last two closes,
// used for the benchmark weakness gate.
func (c *ChartClient) TwoDayChange(ctx context.Context, symbol string) (float64, error) {
	bars, err := c.Bars(ctx, symbol, 2)
	if err != nil {
		return 0, err
	}
	if len(bars) < 2 {
		return 0, fmt.Errorf("not enough history for %s", symbol)
	}
	prev := bars[len(bars)-2].Close
	last := bars[len(bars)-1].Close
	if prev == 0 {
		return 0, fmt.Errorf("zero previous close for %s", symbol)
	}
	return (last - prev) / prev * 100, nil
}
