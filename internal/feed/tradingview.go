package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
)

// TradingViewClient implements Scanner and IndicatorSource against the
// screener endpoint. One POST per call, columnar rows in the response.
type TradingViewClient struct {
	url        string
	exchange   string
	scanLimit  int
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewTradingViewClient(cfg config.Feed) *TradingViewClient {
	return &TradingViewClient{
		url:        cfg.ScannerURL,
		exchange:   cfg.Exchange,
		scanLimit:  cfg.ScanLimit,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type scanFilter struct {
	Left      string `json:"left"`
	Operation string `json:"operation"`
	Right     any    `json:"right"`
}

type scanRequest struct {
	Filter  []scanFilter   `json:"filter,omitempty"`
	Symbols map[string]any `json:"symbols"`
	Columns []string       `json:"columns"`
	Sort    map[string]any `json:"sort,omitempty"`
	Range   []int          `json:"range,omitempty"`
}

type scanResponse struct {
	Data []struct {
		S string `json:"s"`
		D []any  `json:"d"`
	} `json:"data"`
}

func (c *TradingViewClient) post(ctx context.Context, req scanRequest) (*scanResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("scanner request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scanner status %d", resp.StatusCode)
	}
	var out scanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("scanner decode: %w", err)
	}
	return &out, nil
}

// Scan pulls the raw candidate batch: active listings with positive change,
// sorted by volume. Row-level garbage is dropped here, not propagated.
func (c *TradingViewClient) Scan(ctx context.Context) ([]market.Candidate, error) {
	resp, err := c.post(ctx, scanRequest{
		Filter: []scanFilter{
			{Left: "volume", Operation: "greater", Right: 2_000_000},
			{Left: "close", Operation: "greater", Right: 0},
			{Left: "close", Operation: "less", Right: 15},
			{Left: "exchange", Operation: "equal", Right: c.exchange},
			{Left: "type", Operation: "equal", Right: "stock"},
			{Left: "change", Operation: "greater", Right: 0},
		},
		Symbols: map[string]any{"query": map[string]any{"types": []string{}}, "tickers": []string{}},
		Columns: []string{"name", "close", "volume", "market_cap_basic", "change"},
		Sort:    map[string]any{"sortBy": "volume", "sortOrder": "desc"},
		Range:   []int{0, c.scanLimit},
	})
	if err != nil {
		return nil, err
	}

	cands := make([]market.Candidate, 0, len(resp.Data))
	for _, row := range resp.Data {
		cand, ok := parseScanRow(row.D)
		if !ok {
			observ.IncCounter("feed_rows_dropped_total", map[string]string{"reason": "malformed"})
			observ.Log("feed_row_dropped", map[string]any{"row": row.S})
			continue
		}
		if err := cand.Normalize(); err != nil {
			observ.IncCounter("feed_rows_dropped_total", map[string]string{"reason": "invalid"})
			observ.LogErr("feed_row_invalid", err, nil)
			continue
		}
		cands = append(cands, cand)
	}
	observ.SetGauge("feed_scan_candidates", float64(len(cands)), nil)
	return cands, nil
}

func parseScanRow(d []any) (market.Candidate, bool) {
	if len(d) < 5 {
		return market.Candidate{}, false
	}
	sym, ok := d[0].(string)
	if !ok {
		return market.Candidate{}, false
	}
	nums := make([]float64, 4)
	for i := 1; i < 5; i++ {
		f, ok := d[i].(float64)
		if !ok {
			return market.Candidate{}, false
		}
		nums[i-1] = f
	}
	return market.Candidate{
		Symbol:        sym,
		Price:         nums[0],
		Volume:        nums[1],
		MarketCap:     nums[2],
		PercentChange: nums[3],
	}, true
}

// Indicators fetches one symbol's technicals. Missing data or null columns
// come back as (nil, nil) so the caller can discard the candidate.
func (c *TradingViewClient) Indicators(ctx context.Context, symbol string) (*market.Indicators, error) {
	resp, err := c.post(ctx, scanRequest{
		Symbols: map[string]any{
			"tickers": []string{c.exchange + ":" + symbol},
			"query":   map[string]any{"types": []string{}},
		},
		Columns: []string{"close", "open", "volume", "change", "RSI", "MACD.macd", "MACD.signal"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, nil
	}
	d := resp.Data[0].D
	if len(d) < 7 {
		return nil, nil
	}
	vals := make([]float64, 7)
	for i := range vals {
		f, ok := d[i].(float64)
		if !ok {
			// null column: indicator data not available yet
			return nil, nil
		}
		vals[i] = f
	}
	return &market.Indicators{
		Close:         vals[0],
		Open:          vals[1],
		Volume:        vals[2],
		PercentChange: vals[3],
		RSI:           vals[4],
		MACD:          vals[5],
		MACDSignal:    vals[6],
	}, nil
}
