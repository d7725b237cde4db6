package market

import (
	"fmt"
	"strings"
	"time"
)

// Category is one of the alert buckets a candidate can land in.
type Category string

const (
	CategoryTop          Category = "top"
	CategoryPump         Category = "pump"
	CategoryHighMovement Category = "high_movement"
	// CategoryPumpDetector is the broader volume-spike screen that ranks by
	// percent change instead of model score.
	CategoryPumpDetector Category = "pump_detector"
)

// Cap returns the snapshot size cap for a category.
func (c Category) Cap() int {
	switch c {
	case CategoryTop, CategoryPump:
		return 3
	case CategoryHighMovement:
		return 5
	case CategoryPumpDetector:
		return 20
	default:
		return 0
	}
}

// Categories lists every bucket a classification cycle can publish.
func Categories() []Category {
	return []Category{CategoryTop, CategoryPump, CategoryHighMovement, CategoryPumpDetector}
}

// Indicators is the per-symbol technical lookup from the data feed.
// A candidate missing indicator data is discarded for the cycle, not retried.
type Indicators struct {
	Close         float64 `json:"close"`
	Open          float64 `json:"open"`
	Volume        float64 `json:"volume"`
	PercentChange float64 `json:"percent_change"`
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
}

// Green reports whether the latest bar closed above its open.
func (i Indicators) Green() bool { return i.Close > i.Open }

// Candidate is one scanned instrument snapshot. It is recomputed every cycle
// and only persisted as part of a ranked category snapshot.
type Candidate struct {
	Symbol        string      `json:"symbol"`
	Price         float64     `json:"price"`
	Volume        float64     `json:"volume"`
	MarketCap     float64     `json:"market_cap"`
	PercentChange float64     `json:"percent_change"`
	Indicators    *Indicators `json:"indicators,omitempty"`
	Score         float64     `json:"score,omitempty"`
	Category      Category    `json:"category,omitempty"`
}

// Normalize validates a raw feed row and brings the symbol into canonical
// form. Fail-closed: anything malformed is rejected here, before it can reach
// the pipeline.
func (c *Candidate) Normalize() error {
	c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
	if c.Symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	for _, r := range c.Symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' {
			return fmt.Errorf("symbol %q: invalid character %q", c.Symbol, r)
		}
	}
	if c.Price < 0 {
		return fmt.Errorf("symbol %s: negative price %.4f", c.Symbol, c.Price)
	}
	if c.Volume < 0 {
		return fmt.Errorf("symbol %s: negative volume %.0f", c.Symbol, c.Volume)
	}
	if c.MarketCap < 0 {
		return fmt.Errorf("symbol %s: negative market cap %.0f", c.Symbol, c.MarketCap)
	}
	return nil
}

// Snapshot is the ranked candidate list for one category. Two generations are
// retained per category (current and previous) for cross-cycle diffing.
type Snapshot struct {
	Category   Category    `json:"category"`
	Candidates []Candidate `json:"candidates"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Symbols returns the symbols in snapshot order.
func (s Snapshot) Symbols() []string {
	out := make([]string, 0, len(s.Candidates))
	for _, c := range s.Candidates {
		out = append(out, c.Symbol)
	}
	return out
}

// Contains reports whether the snapshot holds the given symbol.
func (s Snapshot) Contains(symbol string) bool {
	for _, c := range s.Candidates {
		if c.Symbol == symbol {
			return true
		}
	}
	return false
}
