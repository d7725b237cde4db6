// Package feed wraps the external market-data providers. The feed is
// untrusted and occasionally failing: every call has a bounded timeout,
// malformed rows are dropped at the boundary, and a failed lookup only
// affects its own symbol.
package feed

import (
	"context"
	"time"

	"github.com/stocksentry/stocksentry/internal/market"
)

// Scanner returns one batch of raw candidates per call.
type Scanner interface {
	Scan(ctx context.Context) ([]market.Candidate, error)
}

// IndicatorSource looks up fresh technicals for one symbol.
// Absent data is (nil, nil), not an error.
type IndicatorSource interface {
	Indicators(ctx context.Context, symbol string) (*market.Indicators, error)
}

// Bar is one daily OHLCV bar.
type Bar struct {
	Time   time.Time
	Open   float64
	Close  float64
	Volume float64
}

// BarSource returns up to n most-recent daily bars, oldest first.
type BarSource interface {
	Bars(ctx context.Context, symbol string, n int) ([]Bar, error)
}

// PriceSource returns the latest traded price for one symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}
