// Package gate holds the session checks that decide whether a scan cycle
// runs at all.
package gate

import (
	"context"
	"time"

	"github.com/stocksentry/stocksentry/internal/observ"
)

const (
	openHourUTC  = 13
	closeHourUTC = 20

	benchmarkSymbol  = "SPY"
	weakThresholdPct = -1.0
)

// MarketOpen reports whether US regular trading hours are in session,
// approximated as weekdays 13:00-20:59 UTC.
func MarketOpen(now time.Time) bool {
	now = now.UTC()
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return now.Hour() >= openHourUTC && now.Hour() <= closeHourUTC
}

// BenchmarkSource provides the two-day percent change of a symbol.
type BenchmarkSource interface {
	TwoDayChange(ctx context.Context, symbol string) (float64, error)
}

// MarketWeak reports whether the benchmark dropped past the weakness
// threshold. A fetch failure never blocks the cycle.
func MarketWeak(ctx context.Context, src BenchmarkSource) bool {
	change, err := src.TwoDayChange(ctx, benchmarkSymbol)
	if err != nil {
		observ.LogErr("benchmark_unavailable", err, map[string]any{"symbol": benchmarkSymbol})
		return false
	}
	if change < weakThresholdPct {
		observ.Log("market_weak", map[string]any{"symbol": benchmarkSymbol, "change_pct": change})
		return true
	}
	return false
}
