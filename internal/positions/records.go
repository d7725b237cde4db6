// Package positions tracks opened trades against their target and stop-loss
// thresholds until they resolve.
package positions

import (
	"time"

	"github.com/stocksentry/stocksentry/internal/market"
)

// TradeRecord is the persisted state for one opened position. Exactly one
// record may exist per symbol. The hit flags are monotonic: once set they
// are never cleared.
type TradeRecord struct {
	Symbol      string          `json:"symbol"`
	EntryPrice  float64         `json:"entry_price"`
	Score       float64         `json:"score"`
	Category    market.Category `json:"category"`
	OpenedAt    time.Time       `json:"opened_at"`
	Target1Hit  bool            `json:"target1_hit"`
	Target2Hit  bool            `json:"target2_hit"`
	StopLossHit bool            `json:"stop_loss_hit"`
}

// Thresholds holds the derived trigger prices for a record.
type Thresholds struct {
	Target1  float64
	Target2  float64
	StopLoss float64
}

// Levels computes the trigger prices from the entry using the configured
// percentages (defaults: +10%, +25%, -15%).
func (r TradeRecord) Levels(target1Pct, target2Pct, stopLossPct float64) Thresholds {
	return Thresholds{
		Target1:  r.EntryPrice * (1 + target1Pct),
		Target2:  r.EntryPrice * (1 + target2Pct),
		StopLoss: r.EntryPrice * (1 - stopLossPct),
	}
}

// Resolved reports whether the record needs no further polling: the stop
// fired, or both targets were reached.
func (r TradeRecord) Resolved() bool {
	return r.StopLossHit || (r.Target1Hit && r.Target2Hit)
}
