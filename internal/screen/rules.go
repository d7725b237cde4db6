// Package screen turns raw candidate batches into ranked category
// snapshots. Category thresholds are configuration data; there is one
// pipeline, parameterized, not one copy per category.
package screen

import (
	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
)

// RuleFilter is the deterministic entry gate. Passes is pure and total:
// no I/O, and a malformed candidate simply fails the filter.
type RuleFilter struct {
	cfg config.Rules
}

func NewRuleFilter(cfg config.Rules) RuleFilter {
	return RuleFilter{cfg: cfg}
}

// Passes applies the rule set as a logical AND. NaN fields fail every
// comparison, so they fail the filter rather than erroring.
func (f RuleFilter) Passes(c market.Candidate) bool {
	if !(c.Price > f.cfg.MinPrice && c.Price <= f.cfg.MaxPrice) {
		return false
	}
	if !(c.Volume >= f.cfg.MinVolume) {
		return false
	}
	if !(c.MarketCap <= f.cfg.MaxMarketCap) {
		return false
	}
	if !(c.PercentChange >= f.cfg.MinChange && c.PercentChange <= f.cfg.MaxChange) {
		return false
	}
	return true
}

// Secondary bucket rules. A candidate may land in both top and pump.
const (
	pumpMinChange = 25 // pump: change above this and volume above market cap
)

func pumpBucket(c market.Candidate) bool {
	return c.PercentChange > pumpMinChange && c.Volume > c.MarketCap
}

// High-movement rule set: no score involved, scan order preserved.
const (
	highMoveVolumeToCapRatio = 0.5
	highMoveMinChange        = 15
	highMoveMaxPrice         = 15
	highMoveMinVolume        = 5_000_000
)

func highMovement(c market.Candidate) bool {
	return c.Volume > c.MarketCap*highMoveVolumeToCapRatio &&
		c.PercentChange > highMoveMinChange &&
		c.Price < highMoveMaxPrice &&
		c.Volume > highMoveMinVolume
}
