package screen

import (
	"math"
	"testing"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
)

func defaultRules() RuleFilter {
	c := config.Root{}
	c.ApplyDefaults()
	return NewRuleFilter(c.Screen.Rules)
}

func TestRuleFilter_Defaults(t *testing.T) {
	f := defaultRules()
	cases := []struct {
		name string
		c    market.Candidate
		want bool
	}{
		{"typical small cap", market.Candidate{Symbol: "ABCD", Price: 3.0, Volume: 2_500_000, MarketCap: 1_000_000_000, PercentChange: 20}, true},
		{"price too high", market.Candidate{Price: 5.01, Volume: 3e6, MarketCap: 1e9, PercentChange: 10}, false},
		{"price at cap", market.Candidate{Price: 5.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10}, true},
		{"zero price", market.Candidate{Price: 0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10}, false},
		{"volume too low", market.Candidate{Price: 3, Volume: 1_999_999, MarketCap: 1e9, PercentChange: 10}, false},
		{"market cap too big", market.Candidate{Price: 3, Volume: 3e6, MarketCap: 3_207_060_001, PercentChange: 10}, false},
		{"negative change", market.Candidate{Price: 3, Volume: 3e6, MarketCap: 1e9, PercentChange: -0.1}, false},
		{"change too big", market.Candidate{Price: 3, Volume: 3e6, MarketCap: 1e9, PercentChange: 300.1}, false},
		{"NaN price fails closed", market.Candidate{Price: math.NaN(), Volume: 3e6, MarketCap: 1e9, PercentChange: 10}, false},
	}
	for _, tc := range cases {
		if got := f.Passes(tc.c); got != tc.want {
			t.Errorf("%s: want %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPumpBucket(t *testing.T) {
	if pumpBucket(market.Candidate{PercentChange: 20, Volume: 2e9, MarketCap: 1e9}) {
		t.Fatal("change 20 must not land in pump")
	}
	if !pumpBucket(market.Candidate{PercentChange: 26, Volume: 2e9, MarketCap: 1e9}) {
		t.Fatal("change 26 with volume above cap must land in pump")
	}
	if pumpBucket(market.Candidate{PercentChange: 26, Volume: 1e8, MarketCap: 1e9}) {
		t.Fatal("volume below market cap must not land in pump")
	}
}

func TestHighMovementRule(t *testing.T) {
	ok := market.Candidate{Price: 4, Volume: 6_000_000, MarketCap: 10_000_000, PercentChange: 20}
	if !highMovement(ok) {
		t.Fatal("want high movement")
	}
	lowVol := ok
	lowVol.Volume = 4_999_999
	if highMovement(lowVol) {
		t.Fatal("volume below floor must fail")
	}
	pricey := ok
	pricey.Price = 15
	if highMovement(pricey) {
		t.Fatal("price at 15 must fail")
	}
}

func TestSMA(t *testing.T) {
	vals := []float64{1, 2, 3, 4}
	if got := sma(vals, 2); got != 3.5 {
		t.Fatalf("want 3.5, got %v", got)
	}
	if got := sma(vals, 10); got != 2.5 {
		t.Fatalf("short history: want 2.5, got %v", got)
	}
	if got := sma(nil, 3); got != 0 {
		t.Fatalf("empty: want 0, got %v", got)
	}
}

func TestRSI(t *testing.T) {
	up := make([]float64, 20)
	for i := range up {
		up[i] = float64(i)
	}
	if got := rsi(up, 14); got != 100 {
		t.Fatalf("all gains: want 100, got %v", got)
	}
	if got := rsi([]float64{1, 2}, 14); got != 50 {
		t.Fatalf("insufficient history: want neutral 50, got %v", got)
	}
	mixed := []float64{10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10, 11, 10}
	got := rsi(mixed, 14)
	if got <= 0 || got >= 100 {
		t.Fatalf("mixed series should be strictly inside (0,100), got %v", got)
	}
}
