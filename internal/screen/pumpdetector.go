package screen

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/store"
)

// SymbolSource provides the symbol universe the pump detector walks.
type SymbolSource interface {
	Symbols(ctx context.Context) ([]string, error)
}

const (
	rsiPeriod   = 14
	ma10Period  = 10
	minBarCount = 20
)

// PumpDetector is the broader volume-spike screen. Unlike the classifier it
// works from bar history per symbol and ranks by percent change, not score.
type PumpDetector struct {
	Universe  SymbolSource
	Bars      feed.BarSource
	Snapshots *store.Snapshots

	Cfg     config.Pump
	Workers int
	Now     func() time.Time
}

func (p *PumpDetector) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run screens the whole universe and publishes the pump-detector snapshot,
// ranked by percent change descending, capped at the category cap.
func (p *PumpDetector) Run(ctx context.Context) error {
	started := p.now()
	defer observ.CycleDone("pump_detector", started)

	symbols, err := p.Universe.Symbols(ctx)
	if err != nil {
		observ.LogErr("pump_universe_failed", err, nil)
		symbols = nil
	}

	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}
	var (
		mu    sync.Mutex
		picks []market.Candidate
		wg    sync.WaitGroup
	)
	jobs := make(chan string)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sym := range jobs {
				if c, ok := p.screenOne(ctx, sym); ok {
					mu.Lock()
					picks = append(picks, c)
					mu.Unlock()
				}
			}
		}()
	}
	for _, sym := range symbols {
		jobs <- sym
	}
	close(jobs)
	wg.Wait()

	sort.SliceStable(picks, func(i, j int) bool {
		return picks[i].PercentChange > picks[j].PercentChange
	})
	picks = truncate(picks, market.CategoryPumpDetector.Cap())

	if err := p.Snapshots.Publish(ctx, market.CategoryPumpDetector, picks, p.now()); err != nil {
		return err
	}
	observ.Log("pump_detector_done", map[string]any{"universe": len(symbols), "picks": len(picks)})
	return nil
}

func (p *PumpDetector) screenOne(ctx context.Context, symbol string) (market.Candidate, bool) {
	bars, err := p.Bars.Bars(ctx, symbol, p.Cfg.LookbackBars+1)
	if err != nil {
		observ.LogErr("pump_bars_failed", err, map[string]any{"symbol": symbol})
		return market.Candidate{}, false
	}
	if len(bars) < minBarCount {
		return market.Candidate{}, false
	}

	cur := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	if prev.Close == 0 {
		return market.Candidate{}, false
	}
	priceChange := (cur.Close - prev.Close) / prev.Close * 100

	vols := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Volume
		closes[i] = b.Close
	}
	avgVol := sma(vols, p.Cfg.LookbackBars)

	ok := priceChange > p.Cfg.MinPriceChange &&
		cur.Volume > avgVol*p.Cfg.VolumeSpike &&
		cur.Close < p.Cfg.MaxPrice &&
		rsi(closes, rsiPeriod) < p.Cfg.MaxRSI &&
		cur.Close > sma(closes, ma10Period) &&
		cur.Volume > p.Cfg.MinVolume
	if !ok {
		return market.Candidate{}, false
	}

	return market.Candidate{
		Symbol:        symbol,
		Price:         cur.Close,
		Volume:        cur.Volume,
		PercentChange: priceChange,
		Category:      market.CategoryPumpDetector,
	}, true
}
