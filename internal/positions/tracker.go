package positions

import (
	"context"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/store"
)

const tradeRecordName = "trade_history"

// EventSink receives threshold-crossing events, each fired at most once per
// record and flag.
type EventSink interface {
	TargetHit(ctx context.Context, rec TradeRecord, level int, currentPrice float64)
	StopLossHit(ctx context.Context, rec TradeRecord, currentPrice float64)
}

// Tracker owns the trade-record collection: it is the only writer. Readers
// get copies via Records. All mutation runs under one mutex so overlapping
// cycles serialize their read-modify-write on the persisted set.
type Tracker struct {
	Store  store.Collection
	Prices feed.PriceSource
	Events EventSink
	Cfg    config.Positions
	Now    func() time.Time

	mu sync.Mutex
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) load(ctx context.Context) ([]TradeRecord, error) {
	var recs []TradeRecord
	if err := t.Store.Load(ctx, tradeRecordName, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Open inserts records for accepted candidates that have no open record
// yet. A zero entry price is rejected at the door, never stored.
func (t *Tracker) Open(ctx context.Context, cands []market.Candidate, cat market.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load(ctx)
	if err != nil {
		return err
	}
	open := map[string]bool{}
	for _, r := range recs {
		open[r.Symbol] = true
	}

	added := 0
	for _, c := range cands {
		if c.Symbol == "" || open[c.Symbol] {
			continue
		}
		if c.Price <= 0 {
			observ.Log("trade_open_rejected", map[string]any{"symbol": c.Symbol, "price": c.Price})
			continue
		}
		recs = append(recs, TradeRecord{
			Symbol:     c.Symbol,
			EntryPrice: c.Price,
			Score:      c.Score,
			Category:   cat,
			OpenedAt:   t.now().UTC(),
		})
		open[c.Symbol] = true
		added++
	}
	if added == 0 {
		return nil
	}
	if err := t.Store.Replace(ctx, tradeRecordName, recs); err != nil {
		return err
	}
	observ.Log("trades_opened", map[string]any{"count": added, "category": string(cat)})
	return nil
}

// CheckTargets polls every unresolved record against the live price and
// fires each threshold event at most once. The whole set is persisted in a
// single replace after the batch, so a crash mid-cycle loses at most one
// cycle of flag updates and never leaves partial records.
func (t *Tracker) CheckTargets(ctx context.Context) error {
	started := t.now()
	defer observ.CycleDone("track_targets", started)

	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}

	changed := false
	for i := range recs {
		if t.evaluate(ctx, &recs[i]) {
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return t.Store.Replace(ctx, tradeRecordName, recs)
}

func (t *Tracker) evaluate(ctx context.Context, rec *TradeRecord) bool {
	if rec.Symbol == "" {
		observ.Log("trade_record_missing_symbol", map[string]any{"entry_price": rec.EntryPrice})
		return false
	}
	if rec.Resolved() {
		return false
	}
	// guards divide-by-zero in profit math and nonsense thresholds
	if rec.EntryPrice <= 0 {
		return false
	}

	price, err := t.Prices.Price(ctx, rec.Symbol)
	if err != nil {
		observ.LogErr("trade_price_unavailable", err, map[string]any{"symbol": rec.Symbol})
		return false
	}
	if price <= 0 {
		return false
	}

	lv := rec.Levels(t.Cfg.Target1Pct, t.Cfg.Target2Pct, t.Cfg.StopLossPct)
	changed := false

	if price >= lv.Target2 && !rec.Target2Hit {
		rec.Target2Hit = true
		changed = true
		observ.IncCounter("trade_events_total", map[string]string{"type": "target2"})
		if t.Events != nil {
			t.Events.TargetHit(ctx, *rec, 2, price)
		}
	} else if price >= lv.Target1 && !rec.Target1Hit {
		rec.Target1Hit = true
		changed = true
		observ.IncCounter("trade_events_total", map[string]string{"type": "target1"})
		if t.Events != nil {
			t.Events.TargetHit(ctx, *rec, 1, price)
		}
	}

	// stop-loss is independent of the target checks
	if price <= lv.StopLoss && !rec.StopLossHit {
		rec.StopLossHit = true
		changed = true
		observ.IncCounter("trade_events_total", map[string]string{"type": "stop_loss"})
		if t.Events != nil {
			t.Events.StopLossHit(ctx, *rec, price)
		}
	}
	return changed
}

// Records returns a read-only copy of the current set.
func (t *Tracker) Records(ctx context.Context) ([]TradeRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

// HadRecentLoss reports whether the symbol stopped out within the lookback
// used by the classifier's history exclusion.
func (t *Tracker) HadRecentLoss(symbol string) bool {
	recs, err := t.Records(context.Background())
	if err != nil {
		observ.LogErr("trade_loss_lookup_failed", err, map[string]any{"symbol": symbol})
		return false
	}
	cutoff := t.now().AddDate(0, 0, -t.Cfg.RetentionDays)
	for _, r := range recs {
		if r.Symbol == symbol && r.StopLossHit && r.OpenedAt.After(cutoff) {
			return true
		}
	}
	return false
}

// Cleanup prunes records older than the retention window. Runs daily.
func (t *Tracker) Cleanup(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	recs, err := t.load(ctx)
	if err != nil {
		return err
	}
	cutoff := t.now().UTC().AddDate(0, 0, -t.Cfg.RetentionDays)
	kept := recs[:0]
	for _, r := range recs {
		if r.OpenedAt.After(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recs) {
		return nil
	}
	observ.Log("trades_pruned", map[string]any{"removed": len(recs) - len(kept)})
	return t.Store.Replace(ctx, tradeRecordName, kept)
}
