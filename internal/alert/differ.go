package alert

import (
	"context"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/store"
)

const ledgerRecord = "seen_alerts"
const ledgerRetainDays = 3

// Differ computes alert-worthy candidates: present in the current snapshot,
// absent from the previous one, and not yet in today's seen ledger. The
// ledger is updated and persisted before the caller dispatches anything, so
// overlapping cycles cannot double-alert.
type Differ struct {
	Snapshots *store.Snapshots
	Ledger    store.Collection
	Now       func() time.Time

	mu sync.Mutex // serializes the ledger read-modify-write
}

func (d *Differ) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewAlerts returns the alert-worthy candidates for one category, already
// recorded in the seen ledger.
func (d *Differ) NewAlerts(ctx context.Context, cat market.Category) ([]market.Candidate, error) {
	pair, err := d.Snapshots.Get(ctx, cat)
	if err != nil {
		return nil, err
	}
	return d.filter(ctx, cat, pair.Current, pair.Previous)
}

func (d *Differ) filter(ctx context.Context, cat market.Category, current, previous market.Snapshot) ([]market.Candidate, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ledger := Ledger{}
	if err := d.Ledger.Load(ctx, ledgerRecord, &ledger); err != nil {
		return nil, err
	}
	now := d.now()
	ledger.Prune(now, ledgerRetainDays)

	var fresh []market.Candidate
	for _, c := range current.Candidates {
		if previous.Contains(c.Symbol) {
			continue
		}
		if ledger.MarkIfNew(now, string(cat)+"/"+c.Symbol) {
			fresh = append(fresh, c)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}

	// Persist before dispatch: losing an alert beats duplicating one.
	if err := d.Ledger.Replace(ctx, ledgerRecord, ledger); err != nil {
		return nil, err
	}
	observ.IncCounter("alerts_marked_total", map[string]string{"category": string(cat)})
	return fresh, nil
}
