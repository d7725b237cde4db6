package screen

import (
	"context"
	"time"

	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/store"
)

// HighMovementScreen publishes the high-movement snapshot: a pure volume and
// change screen over the scan batch, scan order preserved, no scoring.
type HighMovementScreen struct {
	Scanner   feed.Scanner
	Snapshots *store.Snapshots
	Now       func() time.Time
}

func (h *HighMovementScreen) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *HighMovementScreen) Run(ctx context.Context) error {
	started := h.now()
	defer observ.CycleDone("high_movement", started)

	cands, err := h.Scanner.Scan(ctx)
	if err != nil {
		observ.LogErr("high_movement_scan_failed", err, nil)
		cands = nil
	}

	var picks []market.Candidate
	for _, c := range cands {
		if highMovement(c) {
			c.Category = market.CategoryHighMovement
			picks = append(picks, c)
		}
	}
	picks = truncate(picks, market.CategoryHighMovement.Cap())

	if err := h.Snapshots.Publish(ctx, market.CategoryHighMovement, picks, h.now()); err != nil {
		return err
	}
	observ.Log("high_movement_done", map[string]any{"picks": len(picks)})
	return nil
}
