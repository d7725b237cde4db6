package alert

import (
	"context"
	"time"

	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
)

// Broadcaster sends one rendered message to every subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, text string)
}

// TradeOpener records accepted candidates as open positions.
type TradeOpener interface {
	Open(ctx context.Context, cands []market.Candidate, cat market.Category) error
}

// RenderFunc turns an alert-worthy candidate into the outgoing message.
type RenderFunc func(c market.Candidate, cat market.Category) string

// Engine runs the per-cycle alert pass over the diffed categories.
type Engine struct {
	Differ *Differ
	Sink   Broadcaster
	Trades TradeOpener
	Render RenderFunc
}

// categories that fan out to subscribers; the pump-detector snapshot is
// browse-only via the bot.
var alertCategories = []market.Category{
	market.CategoryTop,
	market.CategoryPump,
	market.CategoryHighMovement,
}

// Run diffs every category and dispatches one notification per new entry.
// A failure in one category is logged and does not stop the others.
func (e *Engine) Run(ctx context.Context) error {
	started := time.Now()
	defer observ.CycleDone("alerts", started)

	for _, cat := range alertCategories {
		fresh, err := e.Differ.NewAlerts(ctx, cat)
		if err != nil {
			observ.LogErr("alerts_diff_failed", err, map[string]any{"category": string(cat)})
			continue
		}
		for _, c := range fresh {
			e.Sink.Broadcast(ctx, e.Render(c, cat))
			observ.IncCounter("alerts_sent_total", map[string]string{"category": string(cat)})
		}
		if len(fresh) > 0 && e.Trades != nil {
			if err := e.Trades.Open(ctx, fresh, cat); err != nil {
				observ.LogErr("alerts_open_trades_failed", err, map[string]any{"category": string(cat)})
			}
		}
	}
	return nil
}
