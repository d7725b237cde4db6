package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/positions"
)

// RenderAlert formats a fresh category alert for dispatch.
func RenderAlert(c market.Candidate, cat market.Category, cfg config.Positions) string {
	switch cat {
	case market.CategoryTop:
		return fmt.Sprintf(
			"New strong pick\nSymbol: <b>%s</b>\nPrice: %.2f\nScore: %.2f\nVolume: %.0f\nTarget 1: %.2f\nTarget 2: %.2f\nStop: %.2f",
			c.Symbol, c.Price, c.Score, c.Volume,
			c.Price*(1+cfg.Target1Pct), c.Price*(1+cfg.Target2Pct), c.Price*(1-cfg.StopLossPct),
		)
	case market.CategoryPump:
		return fmt.Sprintf(
			"Pump alert\nSymbol: <b>%s</b>\nChange: +%.2f%%\nVolume: %.0f\nTarget 1: %.2f\nTarget 2: %.2f\nStop: %.2f",
			c.Symbol, c.PercentChange, c.Volume,
			c.Price*(1+cfg.Target1Pct), c.Price*(1+cfg.Target2Pct), c.Price*(1-cfg.StopLossPct),
		)
	case market.CategoryHighMovement:
		return fmt.Sprintf(
			"High movement\nSymbol: <b>%s</b>\nPrice: %.2f\nChange: %.2f%%\nVolume: %.0f",
			c.Symbol, c.Price, c.PercentChange, c.Volume,
		)
	default:
		return fmt.Sprintf("Alert\nSymbol: <b>%s</b>\nPrice: %.2f\nChange: %.2f%%", c.Symbol, c.Price, c.PercentChange)
	}
}

// RenderSnapshot formats a whole snapshot for the bot commands.
func RenderSnapshot(snap market.Snapshot, cfg config.Positions) string {
	if len(snap.Candidates) == 0 {
		return fmt.Sprintf("No %s picks right now", strings.ReplaceAll(string(snap.Category), "_", " "))
	}
	var b strings.Builder
	for i, c := range snap.Candidates {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(RenderAlert(c, snap.Category, cfg))
	}
	return b.String()
}

// RenderAnalysis formats the on-demand single-symbol verdict.
func RenderAnalysis(symbol string, score float64, cfg config.Positions, price float64) string {
	switch {
	case score >= 90:
		return fmt.Sprintf(
			"<b>%s</b>\nSignal: strong buy\nEntry: %.2f\nTarget 1: %.2f\nTarget 2: %.2f\nStop: %.2f\nScore: %.2f",
			symbol, price, price*(1+cfg.Target1Pct), price*(1+cfg.Target2Pct), price*(1-cfg.StopLossPct), score,
		)
	case score >= 80:
		return fmt.Sprintf("<b>%s</b>\nStatus: on watch\nScore: %.2f", symbol, score)
	default:
		return fmt.Sprintf("<b>%s</b>\nStatus: not recommended\nScore: %.2f", symbol, score)
	}
}

// TradeEvents renders and broadcasts position-tracker events.
type TradeEvents struct {
	B *Broadcaster
}

func (e *TradeEvents) TargetHit(ctx context.Context, rec positions.TradeRecord, level int, price float64) {
	profit := (price - rec.EntryPrice) / rec.EntryPrice * 100
	e.B.Broadcast(ctx, fmt.Sprintf(
		"Target %d hit\nSymbol: <b>%s</b>\nEntry: %.2f\nCurrent: %.2f\nProfit: %.2f%%",
		level, rec.Symbol, rec.EntryPrice, price, profit,
	))
}

func (e *TradeEvents) StopLossHit(ctx context.Context, rec positions.TradeRecord, price float64) {
	loss := (price - rec.EntryPrice) / rec.EntryPrice * 100
	e.B.Broadcast(ctx, fmt.Sprintf(
		"Stop loss hit\nSymbol: <b>%s</b>\nEntry: %.2f\nCurrent: %.2f\nChange: %.2f%%",
		rec.Symbol, rec.EntryPrice, price, loss,
	))
}
