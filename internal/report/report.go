// Package report summarizes tracked trade outcomes into the daily
// performance digest.
package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/positions"
)

// RecordSource exposes the tracked trades the summary is built from.
type RecordSource interface {
	Records(ctx context.Context) ([]positions.TradeRecord, error)
}

// Summary is the aggregate view over all tracked trades.
type Summary struct {
	Total      int
	Open       int
	Target1    int
	Target2    int
	StopLosses int

	// AvgGainPct is the mean locked-in gain across trades that reached a
	// target, using the configured threshold as the realized level.
	AvgGainPct float64
}

func (s Summary) HitRate() float64 {
	resolved := s.Target2 + s.StopLosses
	if resolved == 0 {
		return 0
	}
	return float64(s.Target2) / float64(resolved) * 100
}

// Reporter builds and renders the performance digest.
type Reporter struct {
	Source RecordSource
	Cfg    config.Positions
}

func (r *Reporter) Summarize(ctx context.Context) (Summary, []positions.TradeRecord, error) {
	recs, err := r.Source.Records(ctx)
	if err != nil {
		return Summary{}, nil, err
	}
	var s Summary
	var gainSum float64
	var gainN int
	for _, rec := range recs {
		s.Total++
		if !rec.Resolved() {
			s.Open++
		}
		if rec.Target1Hit {
			s.Target1++
		}
		if rec.Target2Hit {
			s.Target2++
		}
		if rec.StopLossHit {
			s.StopLosses++
		}
		switch {
		case rec.Target2Hit:
			gainSum += r.Cfg.Target2Pct * 100
			gainN++
		case rec.Target1Hit:
			gainSum += r.Cfg.Target1Pct * 100
			gainN++
		}
	}
	if gainN > 0 {
		s.AvgGainPct = gainSum / float64(gainN)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].OpenedAt.After(recs[j].OpenedAt) })
	return s, recs, nil
}

// Render formats the digest for broadcast.
func (r *Reporter) Render(ctx context.Context) (string, error) {
	s, recs, err := r.Summarize(ctx)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("<b>Daily performance report</b>\n")
	fmt.Fprintf(&b, "Tracked: %d (open: %d)\n", s.Total, s.Open)
	fmt.Fprintf(&b, "Target 1 hits: %d\n", s.Target1)
	fmt.Fprintf(&b, "Target 2 hits: %d\n", s.Target2)
	fmt.Fprintf(&b, "Stop losses: %d\n", s.StopLosses)
	fmt.Fprintf(&b, "Hit rate: %.1f%%\n", s.HitRate())
	fmt.Fprintf(&b, "Avg target gain: %.1f%%", s.AvgGainPct)
	for _, rec := range recs {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "<b>%s</b> entry %.2f", rec.Symbol, rec.EntryPrice)
		switch {
		case rec.StopLossHit:
			b.WriteString("\nStatus: stopped out")
		case rec.Target2Hit:
			b.WriteString("\nStatus: target 2 hit")
		case rec.Target1Hit:
			b.WriteString("\nStatus: target 1 hit")
		default:
			b.WriteString("\nStatus: open")
		}
	}
	return b.String(), nil
}
