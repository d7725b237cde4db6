package main

import (
	"context"
	"time"

	"github.com/stocksentry/stocksentry/internal/gate"
	"github.com/stocksentry/stocksentry/internal/observ"
)

// runner is one screen or alert pass.
type runner interface {
	Run(ctx context.Context) error
}

// cycles groups the scheduled work. The scan cycle is gated on the market
// session; target tracking is not: stops must keep firing after hours and
// on weak-market days.
type cycles struct {
	Benchmark gate.BenchmarkSource

	Classifier   runner
	HighMovement runner
	PumpDetector runner
	Alerts       runner
	CheckTargets func(ctx context.Context) error

	Now func() time.Time
}

func (c *cycles) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// scan runs the screens, then the alert diff. The order is a dependency:
// the differ reads the snapshots the screens just published.
func (c *cycles) scan(ctx context.Context) {
	if !gate.MarketOpen(c.now()) {
		return
	}
	if gate.MarketWeak(ctx, c.Benchmark) {
		return
	}
	if err := c.Classifier.Run(ctx); err != nil {
		observ.LogErr("classifier_cycle_failed", err, nil)
	}
	if err := c.HighMovement.Run(ctx); err != nil {
		observ.LogErr("high_movement_cycle_failed", err, nil)
	}
	if err := c.PumpDetector.Run(ctx); err != nil {
		observ.LogErr("pump_detector_cycle_failed", err, nil)
	}
	if err := c.Alerts.Run(ctx); err != nil {
		observ.LogErr("alert_cycle_failed", err, nil)
	}
}

// track polls open positions every cycle, with no session gates.
func (c *cycles) track(ctx context.Context) {
	if err := c.CheckTargets(ctx); err != nil {
		observ.LogErr("target_check_failed", err, nil)
	}
}
