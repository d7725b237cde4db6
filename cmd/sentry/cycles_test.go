package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type seqRunner struct {
	name string
	log  *[]string
}

func (r *seqRunner) Run(ctx context.Context) error {
	*r.log = append(*r.log, r.name)
	return nil
}

type fakeBenchmark struct {
	change float64
	err    error
}

func (f *fakeBenchmark) TwoDayChange(ctx context.Context, symbol string) (float64, error) {
	return f.change, f.err
}

func newTestCycles(bench *fakeBenchmark, now time.Time) (*cycles, *[]string) {
	log := &[]string{}
	c := &cycles{
		Benchmark:    bench,
		Classifier:   &seqRunner{name: "classifier", log: log},
		HighMovement: &seqRunner{name: "high_movement", log: log},
		PumpDetector: &seqRunner{name: "pump_detector", log: log},
		Alerts:       &seqRunner{name: "alerts", log: log},
		CheckTargets: func(ctx context.Context) error {
			*log = append(*log, "targets")
			return nil
		},
		Now: func() time.Time { return now },
	}
	return c, log
}

func TestScanRunsScreensThenAlerts(t *testing.T) {
	open := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC) // Tuesday, market hours
	c, log := newTestCycles(&fakeBenchmark{change: 0.4}, open)

	c.scan(context.Background())

	require.Equal(t, []string{"classifier", "high_movement", "pump_detector", "alerts"}, *log)
}

func TestScanSkippedWhenMarketClosed(t *testing.T) {
	saturday := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	c, log := newTestCycles(&fakeBenchmark{change: 0.4}, saturday)

	c.scan(context.Background())

	require.Empty(t, *log)
}

func TestScanSkippedOnWeakMarket(t *testing.T) {
	open := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	c, log := newTestCycles(&fakeBenchmark{change: -1.5}, open)

	c.scan(context.Background())

	require.Empty(t, *log)
}

func TestTrackIgnoresMarketGates(t *testing.T) {
	// Closed clock and a weak benchmark: stop and target checks still run.
	saturday := time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC)
	c, log := newTestCycles(&fakeBenchmark{change: -1.5}, saturday)

	c.track(context.Background())

	require.Equal(t, []string{"targets"}, *log)
}

func TestTrackSurvivesCheckError(t *testing.T) {
	c, _ := newTestCycles(&fakeBenchmark{}, time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC))
	c.CheckTargets = func(ctx context.Context) error { return errors.New("feed down") }

	require.NotPanics(t, func() { c.track(context.Background()) })
}
