package screen

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/scoring"
	"github.com/stocksentry/stocksentry/internal/store"
)

// LossHistory reports whether a symbol recently stopped out; such symbols
// are excluded from classification.
type LossHistory interface {
	HadRecentLoss(symbol string) bool
}

// WatchHistory reports whether a symbol was already picked up recently by
// the external watch list.
type WatchHistory interface {
	SeenRecently(symbol string) bool
}

// Classifier runs one scan-filter-score-bucket cycle and publishes the top
// and pump snapshots. The cycle always completes and always publishes, even
// when everything was filtered out.
type Classifier struct {
	Scanner    feed.Scanner
	Indicators feed.IndicatorSource
	Scorer     scoring.Scorer
	Losses     LossHistory
	Watched    WatchHistory
	Snapshots  *store.Snapshots

	Filter       RuleFilter
	MinScore     float64
	MinIndVolume float64
	Workers      int
	Now          func() time.Time
}

func (cl *Classifier) now() time.Time {
	if cl.Now != nil {
		return cl.Now()
	}
	return time.Now()
}

// Run executes one classification cycle.
func (cl *Classifier) Run(ctx context.Context) error {
	started := cl.now()
	defer observ.CycleDone("classify", started)

	cands, err := cl.Scanner.Scan(ctx)
	if err != nil {
		// Feed outage: publish the empty result rather than abort.
		// Absence of candidates is a valid outcome, and the next
		// scheduled cycle is the retry.
		observ.LogErr("classify_scan_failed", err, nil)
		cands = nil
	}

	pre := make([]market.Candidate, 0, len(cands))
	for _, c := range cands {
		if !cl.Filter.Passes(c) {
			continue
		}
		if cl.Losses != nil && cl.Losses.HadRecentLoss(c.Symbol) {
			observ.IncCounter("classify_excluded_total", map[string]string{"reason": "recent_loss"})
			continue
		}
		if cl.Watched != nil && cl.Watched.SeenRecently(c.Symbol) {
			observ.IncCounter("classify_excluded_total", map[string]string{"reason": "seen_recently"})
			continue
		}
		pre = append(pre, c)
	}

	scored := cl.scoreAll(ctx, pre)

	var top, pump []market.Candidate
	for _, c := range scored {
		if c.Score >= cl.MinScore {
			c.Category = market.CategoryTop
			top = append(top, c)
		}
		if pumpBucket(c) {
			c.Category = market.CategoryPump
			pump = append(pump, c)
		}
	}

	now := cl.now()
	yesterday := now.AddDate(0, 0, -1)
	top = cl.dropSeenYesterday(ctx, market.CategoryTop, top, yesterday)
	pump = cl.dropSeenYesterday(ctx, market.CategoryPump, pump, yesterday)

	rankByScore(top)
	rankByScore(pump)
	top = truncate(top, market.CategoryTop.Cap())
	pump = truncate(pump, market.CategoryPump.Cap())

	if err := cl.Snapshots.Publish(ctx, market.CategoryTop, top, now); err != nil {
		return err
	}
	if err := cl.Snapshots.Publish(ctx, market.CategoryPump, pump, now); err != nil {
		return err
	}

	observ.Log("classify_done", map[string]any{
		"scanned": len(cands),
		"scored":  len(scored),
		"top":     len(top),
		"pump":    len(pump),
	})
	return nil
}

// scoreAll fetches indicators and scores the survivors with bounded
// fan-out. Any failure, including a panic, drops that one candidate.
func (cl *Classifier) scoreAll(ctx context.Context, cands []market.Candidate) []market.Candidate {
	workers := cl.Workers
	if workers <= 0 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		out []market.Candidate
		wg  sync.WaitGroup
	)
	jobs := make(chan market.Candidate)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if res, ok := cl.scoreOne(ctx, c); ok {
					mu.Lock()
					out = append(out, res)
					mu.Unlock()
				}
			}
		}()
	}
	for _, c := range cands {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return out
}

func (cl *Classifier) scoreOne(ctx context.Context, c market.Candidate) (res market.Candidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			observ.Log("classify_candidate_panic", map[string]any{"symbol": c.Symbol, "panic": r})
			ok = false
		}
	}()

	ind, err := cl.Indicators.Indicators(ctx, c.Symbol)
	if err != nil {
		observ.LogErr("classify_indicators_failed", err, map[string]any{"symbol": c.Symbol})
		return c, false
	}
	if ind == nil {
		return c, false
	}
	if !ind.Green() || ind.RSI <= 50 || ind.MACD <= ind.MACDSignal || c.Volume <= cl.MinIndVolume {
		return c, false
	}
	c.Indicators = ind

	score, err := cl.Scorer.Score(ctx, scoring.FromCandidate(c))
	if err != nil {
		observ.LogErr("classify_score_failed", err, map[string]any{"symbol": c.Symbol})
		observ.IncCounter("classify_excluded_total", map[string]string{"reason": "score_error"})
		return c, false
	}
	c.Score = score
	return c, true
}

func (cl *Classifier) dropSeenYesterday(ctx context.Context, cat market.Category, cands []market.Candidate, yesterday time.Time) []market.Candidate {
	seen, err := cl.Snapshots.DaySymbols(ctx, cat, yesterday)
	if err != nil {
		observ.LogErr("classify_history_failed", err, map[string]any{"category": string(cat)})
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		if !seen[c.Symbol] {
			out = append(out, c)
		}
	}
	return out
}

func rankByScore(cands []market.Candidate) {
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Score > cands[j].Score })
}

func truncate(cands []market.Candidate, limit int) []market.Candidate {
	if len(cands) > limit {
		return cands[:limit]
	}
	return cands
}
