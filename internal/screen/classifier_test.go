package screen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/scoring"
	"github.com/stocksentry/stocksentry/internal/store"
)

type fakeScanner struct {
	cands []market.Candidate
	err   error
}

func (f fakeScanner) Scan(ctx context.Context) ([]market.Candidate, error) {
	return f.cands, f.err
}

type fakeIndicators struct {
	data map[string]*market.Indicators
	errs map[string]error
}

func (f fakeIndicators) Indicators(ctx context.Context, symbol string) (*market.Indicators, error) {
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.data[symbol], nil
}

// fakeScorer returns the single configured score, errs, or delegates to byVec.
type fakeScorer struct {
	scores map[string]float64
	err    error
	byVec  func(f scoring.Features) (float64, error)
}

func (f fakeScorer) Score(ctx context.Context, feat scoring.Features) (float64, error) {
	if f.byVec != nil {
		return f.byVec(feat)
	}
	if f.err != nil {
		return 0, f.err
	}
	for _, s := range f.scores {
		return s, nil
	}
	return 0, nil
}

type staticHistory struct{ syms map[string]bool }

func (s staticHistory) HadRecentLoss(symbol string) bool { return s.syms[symbol] }
func (s staticHistory) SeenRecently(symbol string) bool  { return s.syms[symbol] }

func greenIndicators() *market.Indicators {
	return &market.Indicators{Close: 3.0, Open: 2.8, Volume: 2_600_000, RSI: 60, MACD: 1.2, MACDSignal: 0.8}
}

func newClassifier(sc fakeScanner, ind fakeIndicators, scorer fakeScorer) (*Classifier, *store.Snapshots) {
	cfg := config.Root{}
	cfg.ApplyDefaults()
	snaps := store.NewSnapshots(store.NewMemStore())
	return &Classifier{
		Scanner:      sc,
		Indicators:   ind,
		Scorer:       scorer,
		Snapshots:    snaps,
		Filter:       NewRuleFilter(cfg.Screen.Rules),
		MinScore:     cfg.Screen.MinScore,
		MinIndVolume: cfg.Screen.MinIndVolume,
		Workers:      4,
	}, snaps
}

// The worked example: ABCD passes the default filter, is green with good
// indicators and score 40, lands in top and not in pump.
func TestClassifier_SpecExample(t *testing.T) {
	ctx := context.Background()
	abcd := market.Candidate{Symbol: "ABCD", Price: 3.0, Volume: 2_500_000, MarketCap: 1_000_000_000, PercentChange: 20}
	cl, snaps := newClassifier(
		fakeScanner{cands: []market.Candidate{abcd}},
		fakeIndicators{data: map[string]*market.Indicators{"ABCD": greenIndicators()}},
		fakeScorer{scores: map[string]float64{"ABCD": 40}},
	)

	require.NoError(t, cl.Run(ctx))

	top, err := snaps.Get(ctx, market.CategoryTop)
	require.NoError(t, err)
	require.Equal(t, []string{"ABCD"}, top.Current.Symbols())
	require.Equal(t, 40.0, top.Current.Candidates[0].Score)

	pump, err := snaps.Get(ctx, market.CategoryPump)
	require.NoError(t, err)
	require.Empty(t, pump.Current.Candidates)
}

func TestClassifier_RanksAndCaps(t *testing.T) {
	ctx := context.Background()
	var cands []market.Candidate
	scores := map[float64]float64{1.1: 30, 1.2: 90, 1.3: 50, 1.4: 70, 1.5: 60}
	for price := range scores {
		cands = append(cands, market.Candidate{
			Symbol: symbolFor(price), Price: price, Volume: 3_000_000, MarketCap: 1e9, PercentChange: 10,
		})
	}
	ind := map[string]*market.Indicators{}
	for _, c := range cands {
		ind[c.Symbol] = greenIndicators()
	}
	cl, snaps := newClassifier(
		fakeScanner{cands: cands},
		fakeIndicators{data: ind},
		fakeScorer{byVec: func(f scoring.Features) (float64, error) { return scores[f.Close], nil }},
	)

	require.NoError(t, cl.Run(ctx))

	top, err := snaps.Get(ctx, market.CategoryTop)
	require.NoError(t, err)
	require.LessOrEqual(t, len(top.Current.Candidates), market.CategoryTop.Cap())
	got := top.Current.Candidates
	require.Len(t, got, 3)
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i-1].Score, got[i].Score, "must be sorted descending")
	}
	require.Equal(t, 90.0, got[0].Score)
}

func symbolFor(price float64) string {
	switch price {
	case 1.1:
		return "AAAA"
	case 1.2:
		return "BBBB"
	case 1.3:
		return "CCCC"
	case 1.4:
		return "DDDD"
	default:
		return "EEEE"
	}
}

func TestClassifier_PumpCoOccurrence(t *testing.T) {
	ctx := context.Background()
	c := market.Candidate{Symbol: "BOOM", Price: 2.0, Volume: 2_000_000_000, MarketCap: 1_000_000_000, PercentChange: 40}
	cl, snaps := newClassifier(
		fakeScanner{cands: []market.Candidate{c}},
		fakeIndicators{data: map[string]*market.Indicators{"BOOM": greenIndicators()}},
		fakeScorer{scores: map[string]float64{"BOOM": 80}},
	)

	require.NoError(t, cl.Run(ctx))

	top, _ := snaps.Get(ctx, market.CategoryTop)
	pump, _ := snaps.Get(ctx, market.CategoryPump)
	require.True(t, top.Current.Contains("BOOM"))
	require.True(t, pump.Current.Contains("BOOM"), "candidate may land in both buckets")
}

func TestClassifier_ScoringErrorExcludesCandidateOnly(t *testing.T) {
	ctx := context.Background()
	cands := []market.Candidate{
		{Symbol: "GOOD", Price: 2.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10},
		{Symbol: "BADX", Price: 3.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10},
	}
	cl, snaps := newClassifier(
		fakeScanner{cands: cands},
		fakeIndicators{data: map[string]*market.Indicators{"GOOD": greenIndicators(), "BADX": greenIndicators()}},
		fakeScorer{byVec: func(f scoring.Features) (float64, error) {
			if f.Close == 3.0 {
				return 0, errors.New("model down")
			}
			return 55, nil
		}},
	)

	require.NoError(t, cl.Run(ctx))

	top, _ := snaps.Get(ctx, market.CategoryTop)
	require.Equal(t, []string{"GOOD"}, top.Current.Symbols())
}

func TestClassifier_MissingIndicatorsDiscards(t *testing.T) {
	ctx := context.Background()
	c := market.Candidate{Symbol: "NODA", Price: 2.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10}
	cl, snaps := newClassifier(
		fakeScanner{cands: []market.Candidate{c}},
		fakeIndicators{data: map[string]*market.Indicators{}},
		fakeScorer{scores: map[string]float64{"NODA": 99}},
	)

	require.NoError(t, cl.Run(ctx))
	top, _ := snaps.Get(ctx, market.CategoryTop)
	require.Empty(t, top.Current.Candidates)
}

func TestClassifier_HistoryExclusions(t *testing.T) {
	ctx := context.Background()
	cands := []market.Candidate{
		{Symbol: "LOSS", Price: 2.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10},
		{Symbol: "SEEN", Price: 2.1, Volume: 3e6, MarketCap: 1e9, PercentChange: 10},
		{Symbol: "FRSH", Price: 2.2, Volume: 3e6, MarketCap: 1e9, PercentChange: 10},
	}
	ind := map[string]*market.Indicators{}
	for _, c := range cands {
		ind[c.Symbol] = greenIndicators()
	}
	cl, snaps := newClassifier(
		fakeScanner{cands: cands},
		fakeIndicators{data: ind},
		fakeScorer{scores: map[string]float64{"any": 60}},
	)
	cl.Losses = staticHistory{syms: map[string]bool{"LOSS": true}}
	cl.Watched = staticHistory{syms: map[string]bool{"SEEN": true}}

	require.NoError(t, cl.Run(ctx))
	top, _ := snaps.Get(ctx, market.CategoryTop)
	require.Equal(t, []string{"FRSH"}, top.Current.Symbols())
}

func TestClassifier_DropsYesterdaysPicks(t *testing.T) {
	ctx := context.Background()
	day1 := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	c := market.Candidate{Symbol: "REPT", Price: 2.0, Volume: 3e6, MarketCap: 1e9, PercentChange: 10}
	cl, snaps := newClassifier(
		fakeScanner{cands: []market.Candidate{c}},
		fakeIndicators{data: map[string]*market.Indicators{"REPT": greenIndicators()}},
		fakeScorer{scores: map[string]float64{"REPT": 60}},
	)

	cl.Now = func() time.Time { return day1 }
	require.NoError(t, cl.Run(ctx))
	top, _ := snaps.Get(ctx, market.CategoryTop)
	require.True(t, top.Current.Contains("REPT"))

	cl.Now = func() time.Time { return day2 }
	require.NoError(t, cl.Run(ctx))
	top, _ = snaps.Get(ctx, market.CategoryTop)
	require.False(t, top.Current.Contains("REPT"), "yesterday's pick must not reappear")
}

func TestClassifier_ScanFailurePublishesEmpty(t *testing.T) {
	ctx := context.Background()
	cl, snaps := newClassifier(
		fakeScanner{err: errors.New("feed down")},
		fakeIndicators{},
		fakeScorer{},
	)
	// seed a non-empty current so the overwrite is observable
	require.NoError(t, snaps.Publish(ctx, market.CategoryTop, []market.Candidate{{Symbol: "OLDX"}}, time.Now()))

	require.NoError(t, cl.Run(ctx))
	top, _ := snaps.Get(ctx, market.CategoryTop)
	require.Empty(t, top.Current.Candidates)
	require.Equal(t, []string{"OLDX"}, top.Previous.Symbols())
}
