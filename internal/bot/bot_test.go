package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/notify"
	"github.com/stocksentry/stocksentry/internal/positions"
	"github.com/stocksentry/stocksentry/internal/report"
	"github.com/stocksentry/stocksentry/internal/scoring"
	"github.com/stocksentry/stocksentry/internal/store"
)

type sentMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// capture records outbound sendMessage calls behind a fake Telegram API.
type capture struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (c *capture) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var msg sentMessage
		_ = json.NewDecoder(r.Body).Decode(&msg)
		c.mu.Lock()
		c.sent = append(c.sent, msg)
		c.mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}
}

func (c *capture) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Text
	}
	return out
}

type fakeOpener struct {
	mu     sync.Mutex
	opened map[market.Category][]market.Candidate
}

func (f *fakeOpener) Open(ctx context.Context, cands []market.Candidate, cat market.Category) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened == nil {
		f.opened = make(map[market.Category][]market.Candidate)
	}
	f.opened[cat] = append(f.opened[cat], cands...)
	return nil
}

type fakeIndicators struct {
	ind *market.Indicators
	err error
}

func (f fakeIndicators) Indicators(ctx context.Context, symbol string) (*market.Indicators, error) {
	return f.ind, f.err
}

type fakeScorer struct{ score float64 }

func (f fakeScorer) Score(ctx context.Context, _ scoring.Features) (float64, error) {
	return f.score, nil
}

type staticRecords []positions.TradeRecord

func (s staticRecords) Records(ctx context.Context) ([]positions.TradeRecord, error) {
	return s, nil
}

func newTestBot(t *testing.T, rec *capture) (*Bot, *fakeOpener, *store.Snapshots) {
	t.Helper()
	srv := httptest.NewServer(rec.handler())
	t.Cleanup(srv.Close)

	tgCfg := config.Telegram{
		Token: "t", BaseURL: srv.URL, MaxMsgLen: 4000,
		Retries: 1, RetryDelayMs: 1, RatePerSec: 1000,
	}
	mem := store.NewMemStore()
	snaps := store.NewSnapshots(mem)
	opener := &fakeOpener{}

	b := New(tgCfg)
	b.Positions = config.Positions{Target1Pct: 0.10, Target2Pct: 0.25, StopLossPct: 0.15}
	b.Sink = notify.NewTelegram(tgCfg)
	b.Users = notify.NewRegistry(mem)
	b.Snapshots = snaps
	b.Trades = opener
	b.Reporter = &report.Reporter{Cfg: b.Positions, Source: staticRecords{
		{Symbol: "AAA", EntryPrice: 2.0, Target1Hit: true, OpenedAt: time.Now()},
	}}
	b.Scanner = fakeIndicators{ind: &market.Indicators{Close: 3.0, Volume: 2_000_000, PercentChange: 12}}
	b.Scorer = fakeScorer{score: 92}
	return b, opener, snaps
}

func TestStartSubscribesAndWelcomes(t *testing.T) {
	rec := &capture{}
	b, _, _ := newTestBot(t, rec)
	ctx := context.Background()

	b.handle(ctx, "100", "/start")

	all, err := b.Users.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"100"}, all)
	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "Welcome")
}

func TestCategoryCommandRendersAndOpensTrades(t *testing.T) {
	rec := &capture{}
	b, opener, snaps := newTestBot(t, rec)
	ctx := context.Background()

	cands := []market.Candidate{{Symbol: "ABCD", Price: 3.0, Score: 41.5, Volume: 4_000_000}}
	require.NoError(t, snaps.Publish(ctx, market.CategoryTop, cands, time.Now()))

	b.handle(ctx, "100", "/top")

	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "<b>ABCD</b>")
	require.Len(t, opener.opened[market.CategoryTop], 1)
}

func TestPumpScanDoesNotOpenTrades(t *testing.T) {
	rec := &capture{}
	b, opener, snaps := newTestBot(t, rec)
	ctx := context.Background()

	cands := []market.Candidate{{Symbol: "SCAN", Price: 8.0, PercentChange: 22, Volume: 9_000_000}}
	require.NoError(t, snaps.Publish(ctx, market.CategoryPumpDetector, cands, time.Now()))

	b.handle(ctx, "100", "/pumpscan")

	require.Len(t, rec.texts(), 1)
	require.Empty(t, opener.opened)
}

func TestEmptyCategoryReplies(t *testing.T) {
	rec := &capture{}
	b, _, _ := newTestBot(t, rec)

	b.handle(context.Background(), "100", "/pump")

	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "No pump picks")
}

func TestReportCommand(t *testing.T) {
	rec := &capture{}
	b, _, _ := newTestBot(t, rec)

	b.handle(context.Background(), "100", "/report")

	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "Daily performance report")
}

func TestAnalyzeCommand(t *testing.T) {
	rec := &capture{}
	b, _, _ := newTestBot(t, rec)

	b.handle(context.Background(), "100", "tsla")

	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "<b>TSLA</b>")
	require.Contains(t, rec.texts()[0], "strong buy")
}

func TestAnalyzeRejectsChatter(t *testing.T) {
	rec := &capture{}
	b, _, _ := newTestBot(t, rec)

	b.handle(context.Background(), "100", "hello there bot")

	require.Len(t, rec.texts(), 1)
	require.Contains(t, rec.texts()[0], "valid ticker")
}

func TestValidSymbol(t *testing.T) {
	cases := []struct {
		in  string
		sym string
		ok  bool
	}{
		{"tsla", "TSLA", true},
		{" PLUG ", "PLUG", true},
		{"toolong", "", false},
		{"ab1", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		sym, ok := validSymbol(tc.in)
		require.Equal(t, tc.ok, ok, tc.in)
		require.Equal(t, tc.sym, sym, tc.in)
	}
}
