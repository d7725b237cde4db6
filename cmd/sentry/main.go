package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stocksentry/stocksentry/internal/alert"
	"github.com/stocksentry/stocksentry/internal/bot"
	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/gate"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/notify"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/positions"
	"github.com/stocksentry/stocksentry/internal/report"
	"github.com/stocksentry/stocksentry/internal/sched"
	"github.com/stocksentry/stocksentry/internal/scoring"
	"github.com/stocksentry/stocksentry/internal/screen"
	"github.com/stocksentry/stocksentry/internal/store"
	"github.com/stocksentry/stocksentry/internal/universe"
)

// watchedRecently adapts the published day history into the classifier's
// watch-list exclusion: a symbol already picked in the last few days is not
// re-picked.
type watchedRecently struct {
	snaps *store.Snapshots
	days  int
}

func (w watchedRecently) SeenRecently(symbol string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	now := time.Now().UTC()
	for i := 1; i <= w.days; i++ {
		for _, cat := range []market.Category{market.CategoryTop, market.CategoryPump} {
			seen, err := w.snaps.DaySymbols(ctx, cat, now.AddDate(0, 0, -i))
			if err != nil {
				continue
			}
			if seen[symbol] {
				return true
			}
		}
	}
	return false
}

func openStore(cfg config.Store) (store.Collection, error) {
	if cfg.Backend == "redis" {
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "sentry"), nil
	}
	return store.NewFileStore(cfg.DataDir)
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config/config.yaml", "config path")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v (did you copy config.example.yaml?)", err)
	}
	if tok := os.Getenv("TELEGRAM_BOT_TOKEN"); tok != "" {
		cfg.Telegram.Token = tok
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Store.Backend = "redis"
		cfg.Store.Redis.Addr = addr
	}

	observ.Log("startup", map[string]any{
		"store_backend":     cfg.Store.Backend,
		"scan_interval_min": cfg.Schedule.ScanIntervalMin,
		"debug_addr":        cfg.DebugAddr,
	})

	st, err := openStore(cfg.Store)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	snaps := store.NewSnapshots(st)

	scanner := feed.NewTradingViewClient(cfg.Feed)
	charts := feed.NewChartClient(cfg.Feed)
	scorer := scoring.NewHTTPScorer(cfg.Scoring)

	sink := notify.NewTelegram(cfg.Telegram)
	users := notify.NewRegistry(st)
	broadcaster := &notify.Broadcaster{Sink: sink, Users: users}

	tracker := &positions.Tracker{
		Store:  st,
		Prices: charts,
		Events: &notify.TradeEvents{B: broadcaster},
		Cfg:    cfg.Positions,
	}

	classifier := &screen.Classifier{
		Scanner:      scanner,
		Indicators:   scanner,
		Scorer:       scorer,
		Losses:       tracker,
		Watched:      watchedRecently{snaps: snaps, days: 3},
		Snapshots:    snaps,
		Filter:       screen.NewRuleFilter(cfg.Screen.Rules),
		MinScore:     cfg.Screen.MinScore,
		MinIndVolume: cfg.Screen.MinIndVolume,
		Workers:      cfg.Feed.FanoutWorkers,
	}
	highMovement := &screen.HighMovementScreen{Scanner: scanner, Snapshots: snaps}

	directory := universe.NewDirectory(cfg.Universe)
	pumpDetector := &screen.PumpDetector{
		Universe:  directory,
		Bars:      charts,
		Snapshots: snaps,
		Cfg:       cfg.Pump,
		Workers:   cfg.Feed.FanoutWorkers,
	}

	engine := &alert.Engine{
		Differ: &alert.Differ{Snapshots: snaps, Ledger: st},
		Sink:   broadcaster,
		Trades: tracker,
		Render: func(c market.Candidate, cat market.Category) string {
			return notify.RenderAlert(c, cat, cfg.Positions)
		},
	}
	reporter := &report.Reporter{Source: tracker, Cfg: cfg.Positions}

	tgBot := bot.New(cfg.Telegram)
	tgBot.Positions = cfg.Positions
	tgBot.Sink = sink
	tgBot.Users = users
	tgBot.Snapshots = snaps
	tgBot.Trades = tracker
	tgBot.Reporter = reporter
	tgBot.Universe = directory
	tgBot.Scanner = scanner
	tgBot.Scorer = scorer

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observ.Handler())
		go func() { _ = http.ListenAndServe(cfg.DebugAddr, mux) }()
		observ.Log("debug_server_up", map[string]any{"addr": cfg.DebugAddr})
	}

	cyc := &cycles{
		Benchmark:    charts,
		Classifier:   classifier,
		HighMovement: highMovement,
		PumpDetector: pumpDetector,
		Alerts:       engine,
		CheckTargets: tracker.CheckTargets,
	}

	interval := time.Duration(cfg.Schedule.ScanIntervalMin) * time.Minute
	s := &sched.Scheduler{}
	s.Every("scan", interval, cyc.scan)
	s.Every("track_targets", interval, cyc.track)
	mustDaily(s, "universe_refresh", cfg.Schedule.UniverseAt, func(ctx context.Context) {
		if err := directory.Refresh(ctx); err != nil {
			observ.LogErr("universe_refresh_failed", err, nil)
		}
	})
	mustDaily(s, "daily_report", cfg.Schedule.ReportAt, func(ctx context.Context) {
		if gate.MarketOpen(time.Now()) {
			return
		}
		msg, err := reporter.Render(ctx)
		if err != nil {
			observ.LogErr("report_failed", err, nil)
			return
		}
		broadcaster.Broadcast(ctx, msg)
	})
	mustDaily(s, "trade_cleanup", cfg.Schedule.CleanupAt, func(ctx context.Context) {
		if err := tracker.Cleanup(ctx); err != nil {
			observ.LogErr("trade_cleanup_failed", err, nil)
		}
	})
	// warm the universe cache so the first pump-detector cycle has symbols
	if _, err := directory.Symbols(ctx); err != nil {
		if err := directory.Refresh(ctx); err != nil {
			observ.LogErr("universe_bootstrap_failed", err, nil)
		}
	}

	s.Start(ctx)

	go tgBot.Run(ctx)

	<-ctx.Done()
	observ.Log("shutdown", nil)
	s.Stop()
}

func mustDaily(s *sched.Scheduler, name, at string, fn func(context.Context)) {
	if err := s.DailyAt(name, at, fn); err != nil {
		log.Fatalf("schedule %s at %q: %v", name, at, err)
	}
}
