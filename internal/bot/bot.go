// Package bot is the inbound Telegram side: a getUpdates long-poll loop
// plus the command handlers behind it. Outbound alerting lives in notify.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/stocksentry/stocksentry/internal/alert"
	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/feed"
	"github.com/stocksentry/stocksentry/internal/market"
	"github.com/stocksentry/stocksentry/internal/notify"
	"github.com/stocksentry/stocksentry/internal/observ"
	"github.com/stocksentry/stocksentry/internal/report"
	"github.com/stocksentry/stocksentry/internal/scoring"
	"github.com/stocksentry/stocksentry/internal/store"
	"github.com/stocksentry/stocksentry/internal/universe"
)

const welcome = `Welcome to StockSentry.

Commands:
/top - current strong picks
/pump - current pump alerts
/highmove - high movement stocks
/report - daily performance report
/update - refresh the symbol universe

Send a ticker symbol (e.g. TSLA) for an on-demand analysis.`

// Bot polls Telegram for updates and answers commands.
type Bot struct {
	Cfg       config.Telegram
	Positions config.Positions

	Sink      *notify.Telegram
	Users     *notify.Registry
	Snapshots *store.Snapshots
	Trades    alert.TradeOpener
	Reporter  *report.Reporter
	Universe  *universe.Directory
	Scanner   feed.IndicatorSource
	Scorer    scoring.Scorer

	httpClient *http.Client
	offset     int64
}

func New(cfg config.Telegram) *Bot {
	return &Bot{
		Cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.PollTimeoutS+10) * time.Second,
		},
	}
}

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run long-polls until the context is cancelled. Poll errors back off and
// retry; a handler failure never stops the loop.
func (b *Bot) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		updates, err := b.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			observ.LogErr("bot_poll_failed", err, nil)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			if u.Message == nil || u.Message.Text == "" {
				continue
			}
			b.handle(ctx, strconv.FormatInt(u.Message.Chat.ID, 10), u.Message.Text)
		}
	}
}

func (b *Bot) poll(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("timeout", strconv.Itoa(b.Cfg.PollTimeoutS))
	q.Set("offset", strconv.FormatInt(b.offset, 10))
	endpoint := fmt.Sprintf("%s/bot%s/getUpdates?%s", b.Cfg.BaseURL, b.Cfg.Token, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !out.OK {
		return nil, fmt.Errorf("getUpdates rejected")
	}
	return out.Result, nil
}

func (b *Bot) handle(ctx context.Context, chatID, text string) {
	defer func() {
		if r := recover(); r != nil {
			observ.Log("bot_handler_panic", map[string]any{"panic": r})
		}
	}()
	observ.IncCounter("bot_commands_total", nil)

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "/start":
		b.start(ctx, chatID)
	case "/top":
		b.category(ctx, chatID, market.CategoryTop)
	case "/pump":
		b.category(ctx, chatID, market.CategoryPump)
	case "/highmove":
		b.category(ctx, chatID, market.CategoryHighMovement)
	case "/pumpscan":
		b.category(ctx, chatID, market.CategoryPumpDetector)
	case "/report":
		b.dailyReport(ctx, chatID)
	case "/update":
		b.refreshUniverse(ctx, chatID)
	default:
		b.analyze(ctx, chatID, text)
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	b.Sink.Deliver(ctx, []string{chatID}, text)
}

func (b *Bot) start(ctx context.Context, chatID string) {
	if err := b.Users.Add(ctx, chatID); err != nil {
		observ.LogErr("bot_subscribe_failed", err, map[string]any{"chat": chatID})
	}
	b.reply(ctx, chatID, welcome)
}

func (b *Bot) category(ctx context.Context, chatID string, cat market.Category) {
	pair, err := b.Snapshots.Get(ctx, cat)
	if err != nil {
		observ.LogErr("bot_snapshot_unavailable", err, map[string]any{"category": string(cat)})
		b.reply(ctx, chatID, "Data unavailable right now, try again later")
		return
	}
	snap := pair.Current
	snap.Category = cat
	b.reply(ctx, chatID, notify.RenderSnapshot(snap, b.Positions))

	// browsing a tradable category also arms target tracking for it
	if cat != market.CategoryPumpDetector {
		if err := b.Trades.Open(ctx, snap.Candidates, cat); err != nil {
			observ.LogErr("bot_trade_open_failed", err, map[string]any{"category": string(cat)})
		}
	}
}

func (b *Bot) dailyReport(ctx context.Context, chatID string) {
	msg, err := b.Reporter.Render(ctx)
	if err != nil {
		observ.LogErr("bot_report_failed", err, nil)
		b.reply(ctx, chatID, "Report unavailable right now")
		return
	}
	b.reply(ctx, chatID, msg)
}

func (b *Bot) refreshUniverse(ctx context.Context, chatID string) {
	b.reply(ctx, chatID, "Refreshing symbol universe...")
	if err := b.Universe.Refresh(ctx); err != nil {
		observ.LogErr("bot_universe_refresh_failed", err, nil)
		b.reply(ctx, chatID, "Universe refresh failed")
		return
	}
	b.reply(ctx, chatID, "Universe refreshed")
}

// validSymbol accepts short all-letter tickers; everything else is ignored
// as chatter.
func validSymbol(text string) (string, bool) {
	sym := strings.ToUpper(strings.TrimSpace(text))
	if len(sym) == 0 || len(sym) > 5 {
		return "", false
	}
	for _, r := range sym {
		if r < 'A' || r > 'Z' {
			return "", false
		}
	}
	return sym, true
}

func (b *Bot) analyze(ctx context.Context, chatID, text string) {
	sym, ok := validSymbol(text)
	if !ok {
		b.reply(ctx, chatID, "Send a valid ticker symbol, e.g. TSLA or PLUG")
		return
	}
	ind, err := b.Scanner.Indicators(ctx, sym)
	if err != nil || ind == nil {
		b.reply(ctx, chatID, fmt.Sprintf("Cannot analyze %s right now", sym))
		return
	}
	score, err := b.Scorer.Score(ctx, scoring.Features{
		MA10:   ind.Close,
		MA30:   ind.Close,
		Vol:    ind.Volume,
		AvgVol: ind.Volume,
		Change: ind.PercentChange,
		Close:  ind.Close,
	})
	if err != nil {
		observ.LogErr("bot_analysis_score_failed", err, map[string]any{"symbol": sym})
		b.reply(ctx, chatID, fmt.Sprintf("Cannot analyze %s right now", sym))
		return
	}
	b.reply(ctx, chatID, notify.RenderAnalysis(sym, score, b.Positions, ind.Close))
}
