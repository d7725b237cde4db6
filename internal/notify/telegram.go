// Package notify delivers rendered messages to subscribers. Delivery is
// best-effort: each recipient is independent, retried a bounded number of
// times, and over-long messages are split into ordered parts.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/observ"
)

// Result is the per-recipient delivery outcome.
type Result struct {
	Recipient string
	Err       error
}

// Telegram posts messages through the bot sendMessage endpoint.
type Telegram struct {
	cfg        config.Telegram
	httpClient *http.Client
	limiter    *rate.Limiter
	sleep      func(time.Duration) // swapped out in tests
}

func NewTelegram(cfg config.Telegram) *Telegram {
	return &Telegram{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		sleep:      time.Sleep,
	}
}

// Deliver sends the message to every recipient. One recipient failing never
// blocks the others; the per-recipient outcome is returned.
func (t *Telegram) Deliver(ctx context.Context, recipients []string, text string) []Result {
	parts := splitMessage(text, t.cfg.MaxMsgLen)
	results := make([]Result, 0, len(recipients))
	for _, chatID := range recipients {
		err := t.deliverParts(ctx, chatID, parts)
		if err != nil {
			observ.LogErr("notify_delivery_failed", err, map[string]any{"recipient": chatID})
			observ.IncCounter("notify_failures_total", nil)
		} else {
			observ.IncCounter("notify_delivered_total", nil)
		}
		results = append(results, Result{Recipient: chatID, Err: err})
	}
	return results
}

// deliverParts sends the ordered parts in sequence; a part is retried with a
// fixed delay before the whole recipient is given up on.
func (t *Telegram) deliverParts(ctx context.Context, chatID string, parts []string) error {
	for _, part := range parts {
		var lastErr error
		for attempt := 0; attempt < t.cfg.Retries; attempt++ {
			if attempt > 0 {
				t.sleep(time.Duration(t.cfg.RetryDelayMs) * time.Millisecond)
			}
			if lastErr = t.sendMessage(ctx, chatID, part); lastErr == nil {
				break
			}
			observ.LogErr("notify_send_retry", lastErr, map[string]any{
				"recipient": chatID,
				"attempt":   attempt + 1,
			})
		}
		if lastErr != nil {
			return lastErr
		}
	}
	return nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) sendMessage(ctx context.Context, chatID, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()
	var out sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("send message decode: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("send message rejected: %s", out.Description)
	}
	return nil
}

// splitMessage cuts text into ordered chunks of at most max bytes,
// preferring to break on a line boundary.
func splitMessage(text string, max int) []string {
	if max <= 0 || len(text) <= max {
		return []string{text}
	}
	var parts []string
	for len(text) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if text[i-1] == '\n' {
				cut = i
				break
			}
		}
		if cut == max {
			// no newline to cut on; back up to a rune boundary so a
			// multi-byte character is never split across chunks
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if len(text) > 0 {
		parts = append(parts, text)
	}
	return parts
}
