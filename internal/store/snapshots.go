package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/market"
)

// SnapshotPair holds the two retained generations for one category.
type SnapshotPair struct {
	Current  market.Snapshot `json:"current"`
	Previous market.Snapshot `json:"previous"`
}

// dayHistory maps calendar day -> symbols published that day for a category.
type dayHistory map[string][]string

const historyRetainDays = 7

// Snapshots is the repository for category snapshots. Publish rotates
// current into previous and appends to the day-keyed symbol history used for
// cross-day dedup. All mutation goes through a per-category mutex so
// overlapping cycles cannot interleave their read-modify-write.
type Snapshots struct {
	c  Collection
	mu sync.Mutex
}

func NewSnapshots(c Collection) *Snapshots {
	return &Snapshots{c: c}
}

func snapName(cat market.Category) string    { return "snapshots_" + string(cat) }
func historyName(cat market.Category) string { return "history_" + string(cat) }

// Get returns both generations for a category; absent state is empty.
func (s *Snapshots) Get(ctx context.Context, cat market.Category) (SnapshotPair, error) {
	var pair SnapshotPair
	if err := s.c.Load(ctx, snapName(cat), &pair); err != nil {
		return pair, err
	}
	return pair, nil
}

// Publish replaces the current generation with cands, rotating the old
// current into previous, and records today's symbols into the day history.
// An empty cands list is a valid publish, not an error.
func (s *Snapshots) Publish(ctx context.Context, cat market.Category, cands []market.Candidate, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, err := s.Get(ctx, cat)
	if err != nil {
		return err
	}
	pair.Previous = pair.Current
	pair.Current = market.Snapshot{Category: cat, Candidates: cands, UpdatedAt: now.UTC()}
	if err := s.c.Replace(ctx, snapName(cat), pair); err != nil {
		return err
	}
	return s.appendHistory(ctx, cat, pair.Current, now)
}

func (s *Snapshots) appendHistory(ctx context.Context, cat market.Category, snap market.Snapshot, now time.Time) error {
	hist := dayHistory{}
	if err := s.c.Load(ctx, historyName(cat), &hist); err != nil {
		return err
	}
	day := now.UTC().Format("2006-01-02")
	seen := map[string]bool{}
	for _, sym := range hist[day] {
		seen[sym] = true
	}
	for _, sym := range snap.Symbols() {
		if !seen[sym] {
			hist[day] = append(hist[day], sym)
		}
	}
	pruneDays(hist, now, historyRetainDays)
	return s.c.Replace(ctx, historyName(cat), hist)
}

// DaySymbols returns the symbols recorded for a category on the given day.
func (s *Snapshots) DaySymbols(ctx context.Context, cat market.Category, day time.Time) (map[string]bool, error) {
	hist := dayHistory{}
	if err := s.c.Load(ctx, historyName(cat), &hist); err != nil {
		return nil, err
	}
	out := map[string]bool{}
	for _, sym := range hist[day.UTC().Format("2006-01-02")] {
		out[sym] = true
	}
	return out, nil
}

func pruneDays(hist dayHistory, now time.Time, retain int) {
	cutoff := now.UTC().AddDate(0, 0, -retain).Format("2006-01-02")
	days := make([]string, 0, len(hist))
	for d := range hist {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		if d < cutoff {
			delete(hist, d)
		}
	}
}
