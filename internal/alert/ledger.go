// Package alert decides which snapshot entries are worth a notification.
// Its core guarantee: no symbol triggers more than one notification per
// category per calendar day, no matter how often the cycle runs.
package alert

import (
	"sort"
	"time"
)

const dayFormat = "2006-01-02"

// Ledger maps calendar day -> symbols already alerted that day. A key is
// "category/symbol" so the per-day guarantee holds per category.
type Ledger map[string][]string

// Seen reports whether the key was already alerted on the given day.
func (l Ledger) Seen(day time.Time, key string) bool {
	for _, k := range l[day.UTC().Format(dayFormat)] {
		if k == key {
			return true
		}
	}
	return false
}

// MarkIfNew records the key for the day and reports whether it was new.
func (l Ledger) MarkIfNew(day time.Time, key string) bool {
	d := day.UTC().Format(dayFormat)
	for _, k := range l[d] {
		if k == key {
			return false
		}
	}
	l[d] = append(l[d], key)
	return true
}

// Prune drops entries for days older than retain days, bounding growth.
// Today's entries are never touched.
func (l Ledger) Prune(now time.Time, retain int) {
	cutoff := now.UTC().AddDate(0, 0, -retain).Format(dayFormat)
	days := make([]string, 0, len(l))
	for d := range l {
		days = append(days, d)
	}
	sort.Strings(days)
	for _, d := range days {
		if d < cutoff {
			delete(l, d)
		}
	}
}
