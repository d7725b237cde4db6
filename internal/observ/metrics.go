package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	m[canonLabels(labels)]++
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	m[canonLabels(labels)] = value
}

// CycleDone records the completion gauge every scheduled cycle publishes.
func CycleDone(job string, started time.Time) {
	SetGauge("cycle_duration_ms", float64(time.Since(started).Milliseconds()), map[string]string{"job": job})
	SetGauge("cycle_last_run_unix", float64(time.Now().Unix()), map[string]string{"job": job})
}

var startTime = time.Now()

// Handler dumps counters and gauges as JSON for quick checks
// (deliberately not Prometheus exposition format).
func Handler() http.Handler {
	type dump struct {
		UptimeSeconds int64                         `json:"uptime_seconds"`
		Counters      map[string]map[string]int64   `json:"counters"`
		Gauges        map[string]map[string]float64 `json:"gauges"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Counters:      reg.counters,
			Gauges:        reg.gauges,
		})
	})
}
