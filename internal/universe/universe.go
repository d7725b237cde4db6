// Package universe maintains the symbol directory the pump detector walks.
// The directory is refreshed daily from the exchange screener and cached as
// a CSV file so a fetch failure never empties the universe.
package universe

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stocksentry/stocksentry/internal/config"
	"github.com/stocksentry/stocksentry/internal/observ"
)

// Directory fetches, caches, and serves the tradable symbol universe.
type Directory struct {
	cfg        config.Universe
	httpClient *http.Client

	mu      sync.RWMutex
	symbols []string
}

func NewDirectory(cfg config.Universe) *Directory {
	return &Directory{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type screenerResponse struct {
	Data struct {
		Table struct {
			Rows []struct {
				Symbol string `json:"symbol"`
			} `json:"rows"`
		} `json:"table"`
	} `json:"data"`
}

// Refresh pulls the directory from the screener and rewrites the CSV cache.
func (d *Directory) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.cfg.DirectoryURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "stocksentry/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch symbol directory: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch symbol directory: status %d", resp.StatusCode)
	}

	var out screenerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode symbol directory: %w", err)
	}

	seen := make(map[string]bool)
	symbols := make([]string, 0, len(out.Data.Table.Rows))
	for _, row := range out.Data.Table.Rows {
		sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("symbol directory empty")
	}
	sort.Strings(symbols)
	if d.cfg.MaxSymbols > 0 && len(symbols) > d.cfg.MaxSymbols {
		symbols = symbols[:d.cfg.MaxSymbols]
	}

	if err := d.saveCSV(symbols); err != nil {
		return err
	}
	d.mu.Lock()
	d.symbols = symbols
	d.mu.Unlock()
	observ.Log("universe_refreshed", map[string]any{"symbols": len(symbols)})
	observ.SetGauge("universe_symbols", float64(len(symbols)), nil)
	return nil
}

// Symbols returns the cached universe, loading the CSV on first use.
func (d *Directory) Symbols(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	cached := d.symbols
	d.mu.RUnlock()
	if len(cached) > 0 {
		return append([]string(nil), cached...), nil
	}

	symbols, err := d.loadCSV()
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.symbols = symbols
	d.mu.Unlock()
	return append([]string(nil), symbols...), nil
}

func (d *Directory) saveCSV(symbols []string) error {
	if err := os.MkdirAll(filepath.Dir(d.cfg.CSVPath), 0o755); err != nil {
		return err
	}
	tmp := d.cfg.CSVPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"symbol"}); err != nil {
		f.Close()
		return err
	}
	for _, sym := range symbols {
		if err := w.Write([]string{sym}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, d.cfg.CSVPath)
}

func (d *Directory) loadCSV() ([]string, error) {
	f, err := os.Open(d.cfg.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("open symbol cache: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read symbol cache: %w", err)
	}
	symbols := make([]string, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && strings.EqualFold(row[0], "symbol") {
			continue
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		symbols = append(symbols, strings.ToUpper(row[0]))
	}
	if d.cfg.MaxSymbols > 0 && len(symbols) > d.cfg.MaxSymbols {
		symbols = symbols[:d.cfg.MaxSymbols]
	}
	return symbols, nil
}
