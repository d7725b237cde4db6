package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Feed struct {
	ScannerURL    string  `yaml:"scanner_url"`
	ChartURL      string  `yaml:"chart_url"`
	Exchange      string  `yaml:"exchange"`
	TimeoutMs     int     `yaml:"timeout_ms"`
	RatePerSec    float64 `yaml:"rate_per_sec"`
	ScanLimit     int     `yaml:"scan_limit"`
	FanoutWorkers int     `yaml:"fanout_workers"`
}

type Scoring struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type Rules struct {
	MinPrice     float64 `yaml:"min_price"`
	MaxPrice     float64 `yaml:"max_price"`
	MinVolume    float64 `yaml:"min_volume"`
	MaxMarketCap float64 `yaml:"max_market_cap"`
	MinChange    float64 `yaml:"min_change"`
	MaxChange    float64 `yaml:"max_change"`
}

type Screen struct {
	Rules        Rules   `yaml:"rules"`
	MinScore     float64 `yaml:"min_score"`
	MinIndVolume float64 `yaml:"min_indicator_volume"`
}

type Pump struct {
	MinPriceChange float64 `yaml:"min_price_change"`
	VolumeSpike    float64 `yaml:"volume_spike"`
	MaxPrice       float64 `yaml:"max_price"`
	MinVolume      float64 `yaml:"min_volume"`
	MaxRSI         float64 `yaml:"max_rsi"`
	LookbackBars   int     `yaml:"lookback_bars"`
}

type Positions struct {
	Target1Pct    float64 `yaml:"target1_pct"`
	Target2Pct    float64 `yaml:"target2_pct"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	RetentionDays int     `yaml:"retention_days"`
}

type Telegram struct {
	Token        string  `yaml:"token"`
	BaseURL      string  `yaml:"base_url"`
	MaxMsgLen    int     `yaml:"max_msg_len"`
	Retries      int     `yaml:"retries"`
	RetryDelayMs int     `yaml:"retry_delay_ms"`
	RatePerSec   float64 `yaml:"rate_per_sec"`
	PollTimeoutS int     `yaml:"poll_timeout_seconds"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type Store struct {
	Backend string `yaml:"backend"` // file | redis
	DataDir string `yaml:"data_dir"`
	Redis   Redis  `yaml:"redis"`
}

type Schedule struct {
	ScanIntervalMin int    `yaml:"scan_interval_min"`
	UniverseAt      string `yaml:"universe_at"`
	ReportAt        string `yaml:"report_at"`
	CleanupAt       string `yaml:"cleanup_at"`
}

type Universe struct {
	DirectoryURL string `yaml:"directory_url"`
	CSVPath      string `yaml:"csv_path"`
	MaxSymbols   int    `yaml:"max_symbols"`
}

type Root struct {
	Feed      Feed      `yaml:"feed"`
	Scoring   Scoring   `yaml:"scoring"`
	Screen    Screen    `yaml:"screen"`
	Pump      Pump      `yaml:"pump"`
	Positions Positions `yaml:"positions"`
	Telegram  Telegram  `yaml:"telegram"`
	Store     Store     `yaml:"store"`
	Schedule  Schedule  `yaml:"schedule"`
	Universe  Universe  `yaml:"universe"`
	DebugAddr string    `yaml:"debug_addr"`
}

func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	c.ApplyDefaults()
	return c, nil
}

// ApplyDefaults fills every zero field with its documented default so a
// minimal config file (token only) is enough to run.
func (c *Root) ApplyDefaults() {
	if c.Feed.ScannerURL == "" {
		c.Feed.ScannerURL = "https://scanner.tradingview.com/america/scan"
	}
	if c.Feed.ChartURL == "" {
		c.Feed.ChartURL = "https://query1.finance.yahoo.com"
	}
	if c.Feed.Exchange == "" {
		c.Feed.Exchange = "NASDAQ"
	}
	if c.Feed.TimeoutMs == 0 {
		c.Feed.TimeoutMs = 10000
	}
	if c.Feed.RatePerSec == 0 {
		c.Feed.RatePerSec = 4
	}
	if c.Feed.ScanLimit == 0 {
		c.Feed.ScanLimit = 500
	}
	if c.Feed.FanoutWorkers == 0 {
		c.Feed.FanoutWorkers = 8
	}
	if c.Scoring.TimeoutMs == 0 {
		c.Scoring.TimeoutMs = 5000
	}

	if c.Screen.Rules.MaxPrice == 0 {
		c.Screen.Rules.MaxPrice = 5
	}
	if c.Screen.Rules.MinVolume == 0 {
		c.Screen.Rules.MinVolume = 2_000_000
	}
	if c.Screen.Rules.MaxMarketCap == 0 {
		c.Screen.Rules.MaxMarketCap = 3_207_060_000
	}
	if c.Screen.Rules.MaxChange == 0 {
		c.Screen.Rules.MaxChange = 300
	}
	if c.Screen.MinScore == 0 {
		c.Screen.MinScore = 25
	}
	if c.Screen.MinIndVolume == 0 {
		c.Screen.MinIndVolume = 1_000_000
	}

	if c.Pump.MinPriceChange == 0 {
		c.Pump.MinPriceChange = 15
	}
	if c.Pump.VolumeSpike == 0 {
		c.Pump.VolumeSpike = 2.0
	}
	if c.Pump.MaxPrice == 0 {
		c.Pump.MaxPrice = 20
	}
	if c.Pump.MinVolume == 0 {
		c.Pump.MinVolume = 1_000_000
	}
	if c.Pump.MaxRSI == 0 {
		c.Pump.MaxRSI = 70
	}
	if c.Pump.LookbackBars == 0 {
		c.Pump.LookbackBars = 60
	}

	if c.Positions.Target1Pct == 0 {
		c.Positions.Target1Pct = 0.10
	}
	if c.Positions.Target2Pct == 0 {
		c.Positions.Target2Pct = 0.25
	}
	if c.Positions.StopLossPct == 0 {
		c.Positions.StopLossPct = 0.15
	}
	if c.Positions.RetentionDays == 0 {
		c.Positions.RetentionDays = 30
	}

	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = "https://api.telegram.org"
	}
	if c.Telegram.MaxMsgLen == 0 {
		c.Telegram.MaxMsgLen = 4000
	}
	if c.Telegram.Retries == 0 {
		c.Telegram.Retries = 3
	}
	if c.Telegram.RetryDelayMs == 0 {
		c.Telegram.RetryDelayMs = 5000
	}
	if c.Telegram.RatePerSec == 0 {
		c.Telegram.RatePerSec = 20
	}
	if c.Telegram.PollTimeoutS == 0 {
		c.Telegram.PollTimeoutS = 30
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "file"
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "data"
	}
	if c.Store.Redis.Addr == "" {
		c.Store.Redis.Addr = "localhost:6379"
	}

	if c.Schedule.ScanIntervalMin == 0 {
		c.Schedule.ScanIntervalMin = 5
	}
	if c.Schedule.UniverseAt == "" {
		c.Schedule.UniverseAt = "03:00"
	}
	if c.Schedule.ReportAt == "" {
		c.Schedule.ReportAt = "20:00"
	}
	if c.Schedule.CleanupAt == "" {
		c.Schedule.CleanupAt = "00:05"
	}

	if c.Universe.DirectoryURL == "" {
		c.Universe.DirectoryURL = "https://api.nasdaq.com/api/screener/stocks"
	}
	if c.Universe.CSVPath == "" {
		c.Universe.CSVPath = "data/symbols.csv"
	}
	if c.Universe.MaxSymbols == 0 {
		c.Universe.MaxSymbols = 200
	}

	if c.DebugAddr == "" {
		c.DebugAddr = "localhost:8099"
	}
}
