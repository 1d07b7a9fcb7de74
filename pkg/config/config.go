package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values
type Config struct {
	// API Keys / endpoints
	PolygonAPIKey    string
	ReportWebhookURL string
	DatabaseURL      string // Optional Postgres DSN for tuning history

	// Universe
	BacktestTickers []string
	Blacklist       []string
	ReferenceTicker string // Index used for regime detection

	// Storage
	CacheDir    string
	StatePath   string
	HistoryPath string

	// Tuning
	TuningDays        int
	TuningInterval    time.Duration
	MinImprovementPct float64 // Required objective improvement over baseline (%)
	BlendRatio        float64 // Share of the proposed value kept when blending (0-1)
	MaxWeightDeltaPct float64 // Per-cycle weight change bound (%)
	MinTrades         int     // Objective trade-count floor
	OptimizerWorkers  int

	LogLevel string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.PolygonAPIKey = getEnv("POLYGON_API_KEY", "")
	cfg.ReportWebhookURL = getEnv("REPORT_WEBHOOK_URL", "")
	cfg.DatabaseURL = getEnv("DATABASE_URL", "")

	if s := getEnv("BACKTEST_TICKERS", ""); s != "" {
		cfg.BacktestTickers = parseCommaList(s)
	}
	if s := getEnv("BLACKLIST", ""); s != "" {
		cfg.Blacklist = parseCommaList(s)
	}
	cfg.ReferenceTicker = strings.ToUpper(getEnv("REFERENCE_TICKER", "SPY"))

	cfg.CacheDir = getEnv("CACHE_DIR", "data/cache")
	cfg.StatePath = getEnv("STATE_PATH", "data/strategy_state.json")
	cfg.HistoryPath = getEnv("HISTORY_PATH", "data/tune_history.json")

	tuningDays, err := strconv.Atoi(getEnv("TUNING_DAYS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid TUNING_DAYS: %v", err)
	}
	cfg.TuningDays = tuningDays

	interval, err := time.ParseDuration(getEnv("TUNING_INTERVAL", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TUNING_INTERVAL: %v", err)
	}
	cfg.TuningInterval = interval

	if cfg.MinImprovementPct, err = strconv.ParseFloat(getEnv("MIN_IMPROVEMENT_PCT", "5.0"), 64); err != nil {
		return nil, fmt.Errorf("invalid MIN_IMPROVEMENT_PCT: %v", err)
	}
	if cfg.BlendRatio, err = strconv.ParseFloat(getEnv("BLEND_RATIO", "0.7"), 64); err != nil {
		return nil, fmt.Errorf("invalid BLEND_RATIO: %v", err)
	}
	if cfg.MaxWeightDeltaPct, err = strconv.ParseFloat(getEnv("MAX_WEIGHT_DELTA_PCT", "15"), 64); err != nil {
		return nil, fmt.Errorf("invalid MAX_WEIGHT_DELTA_PCT: %v", err)
	}
	if cfg.MinTrades, err = strconv.Atoi(getEnv("MIN_TRADES", "5")); err != nil {
		return nil, fmt.Errorf("invalid MIN_TRADES: %v", err)
	}

	workers := runtime.NumCPU()
	if s := getEnv("OPTIMIZER_WORKERS", ""); s != "" {
		if workers, err = strconv.Atoi(s); err != nil {
			return nil, fmt.Errorf("invalid OPTIMIZER_WORKERS: %v", err)
		}
	}
	cfg.OptimizerWorkers = workers

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg, nil
}

// Validate checks that required configuration is present and in range
func (c *Config) Validate(needFeed bool) error {
	if needFeed && c.PolygonAPIKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is required")
	}
	if c.TuningDays < 20 {
		return fmt.Errorf("TUNING_DAYS must be >= 20")
	}
	if c.BlendRatio < 0 || c.BlendRatio > 1 {
		return fmt.Errorf("BLEND_RATIO must be between 0 and 1")
	}
	if c.MaxWeightDeltaPct <= 0 || c.MaxWeightDeltaPct > 100 {
		return fmt.Errorf("MAX_WEIGHT_DELTA_PCT must be in (0, 100]")
	}
	if c.MinImprovementPct < 0 {
		return fmt.Errorf("MIN_IMPROVEMENT_PCT must be >= 0")
	}
	if c.MinTrades < 1 {
		return fmt.Errorf("MIN_TRADES must be >= 1")
	}
	if c.OptimizerWorkers < 1 {
		return fmt.Errorf("OPTIMIZER_WORKERS must be >= 1")
	}
	if c.TuningInterval <= 0 {
		return fmt.Errorf("TUNING_INTERVAL must be > 0")
	}
	return nil
}

// Universe returns the backtest tickers minus the blacklist
func (c *Config) Universe() []string {
	out := make([]string, 0, len(c.BacktestTickers))
	for _, t := range c.BacktestTickers {
		if !c.IsInBlacklist(t) {
			out = append(out, strings.ToUpper(t))
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseCommaList parses a comma-separated list and trims whitespace
func parseCommaList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// IsInBlacklist checks if a ticker is in the blacklist
func (c *Config) IsInBlacklist(ticker string) bool {
	for _, blacklisted := range c.Blacklist {
		if strings.EqualFold(blacklisted, ticker) {
			return true
		}
	}
	return false
}

// GetLocation returns the ET timezone location for market dates
func GetLocation() (*time.Location, error) {
	return time.LoadLocation("America/New_York")
}
