package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("BACKTEST_TICKERS", " aapl, MSFT ,,nvda")
	t.Setenv("BLACKLIST", "msft")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.TuningDays != 60 {
		t.Errorf("TuningDays = %d, want 60", cfg.TuningDays)
	}
	if cfg.BlendRatio != 0.7 {
		t.Errorf("BlendRatio = %v, want 0.7", cfg.BlendRatio)
	}
	if cfg.MaxWeightDeltaPct != 15 {
		t.Errorf("MaxWeightDeltaPct = %v, want 15", cfg.MaxWeightDeltaPct)
	}
	if cfg.TuningInterval != 168*time.Hour {
		t.Errorf("TuningInterval = %v, want 168h", cfg.TuningInterval)
	}
	if cfg.ReferenceTicker != "SPY" {
		t.Errorf("ReferenceTicker = %q, want SPY", cfg.ReferenceTicker)
	}

	got := cfg.Universe()
	want := []string{"AAPL", "NVDA"}
	if len(got) != len(want) {
		t.Fatalf("Universe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Universe()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadRejectsBadNumbers(t *testing.T) {
	t.Setenv("TUNING_DAYS", "sixty")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric TUNING_DAYS")
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		TuningDays:        60,
		TuningInterval:    time.Hour,
		BlendRatio:        0.7,
		MaxWeightDeltaPct: 15,
		MinTrades:         5,
		OptimizerWorkers:  2,
	}

	tests := []struct {
		name     string
		mutate   func(c *Config)
		needFeed bool
		wantErr  bool
	}{
		{"valid offline", func(c *Config) {}, false, false},
		{"missing api key", func(c *Config) {}, true, true},
		{"api key present", func(c *Config) { c.PolygonAPIKey = "k" }, true, false},
		{"blend out of range", func(c *Config) { c.BlendRatio = 1.5 }, false, true},
		{"short window", func(c *Config) { c.TuningDays = 5 }, false, true},
		{"zero delta", func(c *Config) { c.MaxWeightDeltaPct = 0 }, false, true},
		{"no workers", func(c *Config) { c.OptimizerWorkers = 0 }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate(tt.needFeed)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
