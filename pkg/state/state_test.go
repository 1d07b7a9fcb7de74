package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/perfect-swing-bot/pkg/strategy"
)

func TestLoadMissingReturnsDefault(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	s, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Version != 0 || s.Parameters != strategy.DefaultParameters() {
		t.Errorf("state = %+v, want default", s)
	}
	if len(s.Weights) != len(strategy.AllSignals()) {
		t.Errorf("weights = %d, want %d", len(s.Weights), len(strategy.AllSignals()))
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "nested", "state.json"))

	s := Default()
	s.Version = 3
	s.Parameters.MaxHoldDays = 9
	s.Weights[strategy.SignalGoldenCross] = 1.35
	s.LastUpdated = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.RegimeAtTuning = "bullish"

	if err := fs.Save(context.Background(), s); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := fs.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Version != 3 || got.Parameters.MaxHoldDays != 9 || got.Weights.Get(strategy.SignalGoldenCross) != 1.35 {
		t.Errorf("loaded = %+v", got)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "nested"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestSaveRejectsOutOfBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	fs := NewFileStore(path)

	s := Default()
	s.Weights[strategy.SignalRSIZone] = 5
	if err := fs.Save(context.Background(), s); !errors.Is(err, strategy.ErrInvalidParameter) {
		t.Errorf("Save() = %v, want ErrInvalidParameter", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid state was written")
	}
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// The parent "directory" is a regular file
	fs := NewFileStore(filepath.Join(blocker, "state.json"))

	err := fs.Save(context.Background(), Default())
	if !errors.Is(err, ErrPersistence) {
		t.Errorf("Save() = %v, want ErrPersistence", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileStore(path).Load(context.Background()); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFillsNewSignals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	raw := `{"version":2,"weights":{"golden_cross":1.4},"parameters":{"atr_stop_mult":2,"atr_target_mult":4,"min_tech_score":4,"max_hold_days":7}}`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.Weights.Get(strategy.SignalGoldenCross) != 1.4 {
		t.Errorf("golden_cross = %v, want 1.4", s.Weights.Get(strategy.SignalGoldenCross))
	}
	if len(s.Weights) != len(strategy.AllSignals()) {
		t.Errorf("weights = %d, want every signal", len(s.Weights))
	}
}
