package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/perfect-swing-bot/pkg/strategy"
)

// DefaultCap is how many entries a FileRecorder keeps
const DefaultCap = 100

// Entry records one tuning cycle, accepted or not
type Entry struct {
	CycleID            string                      `json:"cycle_id"`
	RanAt              time.Time                   `json:"ran_at"`
	Days               int                         `json:"days"`
	DryRun             bool                        `json:"dry_run"`
	Accepted           bool                        `json:"accepted"`
	Reason             string                      `json:"reason"`
	Regime             string                      `json:"regime"`
	RegimeConfidence   float64                     `json:"regime_confidence"`
	BaselineTrades     int                         `json:"baseline_trades"`
	BaselineObjective  float64                     `json:"baseline_objective"`
	BestObjective      float64                     `json:"best_objective"`
	ImprovementPct     float64                     `json:"improvement_pct"`
	OldParameters      strategy.Parameters         `json:"old_parameters"`
	NewParameters      strategy.Parameters         `json:"new_parameters"` // Equals OldParameters unless accepted
	ProposedParameters strategy.Parameters         `json:"proposed_parameters"`
	WeightChanges      map[strategy.Signal]float64 `json:"weight_changes,omitempty"` // Signal -> new minus old
	Warnings           []string                    `json:"warnings,omitempty"`
}

// Recorder appends and lists tuning history
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// FileRecorder keeps the most recent entries in a JSON array file
type FileRecorder struct {
	path string
	cap  int
	mu   sync.Mutex
}

// NewFileRecorder creates a recorder at path keeping DefaultCap entries
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path, cap: DefaultCap}
}

// Record appends e, dropping the oldest entries past the cap
func (r *FileRecorder) Record(ctx context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if len(entries) > r.cap {
		entries = entries[len(entries)-r.cap:]
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create history dir: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (r *FileRecorder) Recent(ctx context.Context, n int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (r *FileRecorder) load() ([]Entry, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse history %s: %w", r.path, err)
	}
	return entries, nil
}
