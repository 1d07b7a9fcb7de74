package state

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

// ErrPersistence wraps any failure to write strategy state
var ErrPersistence = errors.New("persistence failed")

// StrategyState is the live weights and parameters the strategy trades with
type StrategyState struct {
	Version           int                 `json:"version"`
	Weights           strategy.Weights    `json:"weights"`
	Parameters        strategy.Parameters `json:"parameters"`
	LastUpdated       time.Time           `json:"last_updated"`
	RegimeAtTuning    string              `json:"regime_at_tuning,omitempty"`
	LastCycleID       string              `json:"last_cycle_id,omitempty"`
	LastCycleAccepted bool                `json:"last_cycle_accepted"`
}

// Default is the untuned state used before the first accepted cycle
func Default() StrategyState {
	return StrategyState{
		Weights:    strategy.DefaultWeights(),
		Parameters: strategy.DefaultParameters(),
	}
}

// Validate checks the weights and parameters against their bounds
func (s StrategyState) Validate() error {
	if err := s.Parameters.Validate(); err != nil {
		return err
	}
	return s.Weights.Validate()
}

// Clone returns a copy that shares no maps with s
func (s StrategyState) Clone() StrategyState {
	s.Weights = s.Weights.Clone()
	return s
}

// Store loads and saves strategy state
type Store interface {
	Load(ctx context.Context) (StrategyState, error)
	Save(ctx context.Context, s StrategyState) error
}

// FileStore keeps state in a single JSON file
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file
func (fs *FileStore) Path() string {
	return fs.path
}

// Load reads the state file. A missing file yields Default().
func (fs *FileStore) Load(ctx context.Context) (StrategyState, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return StrategyState{}, fmt.Errorf("failed to read state %s: %w", fs.path, err)
	}

	s := Default()
	if err := json.Unmarshal(data, &s); err != nil {
		return StrategyState{}, fmt.Errorf("failed to parse state %s: %w", fs.path, err)
	}
	// Signals added since the file was written trade at the default weight
	for sig, w := range strategy.DefaultWeights() {
		if _, ok := s.Weights[sig]; !ok {
			s.Weights[sig] = w
		}
	}
	if err := s.Validate(); err != nil {
		return StrategyState{}, fmt.Errorf("state %s: %w", fs.path, err)
	}
	return s, nil
}

// Save replaces the state file atomically: a temp file in the same
// directory is written, synced, and renamed over the old one.
func (fs *FileStore) Save(ctx context.Context, s StrategyState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("refusing to save state: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %v: %w", err, ErrPersistence)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %v: %w", err, ErrPersistence)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(fs.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state: %v: %w", err, ErrPersistence)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp state: %v: %w", err, ErrPersistence)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp state: %v: %w", err, ErrPersistence)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state: %v: %w", err, ErrPersistence)
	}
	if err := os.Rename(tmpName, fs.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state: %v: %w", err, ErrPersistence)
	}
	return nil
}
