package strategy

import (
	"fmt"
	"sort"
)

// Weight multiplier bounds
const (
	MinWeight     = 0.3
	MaxWeight     = 2.5
	DefaultWeight = 1.0
)

// Weights maps a signal to a multiplier applied to its base points.
// Missing entries count as DefaultWeight.
type Weights map[Signal]float64

// DefaultWeights returns a multiplier of 1.0 for every signal
func DefaultWeights() Weights {
	w := make(Weights, len(signalDefs))
	for _, d := range signalDefs {
		w[d.signal] = DefaultWeight
	}
	return w
}

// Get returns the multiplier for sig
func (w Weights) Get(sig Signal) float64 {
	if v, ok := w[sig]; ok {
		return v
	}
	return DefaultWeight
}

// Clone returns an independent copy
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Validate rejects unknown signals and out-of-range multipliers
func (w Weights) Validate() error {
	for sig, v := range w {
		if !IsKnown(sig) {
			return fmt.Errorf("unknown signal %q: %w", sig, ErrInvalidParameter)
		}
		if v < MinWeight || v > MaxWeight {
			return fmt.Errorf("weight %s=%.3f outside [%.1f, %.1f]: %w", sig, v, MinWeight, MaxWeight, ErrInvalidParameter)
		}
	}
	return nil
}

// Signals returns the weighted signals sorted by name
func (w Weights) Signals() []Signal {
	out := make([]Signal, 0, len(w))
	for s := range w {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
