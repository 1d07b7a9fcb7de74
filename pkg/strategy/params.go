package strategy

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameter marks a parameter or parameter space outside its bounds
var ErrInvalidParameter = errors.New("invalid parameter")

// Parameter names, used by the optimizer's dimensions and by reports
const (
	ParamATRStopMult   = "atr_stop_mult"
	ParamATRTargetMult = "atr_target_mult"
	ParamMinTechScore  = "min_tech_score"
	ParamMaxHoldDays   = "max_hold_days"
)

// ParamNames lists every tunable parameter in canonical order
var ParamNames = []string{ParamATRStopMult, ParamATRTargetMult, ParamMinTechScore, ParamMaxHoldDays}

// Parameters are the tunable entry/exit settings of the strategy
type Parameters struct {
	ATRStopMultiplier   float64 `json:"atr_stop_mult"`
	ATRTargetMultiplier float64 `json:"atr_target_mult"`
	MinTechnicalScore   float64 `json:"min_tech_score"`
	MaxHoldDays         int     `json:"max_hold_days"`
}

// Range is an inclusive [Min, Max] bound
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to the range
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Contains reports whether v lies in the range
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Bounds are the hard limits enforced before simulation and before persisting
var Bounds = map[string]Range{
	ParamATRStopMult:   {1.0, 3.5},
	ParamATRTargetMult: {2.0, 7.0},
	ParamMinTechScore:  {3.0, 7.0},
	ParamMaxHoldDays:   {3, 14},
}

// DefaultParameters returns the untuned starting point
func DefaultParameters() Parameters {
	return Parameters{
		ATRStopMultiplier:   2.0,
		ATRTargetMultiplier: 4.0,
		MinTechnicalScore:   4.0,
		MaxHoldDays:         7,
	}
}

// ConservativeParameters is the profile used when live performance degrades
func ConservativeParameters() Parameters {
	return Parameters{
		ATRStopMultiplier:   1.5,
		ATRTargetMultiplier: 3.0,
		MinTechnicalScore:   5.5,
		MaxHoldDays:         5,
	}
}

// Get returns the named parameter as a float
func (p Parameters) Get(name string) (float64, error) {
	switch name {
	case ParamATRStopMult:
		return p.ATRStopMultiplier, nil
	case ParamATRTargetMult:
		return p.ATRTargetMultiplier, nil
	case ParamMinTechScore:
		return p.MinTechnicalScore, nil
	case ParamMaxHoldDays:
		return float64(p.MaxHoldDays), nil
	}
	return 0, fmt.Errorf("unknown parameter %q: %w", name, ErrInvalidParameter)
}

// With returns a copy of p with the named parameter set to v
func (p Parameters) With(name string, v float64) (Parameters, error) {
	switch name {
	case ParamATRStopMult:
		p.ATRStopMultiplier = v
	case ParamATRTargetMult:
		p.ATRTargetMultiplier = v
	case ParamMinTechScore:
		p.MinTechnicalScore = v
	case ParamMaxHoldDays:
		p.MaxHoldDays = int(math.Round(v))
	default:
		return p, fmt.Errorf("unknown parameter %q: %w", name, ErrInvalidParameter)
	}
	return p, nil
}

// Validate checks every parameter against Bounds
func (p Parameters) Validate() error {
	for _, name := range ParamNames {
		v, _ := p.Get(name)
		b := Bounds[name]
		if math.IsNaN(v) || !b.Contains(v) {
			return fmt.Errorf("%s=%v outside [%v, %v]: %w", name, v, b.Min, b.Max, ErrInvalidParameter)
		}
	}
	if p.ATRTargetMultiplier <= p.ATRStopMultiplier {
		return fmt.Errorf("atr_target_mult %.2f must exceed atr_stop_mult %.2f: %w",
			p.ATRTargetMultiplier, p.ATRStopMultiplier, ErrInvalidParameter)
	}
	return nil
}

// Clamped returns p with every parameter clamped to Bounds
func (p Parameters) Clamped() Parameters {
	out := p
	for _, name := range ParamNames {
		v, _ := p.Get(name)
		out, _ = out.With(name, Bounds[name].Clamp(v))
	}
	return out
}

// Key is a stable textual form, used as the final optimizer tie-break
func (p Parameters) Key() string {
	return fmt.Sprintf("stop=%.4f target=%.4f score=%.4f hold=%03d",
		p.ATRStopMultiplier, p.ATRTargetMultiplier, p.MinTechnicalScore, p.MaxHoldDays)
}
