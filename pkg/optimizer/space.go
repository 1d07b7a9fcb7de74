package optimizer

import (
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/perfect-swing-bot/pkg/strategy"
)

// Dimension is one named parameter with its discrete candidate values
type Dimension struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Space is a parameter grid. Dimensions not listed keep the base value.
type Space struct {
	Dimensions []Dimension `json:"dimensions"`
}

// DefaultSpace is the full grid searched by the optimize command
func DefaultSpace() Space {
	return Space{Dimensions: []Dimension{
		{Name: strategy.ParamATRStopMult, Values: []float64{1.0, 1.5, 2.0, 2.5, 3.0}},
		{Name: strategy.ParamATRTargetMult, Values: []float64{2.0, 3.0, 4.0, 5.0, 6.0}},
		{Name: strategy.ParamMinTechScore, Values: []float64{3, 4, 5, 6, 7}},
		{Name: strategy.ParamMaxHoldDays, Values: []float64{3, 5, 7, 10, 14}},
	}}
}

// Validate rejects empty, duplicate, unknown, or out-of-bounds dimensions
func (s Space) Validate() error {
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("parameter space has no dimensions: %w", strategy.ErrInvalidParameter)
	}
	seen := make(map[string]bool)
	for _, d := range s.Dimensions {
		bounds, ok := strategy.Bounds[d.Name]
		if !ok {
			return fmt.Errorf("unknown dimension %q: %w", d.Name, strategy.ErrInvalidParameter)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate dimension %q: %w", d.Name, strategy.ErrInvalidParameter)
		}
		seen[d.Name] = true
		if len(d.Values) == 0 {
			return fmt.Errorf("dimension %q has no values: %w", d.Name, strategy.ErrInvalidParameter)
		}
		for _, v := range d.Values {
			if math.IsNaN(v) || !bounds.Contains(v) {
				return fmt.Errorf("%s value %v outside [%v, %v]: %w", d.Name, v, bounds.Min, bounds.Max, strategy.ErrInvalidParameter)
			}
		}
	}
	return nil
}

// Size is the number of raw grid points before filtering
func (s Space) Size() int {
	n := 1
	for _, d := range s.Dimensions {
		n *= len(d.Values)
	}
	return n
}

// Candidates expands the Cartesian product over base, first dimension
// outermost. Combinations that fail Parameters.Validate (e.g. a target
// not above the stop) are dropped, and duplicates collapse to one.
func (s Space) Candidates(base strategy.Parameters) ([]strategy.Parameters, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	combos := []strategy.Parameters{base}
	for _, d := range s.Dimensions {
		dim := d
		combos = lo.FlatMap(combos, func(p strategy.Parameters, _ int) []strategy.Parameters {
			return lo.Map(dim.Values, func(v float64, _ int) strategy.Parameters {
				next, _ := p.With(dim.Name, v)
				return next
			})
		})
	}

	valid := lo.Filter(combos, func(p strategy.Parameters, _ int) bool {
		return p.Validate() == nil
	})
	return lo.UniqBy(valid, func(p strategy.Parameters) string { return p.Key() }), nil
}

// Sample is the quick mode: every k-th candidate of the same generator so
// that at most n remain. n <= 0 returns the full grid.
func (s Space) Sample(base strategy.Parameters, n int) ([]strategy.Parameters, error) {
	all, err := s.Candidates(base)
	if err != nil {
		return nil, err
	}
	if n <= 0 || n >= len(all) {
		return all, nil
	}
	k := int(math.Ceil(float64(len(all)) / float64(n)))
	return lo.Filter(all, func(_ strategy.Parameters, i int) bool {
		return i%k == 0
	}), nil
}

// Neighborhood is a bounded grid around current, used by the tuning cycle
// so one cycle cannot jump far from the live parameters.
func Neighborhood(current strategy.Parameters) Space {
	around := func(name string, center, step float64, n int) Dimension {
		b := strategy.Bounds[name]
		values := make([]float64, 0, 2*n+1)
		for i := -n; i <= n; i++ {
			v := b.Clamp(center + float64(i)*step)
			values = append(values, math.Round(v*100)/100)
		}
		return Dimension{Name: name, Values: lo.Uniq(values)}
	}

	return Space{Dimensions: []Dimension{
		around(strategy.ParamATRStopMult, current.ATRStopMultiplier, 0.25, 2),
		around(strategy.ParamATRTargetMult, current.ATRTargetMultiplier, 0.5, 2),
		around(strategy.ParamMinTechScore, current.MinTechnicalScore, 0.5, 2),
		around(strategy.ParamMaxHoldDays, float64(current.MaxHoldDays), 1, 2),
	}}
}
