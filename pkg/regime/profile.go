package regime

import (
	"github.com/perfect-swing-bot/pkg/strategy"
)

// Profile is the parameter set and weight tilt that suits a regime.
// The tuning controller nudges proposals toward it; it never replaces them.
type Profile struct {
	Description string
	Parameters  strategy.Parameters
	Weights     strategy.Weights
}

var profiles = map[Regime]Profile{
	Bullish: {
		Description: "uptrend, favour momentum and breakouts",
		Parameters: strategy.Parameters{
			ATRStopMultiplier:   2.0,
			ATRTargetMultiplier: 5.0,
			MinTechnicalScore:   4.0,
			MaxHoldDays:         7,
		},
		Weights: strategy.Weights{
			strategy.SignalGoldenCross:             1.2,
			strategy.SignalMAAlignment:             1.2,
			strategy.SignalMACDBullishCross:        1.1,
			strategy.SignalPriceVolumeConfirmation: 1.2,
			strategy.SignalRSIZone:                 0.8,
			strategy.SignalBollingerRebound:        0.8,
		},
	},
	Bearish: {
		Description: "downtrend, tight stops and rebound setups only",
		Parameters: strategy.Parameters{
			ATRStopMultiplier:   1.5,
			ATRTargetMultiplier: 3.0,
			MinTechnicalScore:   5.5,
			MaxHoldDays:         5,
		},
		Weights: strategy.Weights{
			strategy.SignalGoldenCross:      0.5,
			strategy.SignalMAAlignment:      0.5,
			strategy.SignalMACDBullishCross: 0.8,
			strategy.SignalRSIZone:          1.5,
			strategy.SignalBollingerRebound: 1.5,
		},
	},
	Sideways: {
		Description: "range-bound, mean reversion",
		Parameters: strategy.Parameters{
			ATRStopMultiplier:   1.5,
			ATRTargetMultiplier: 3.0,
			MinTechnicalScore:   4.5,
			MaxHoldDays:         5,
		},
		Weights: strategy.Weights{
			strategy.SignalGoldenCross:      0.7,
			strategy.SignalMAAlignment:      0.6,
			strategy.SignalMACDBullishCross: 0.9,
			strategy.SignalRSIZone:          1.5,
			strategy.SignalBollingerRebound: 1.5,
		},
	},
}

// ProfileFor returns the profile of r, falling back to Sideways
func ProfileFor(r Regime) Profile {
	p, ok := profiles[r]
	if !ok {
		p = profiles[Sideways]
	}
	p.Weights = p.Weights.Clone()
	return p
}
