package tuning

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/strategy"
)

const (
	learningRate          = 0.15
	minSignalSamples      = 5
	fullConfidenceSamples = 30
	regimeNudge           = 0.2 // Share of the gap to the regime profile weights closed at full confidence
	regimeParamPull       = 0.4 // Same, for the regime preset parameters
	weightPlaces          = 3
	paramPlaces           = 2
)

// signalPerformance scores a signal's trades in roughly [-1.5, 1.5],
// damped when there are few samples.
func signalPerformance(g backtest.GroupStat) float64 {
	perf := (g.WinRate - 0.5) / 0.5
	switch {
	case g.AvgReturnPct > 1:
		perf += 0.5
	case g.AvgReturnPct > 0:
		perf += 0.2
	case g.AvgReturnPct < -1:
		perf -= 0.5
	case g.AvgReturnPct < 0:
		perf -= 0.2
	}
	return perf * math.Min(1, float64(g.Count)/fullConfidenceSamples)
}

// adjustWeights moves each well-sampled signal's weight by its
// performance. maxDelta is a fraction of the current weight.
func adjustWeights(current strategy.Weights, stats map[strategy.Signal]backtest.GroupStat, maxDelta float64) strategy.Weights {
	out := current.Clone()
	for sig, g := range stats {
		if g.Count < minSignalSamples || !strategy.IsKnown(sig) {
			continue
		}
		delta := math.Max(-maxDelta, math.Min(maxDelta, signalPerformance(g)*learningRate))
		out[sig] = current.Get(sig) * (1 + delta)
	}
	return out
}

// nudgeWeights pulls w toward the regime profile in proportion to confidence
func nudgeWeights(w, profile strategy.Weights, confidence float64) strategy.Weights {
	out := w.Clone()
	for sig, target := range profile {
		cur := w.Get(sig)
		out[sig] = cur + (target-cur)*regimeNudge*confidence
	}
	return out
}

// blendWeights mixes ratio of proposed with the rest of old, then rounds
// and re-bounds every weight so it moves at most maxDelta (a fraction)
// from old and stays inside the hard weight limits.
func blendWeights(old, proposed strategy.Weights, ratio, maxDelta float64) strategy.Weights {
	out := old.Clone()
	for sig, p := range proposed {
		o := old.Get(sig)
		out[sig] = boundWeight(o, ratio*p+(1-ratio)*o, maxDelta)
	}
	return out
}

func boundWeight(old, proposed, maxDelta float64) float64 {
	o := decimal.NewFromFloat(old)
	limit := o.Mul(decimal.NewFromFloat(maxDelta)).Truncate(weightPlaces)

	v := decimal.NewFromFloat(proposed).Round(weightPlaces)
	v = decimal.Max(o.Sub(limit), decimal.Min(o.Add(limit), v))
	v = decimal.Max(decimal.NewFromFloat(strategy.MinWeight), decimal.Min(decimal.NewFromFloat(strategy.MaxWeight), v))
	return v.InexactFloat64()
}

// blendParameters mixes ratio of proposed with the rest of old, rounds to
// cents, and clamps to the parameter bounds.
func blendParameters(old, proposed strategy.Parameters, ratio float64) strategy.Parameters {
	out := old
	for _, name := range strategy.ParamNames {
		o, _ := old.Get(name)
		p, _ := proposed.Get(name)
		v := decimal.NewFromFloat(ratio*p + (1-ratio)*o).Round(paramPlaces).InexactFloat64()
		out, _ = out.With(name, v)
	}
	return out.Clamped()
}

// safetyWarnings flags a degraded baseline. Fewer than minTrades trades
// is not enough evidence either way.
func safetyWarnings(s backtest.Stats, th SafetyThresholds) []string {
	if s.TotalTrades < th.MinTrades {
		return nil
	}
	var out []string
	if s.WinRate < th.MinWinRate {
		out = append(out, fmt.Sprintf("win rate %.1f%% below %.1f%%", s.WinRate*100, th.MinWinRate*100))
	}
	if s.ProfitFactor < th.MinProfitFactor {
		out = append(out, fmt.Sprintf("profit factor %.2f below %.2f", s.ProfitFactor, th.MinProfitFactor))
	}
	if s.MaxConsecutiveLosses >= th.MaxConsecutiveLosses {
		out = append(out, fmt.Sprintf("%d consecutive losses", s.MaxConsecutiveLosses))
	}
	return out
}

// improvementPct is the relative gain of best over baseline. A zero
// baseline is treated as 0.001 so the ratio stays finite.
func improvementPct(baseline, best float64) float64 {
	return (best - baseline) / math.Max(math.Abs(baseline), 0.001) * 100
}
