package regime

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/perfect-swing-bot/pkg/feed"
)

// Regime is the market state of the reference index
type Regime string

const (
	Bullish  Regime = "bullish"
	Bearish  Regime = "bearish"
	Sideways Regime = "sideways"
)

// Config holds the classification thresholds
type Config struct {
	Lookback      int     // Trailing bars for return and volatility
	BullThreshold float64 // Trailing return (%) above which the market is bullish
	BearThreshold float64 // Trailing return (%) below which the market is bearish
	MaxVolatility float64 // Annualised volatility (%) above which bullish is withheld
}

// DefaultConfig returns the standard 20-day thresholds
func DefaultConfig() Config {
	return Config{
		Lookback:      20,
		BullThreshold: 5.0,
		BearThreshold: -5.0,
		MaxVolatility: 40.0,
	}
}

// Result is the classification plus the figures behind it
type Result struct {
	Regime         Regime  `json:"regime"`
	Confidence     float64 `json:"confidence"` // 0.3 - 1.0
	TrailingReturn float64 `json:"trailing_return_pct"`
	Volatility     float64 `json:"volatility_pct"` // Annualised
}

// Detect classifies the trailing window of closes (oldest first)
func Detect(closes []float64, cfg Config) (Result, error) {
	if cfg.Lookback < 2 {
		return Result{}, fmt.Errorf("regime lookback %d too short", cfg.Lookback)
	}
	if len(closes) < cfg.Lookback+1 {
		return Result{}, fmt.Errorf("regime needs %d closes, got %d: %w", cfg.Lookback+1, len(closes), feed.ErrInsufficientHistory)
	}

	window := closes[len(closes)-cfg.Lookback-1:]
	if window[0] <= 0 {
		return Result{}, fmt.Errorf("regime window starts at non-positive close %v", window[0])
	}

	returns := make([]float64, 0, cfg.Lookback)
	for i := 1; i < len(window); i++ {
		returns = append(returns, window[i]/window[i-1]-1)
	}

	res := Result{
		TrailingReturn: (window[len(window)-1]/window[0] - 1) * 100,
		Volatility:     stat.StdDev(returns, nil) * math.Sqrt(252) * 100,
	}

	switch {
	case res.TrailingReturn > cfg.BullThreshold && res.Volatility <= cfg.MaxVolatility:
		res.Regime = Bullish
		res.Confidence = confidence(res.TrailingReturn-cfg.BullThreshold, cfg.BullThreshold)
	case res.TrailingReturn < cfg.BearThreshold:
		res.Regime = Bearish
		res.Confidence = confidence(cfg.BearThreshold-res.TrailingReturn, -cfg.BearThreshold)
	default:
		res.Regime = Sideways
		res.Confidence = confidence(cfg.BullThreshold-math.Abs(res.TrailingReturn), cfg.BullThreshold)
	}

	return res, nil
}

// confidence maps a margin past the threshold into [0.3, 1.0]
func confidence(margin, scale float64) float64 {
	if scale <= 0 {
		return 0.3
	}
	c := 0.3 + 0.7*margin/scale
	return math.Max(0.3, math.Min(1.0, c))
}
