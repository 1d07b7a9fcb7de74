package feed

import (
	"gonum.org/v1/gonum/stat"
)

// Indicator periods
const (
	rsiPeriod    = 14
	atrPeriod    = 14
	adxPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbPeriod     = 20
	bbStdDevs    = 2.0
	volumePeriod = 20
)

// WarmupBars is how many leading bars have Ready == false
const WarmupBars = 2*adxPeriod - 1

// ComputeIndicators derives one snapshot per bar. Bars must be sorted by time.
func ComputeIndicators(bars []Bar) []HistoryPoint {
	points := make([]HistoryPoint, len(bars))

	atr := NewATRCalculator(atrPeriod)
	rsi := NewRSICalculator(rsiPeriod)
	adx := NewADXCalculator(adxPeriod)
	emaFast := newEMA(macdFast)
	emaSlow := newEMA(macdSlow)
	emaSignal := newEMA(macdSignal)

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))

	for i, bar := range bars {
		closes[i] = bar.Close
		volumes[i] = float64(bar.Volume)

		atr.Update(bar)
		rsi.Update(bar.Close)
		adx.Update(bar)

		macd := emaFast.update(bar.Close) - emaSlow.update(bar.Close)
		signal := emaSignal.update(macd)

		snap := IndicatorSnapshot{
			MA5:        trailingMean(closes[:i+1], 5),
			MA10:       trailingMean(closes[:i+1], 10),
			MA20:       trailingMean(closes[:i+1], 20),
			RSI:        rsi.GetRSI(),
			MACD:       macd,
			MACDSignal: signal,
			MACDHist:   macd - signal,
			ATR:        atr.GetATR(),
			ADX:        adx.GetADX(),
			VolumeMA20: trailingMean(volumes[:i+1], volumePeriod),
		}

		window := tail(closes[:i+1], bbPeriod)
		mean, std := stat.MeanStdDev(window, nil)
		if len(window) < 2 {
			std = 0
		}
		snap.BBMiddle = mean
		snap.BBUpper = mean + bbStdDevs*std
		snap.BBLower = mean - bbStdDevs*std

		if snap.VolumeMA20 > 0 {
			snap.VolumeRatio = float64(bar.Volume) / snap.VolumeMA20
		}

		snap.Ready = i >= WarmupBars && atr.IsReady() && rsi.IsReady() && adx.IsReady()

		points[i] = HistoryPoint{Bar: bar, Snapshot: snap}
	}

	return points
}

// trailingMean averages the last n values (fewer during warm-up)
func trailingMean(values []float64, n int) float64 {
	w := tail(values, n)
	if len(w) == 0 {
		return 0
	}
	return stat.Mean(w, nil)
}

func tail(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// ema is an exponential moving average seeded with the first value
type ema struct {
	alpha   float64
	value   float64
	started bool
}

func newEMA(period int) *ema {
	return &ema{alpha: 2.0 / float64(period+1)}
}

func (e *ema) update(v float64) float64 {
	if !e.started {
		e.value = v
		e.started = true
		return v
	}
	e.value = e.alpha*v + (1-e.alpha)*e.value
	return e.value
}
