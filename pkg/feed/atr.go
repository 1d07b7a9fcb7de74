package feed

import (
	"math"
)

// ATRCalculator calculates Average True Range with Wilder smoothing
type ATRCalculator struct {
	period        int
	count         int
	sum           float64
	atr           float64
	previousClose float64
}

// NewATRCalculator creates a new ATR calculator with specified period
func NewATRCalculator(period int) *ATRCalculator {
	return &ATRCalculator{period: period}
}

// Update adds a new bar and updates ATR
func (a *ATRCalculator) Update(bar Bar) {
	tr := trueRange(bar, a.previousClose, a.count > 0)
	a.count++
	a.previousClose = bar.Close

	if a.count <= a.period {
		// Still accumulating, use simple average
		a.sum += tr
		a.atr = a.sum / float64(a.count)
		return
	}

	// Wilder's smoothing: ATR = (Previous ATR * (Period - 1) + Current TR) / Period
	a.atr = ((a.atr * float64(a.period-1)) + tr) / float64(a.period)
}

// GetATR returns the current ATR value
func (a *ATRCalculator) GetATR() float64 {
	return a.atr
}

// IsReady returns true if ATR has enough data to be reliable
func (a *ATRCalculator) IsReady() bool {
	return a.count >= a.period
}

// trueRange is max(H-L, |H-prevClose|, |L-prevClose|); the first bar uses H-L
func trueRange(bar Bar, previousClose float64, hasPrevious bool) float64 {
	if !hasPrevious {
		return bar.High - bar.Low
	}
	tr1 := bar.High - bar.Low
	tr2 := math.Abs(bar.High - previousClose)
	tr3 := math.Abs(bar.Low - previousClose)
	return math.Max(tr1, math.Max(tr2, tr3))
}

// ADXCalculator calculates the Average Directional Index
type ADXCalculator struct {
	period int
	count  int
	prev   Bar

	smoothTR      float64
	smoothPlusDM  float64
	smoothMinusDM float64

	dxCount int
	dxSum   float64
	adx     float64
}

// NewADXCalculator creates a new ADX calculator with specified period
func NewADXCalculator(period int) *ADXCalculator {
	return &ADXCalculator{period: period}
}

// Update adds a new bar and updates ADX
func (a *ADXCalculator) Update(bar Bar) {
	if a.count == 0 {
		a.prev = bar
		a.count++
		return
	}

	upMove := bar.High - a.prev.High
	downMove := a.prev.Low - bar.Low
	plusDM, minusDM := 0.0, 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minusDM = downMove
	}
	tr := trueRange(bar, a.prev.Close, true)
	a.prev = bar
	a.count++

	p := float64(a.period)
	if a.count <= a.period+1 {
		// First period: plain sums
		a.smoothTR += tr
		a.smoothPlusDM += plusDM
		a.smoothMinusDM += minusDM
		if a.count < a.period+1 {
			return
		}
	} else {
		a.smoothTR = a.smoothTR - a.smoothTR/p + tr
		a.smoothPlusDM = a.smoothPlusDM - a.smoothPlusDM/p + plusDM
		a.smoothMinusDM = a.smoothMinusDM - a.smoothMinusDM/p + minusDM
	}

	dx := 0.0
	if a.smoothTR > 0 {
		plusDI := 100 * a.smoothPlusDM / a.smoothTR
		minusDI := 100 * a.smoothMinusDM / a.smoothTR
		if sum := plusDI + minusDI; sum > 0 {
			dx = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}

	a.dxCount++
	if a.dxCount <= a.period {
		a.dxSum += dx
		a.adx = a.dxSum / float64(a.dxCount)
		return
	}
	a.adx = (a.adx*(p-1) + dx) / p
}

// GetADX returns the current ADX value
func (a *ADXCalculator) GetADX() float64 {
	return a.adx
}

// IsReady returns true once a full period of DX values has been averaged
func (a *ADXCalculator) IsReady() bool {
	return a.dxCount >= a.period
}
