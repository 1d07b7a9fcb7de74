package feed

// RSICalculator calculates Relative Strength Index
type RSICalculator struct {
	period        int
	count         int
	sumGain       float64
	sumLoss       float64
	avgGain       float64
	avgLoss       float64
	previousClose float64
	started       bool
}

// NewRSICalculator creates a new RSI calculator with specified period
func NewRSICalculator(period int) *RSICalculator {
	return &RSICalculator{period: period}
}

// Update adds a new close and updates RSI
func (r *RSICalculator) Update(close float64) {
	if !r.started {
		r.previousClose = close
		r.started = true
		return
	}

	change := close - r.previousClose
	r.previousClose = close

	var gain, loss float64
	if change > 0 {
		gain = change
	} else {
		loss = -change // Store as positive value
	}
	r.count++

	if r.count <= r.period {
		// Still accumulating, use simple average
		r.sumGain += gain
		r.sumLoss += loss
		r.avgGain = r.sumGain / float64(r.count)
		r.avgLoss = r.sumLoss / float64(r.count)
		return
	}

	// Wilder's smoothing
	r.avgGain = ((r.avgGain * float64(r.period-1)) + gain) / float64(r.period)
	r.avgLoss = ((r.avgLoss * float64(r.period-1)) + loss) / float64(r.period)
}

// GetRSI returns the current RSI value (0-100)
func (r *RSICalculator) GetRSI() float64 {
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50.0 // Neutral if no change
		}
		return 100.0 // All gains, no losses
	}

	rs := r.avgGain / r.avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// IsReady returns true if RSI has enough data to be reliable
func (r *RSICalculator) IsReady() bool {
	return r.count >= r.period
}
