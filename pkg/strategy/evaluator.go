package strategy

import (
	"math"

	"github.com/perfect-swing-bot/pkg/feed"
)

// Evaluate scores today's bar against yesterday's. It is pure: the same
// inputs always produce the same result.
func Evaluate(today, yesterday feed.HistoryPoint, w Weights) ScoreResult {
	res := ScoreResult{
		Contributions: make(map[Signal]float64),
	}

	triggered := make(map[Signal]bool, len(signalDefs))
	for _, d := range signalDefs {
		if d.detect(today, yesterday) {
			triggered[d.signal] = true
		}
	}

	// Plain volume surge only counts when price did not confirm it
	if triggered[SignalPriceVolumeConfirmation] {
		delete(triggered, SignalVolumeSurge)
	}

	res.DeadCross = triggered[SignalDeadCross]
	res.Overbought = triggered[SignalRSIOverbought]

	total := 0.0
	for _, d := range signalDefs {
		if !triggered[d.signal] {
			continue
		}
		res.Signals = append(res.Signals, d.signal)

		pts := d.base * w.Get(d.signal)
		// A dead cross suppresses all bullish points
		if res.DeadCross && pts > 0 {
			pts = 0
		}
		if pts != 0 {
			res.Contributions[d.signal] = pts
		}
		total += pts
	}

	res.Score = math.Max(0, math.Min(MaxScore, total))
	return res
}
