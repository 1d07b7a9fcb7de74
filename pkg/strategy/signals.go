package strategy

import (
	"github.com/perfect-swing-bot/pkg/feed"
)

// Signal is one of a closed set of named entry conditions
type Signal string

const (
	SignalGoldenCross             Signal = "golden_cross"
	SignalDeadCross               Signal = "dead_cross"
	SignalMAAlignment             Signal = "ma_alignment"
	SignalRSIZone                 Signal = "rsi_zone"
	SignalRSIOverbought           Signal = "rsi_overbought"
	SignalMACDBullishCross        Signal = "macd_bullish_cross"
	SignalMACDBearishCross        Signal = "macd_bearish_cross"
	SignalMACDHistogramPositive   Signal = "macd_histogram_positive"
	SignalBollingerRebound        Signal = "bollinger_rebound"
	SignalPriceVolumeConfirmation Signal = "price_volume_confirmation"
	SignalVolumeSurge             Signal = "volume_surge"
	SignalStrongTrend             Signal = "strong_trend"
	SignalMA5DeviationOK          Signal = "ma5_deviation_ok"
)

// Detection thresholds
const (
	RSIZoneLow         = 30.0
	RSIZoneHigh        = 50.0
	RSIOverbought      = 70.0
	VolumeSurgeRatio   = 1.5
	StrongTrendADX     = 25.0
	MinMA5DeviationPct = -3.0
	MaxMA5DeviationPct = 5.0
	MaxScore           = 10.0
)

// signalDef binds a signal to its base points and detector
type signalDef struct {
	signal Signal
	base   float64
	detect func(today, yesterday feed.HistoryPoint) bool
}

// signalDefs is the full signal table in evaluation order
var signalDefs = []signalDef{
	{SignalGoldenCross, 2.5, func(t, y feed.HistoryPoint) bool {
		return y.Snapshot.MA5 <= y.Snapshot.MA20 && t.Snapshot.MA5 > t.Snapshot.MA20
	}},
	{SignalDeadCross, -1.5, func(t, y feed.HistoryPoint) bool {
		return y.Snapshot.MA5 >= y.Snapshot.MA20 && t.Snapshot.MA5 < t.Snapshot.MA20
	}},
	{SignalMAAlignment, 1.5, func(t, _ feed.HistoryPoint) bool {
		s := t.Snapshot
		return s.MA5 > s.MA10 && s.MA10 > s.MA20
	}},
	{SignalRSIZone, 1.2, func(t, _ feed.HistoryPoint) bool {
		return t.Snapshot.RSI > RSIZoneLow && t.Snapshot.RSI < RSIZoneHigh
	}},
	{SignalRSIOverbought, 0, func(t, _ feed.HistoryPoint) bool {
		return t.Snapshot.RSI > RSIOverbought
	}},
	{SignalMACDBullishCross, 1.8, func(t, y feed.HistoryPoint) bool {
		return y.Snapshot.MACD <= y.Snapshot.MACDSignal && t.Snapshot.MACD > t.Snapshot.MACDSignal
	}},
	{SignalMACDBearishCross, -1.0, func(t, y feed.HistoryPoint) bool {
		return y.Snapshot.MACD >= y.Snapshot.MACDSignal && t.Snapshot.MACD < t.Snapshot.MACDSignal
	}},
	{SignalMACDHistogramPositive, 0.5, func(t, _ feed.HistoryPoint) bool {
		return t.Snapshot.MACDHist > 0
	}},
	{SignalBollingerRebound, 1.0, func(t, y feed.HistoryPoint) bool {
		return y.Bar.Close <= y.Snapshot.BBLower && t.Bar.Close > t.Snapshot.BBLower
	}},
	{SignalPriceVolumeConfirmation, 2.0, func(t, y feed.HistoryPoint) bool {
		return t.Bar.Close > y.Bar.Close && volumeSurge(t)
	}},
	// Scored only without price confirmation; the evaluator enforces that.
	{SignalVolumeSurge, 1.0, func(t, _ feed.HistoryPoint) bool {
		return volumeSurge(t)
	}},
	{SignalStrongTrend, 0.8, func(t, _ feed.HistoryPoint) bool {
		return t.Snapshot.ADX > StrongTrendADX
	}},
	{SignalMA5DeviationOK, 0.5, func(t, _ feed.HistoryPoint) bool {
		ma5 := t.Snapshot.MA5
		if ma5 <= 0 {
			return false
		}
		dev := (t.Bar.Close - ma5) / ma5 * 100
		return dev > MinMA5DeviationPct && dev < MaxMA5DeviationPct
	}},
}

func volumeSurge(p feed.HistoryPoint) bool {
	return p.Snapshot.VolumeRatio >= VolumeSurgeRatio
}

// AllSignals returns every signal in evaluation order
func AllSignals() []Signal {
	out := make([]Signal, len(signalDefs))
	for i, d := range signalDefs {
		out[i] = d.signal
	}
	return out
}

// BasePoints returns the documented point value of a signal
func BasePoints(sig Signal) float64 {
	for _, d := range signalDefs {
		if d.signal == sig {
			return d.base
		}
	}
	return 0
}

// IsKnown reports whether sig belongs to the signal set
func IsKnown(sig Signal) bool {
	for _, d := range signalDefs {
		if d.signal == sig {
			return true
		}
	}
	return false
}
