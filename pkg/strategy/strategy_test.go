package strategy

import (
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/perfect-swing-bot/pkg/feed"
)

var day0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// crossSeries builds n flat bars at close 100 (high 101, low 99, ATR 2)
// where MA5 crosses above MA20 on bar crossAt.
func crossSeries(n, crossAt int) []feed.HistoryPoint {
	pts := make([]feed.HistoryPoint, n)
	for i := range pts {
		snap := feed.IndicatorSnapshot{
			MA5: 99, MA10: 99.5, MA20: 100,
			RSI:         55,
			ATR:         2,
			ADX:         20,
			VolumeRatio: 1,
			Ready:       true,
		}
		if i >= crossAt {
			snap.MA5, snap.MA10 = 104, 102
		}
		pts[i] = feed.HistoryPoint{
			Bar: feed.Bar{
				Time:  day0.AddDate(0, 0, i),
				Open:  100,
				High:  101,
				Low:   99,
				Close: 100,
			},
			Snapshot: snap,
		}
	}
	return pts
}

func exampleParams() Parameters {
	return Parameters{
		ATRStopMultiplier:   1.5,
		ATRTargetMultiplier: 3.0,
		MinTechnicalScore:   3.0,
		MaxHoldDays:         5,
	}
}

func TestEvaluateDefaultWeightsReproduceBasePoints(t *testing.T) {
	pts := crossSeries(12, 10)
	res := Evaluate(pts[10], pts[9], DefaultWeights())

	if !res.Has(SignalGoldenCross) || !res.Has(SignalMAAlignment) {
		t.Fatalf("signals = %v, want golden_cross and ma_alignment", res.Signals)
	}
	want := BasePoints(SignalGoldenCross) + BasePoints(SignalMAAlignment)
	if math.Abs(res.Score-want) > 1e-9 {
		t.Errorf("Score = %v, want %v", res.Score, want)
	}
}

func TestEvaluateWeightsScaleContribution(t *testing.T) {
	pts := crossSeries(12, 10)
	w := DefaultWeights()
	w[SignalGoldenCross] = 2.0

	res := Evaluate(pts[10], pts[9], w)
	if got := res.Contributions[SignalGoldenCross]; got != 5.0 {
		t.Errorf("golden_cross contribution = %v, want 5.0", got)
	}
	if res.Score != 6.5 {
		t.Errorf("Score = %v, want 6.5", res.Score)
	}
}

func TestEvaluateClampsToMax(t *testing.T) {
	y := feed.HistoryPoint{
		Bar:      feed.Bar{Close: 90},
		Snapshot: feed.IndicatorSnapshot{MA5: 99, MA20: 100, MACD: -1, MACDSignal: 0, BBLower: 95},
	}
	tdy := feed.HistoryPoint{
		Bar: feed.Bar{Close: 101},
		Snapshot: feed.IndicatorSnapshot{
			MA5: 100.5, MA10: 100.2, MA20: 100,
			RSI: 45, MACD: 1, MACDSignal: 0, MACDHist: 1,
			BBLower: 95, ADX: 30, VolumeRatio: 2,
		},
	}
	w := DefaultWeights()
	for sig := range w {
		w[sig] = MaxWeight
	}
	res := Evaluate(tdy, y, w)
	if res.Score != MaxScore {
		t.Errorf("Score = %v, want clamp at %v", res.Score, MaxScore)
	}
	if res.Has(SignalVolumeSurge) {
		t.Error("volume_surge must not score alongside price_volume_confirmation")
	}
	if !res.Has(SignalPriceVolumeConfirmation) {
		t.Error("expected price_volume_confirmation")
	}
}

func TestEvaluateDeadCrossSuppressesBullish(t *testing.T) {
	y := feed.HistoryPoint{Snapshot: feed.IndicatorSnapshot{MA5: 101, MA20: 100}}
	tdy := feed.HistoryPoint{Snapshot: feed.IndicatorSnapshot{MA5: 99, MA20: 100, RSI: 40, ADX: 40}}

	res := Evaluate(tdy, y, DefaultWeights())
	if !res.DeadCross || !res.EntryBlocked() {
		t.Fatal("expected dead cross gate")
	}
	if res.Score != 0 {
		t.Errorf("Score = %v, want 0", res.Score)
	}
	for sig, pts := range res.Contributions {
		if pts > 0 {
			t.Errorf("bullish contribution %s=%v survived dead cross", sig, pts)
		}
	}
}

// quietPair is a yesterday/today pair on which no signal fires. The
// moving averages sit 10% above the close, outside the MA5 band.
func quietPair() (today, yesterday feed.HistoryPoint) {
	snap := feed.IndicatorSnapshot{MA5: 110, MA10: 110, MA20: 110, RSI: 60, ADX: 20, VolumeRatio: 1}
	yesterday = feed.HistoryPoint{Bar: feed.Bar{Close: 100}, Snapshot: snap}
	today = feed.HistoryPoint{Bar: feed.Bar{Close: 100}, Snapshot: snap}
	return today, yesterday
}

func TestEvaluateSignals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(td, yd *feed.HistoryPoint)
		want   []Signal
		score  float64
	}{
		{"quiet", func(td, yd *feed.HistoryPoint) {}, nil, 0},

		{"macd cross from below", func(td, yd *feed.HistoryPoint) {
			yd.Snapshot.MACD, td.Snapshot.MACD = -0.1, 0.1
		}, []Signal{SignalMACDBullishCross}, 1.8},
		{"macd cross from equal", func(td, yd *feed.HistoryPoint) {
			td.Snapshot.MACD = 0.1
		}, []Signal{SignalMACDBullishCross}, 1.8},
		{"macd already above", func(td, yd *feed.HistoryPoint) {
			yd.Snapshot.MACD, td.Snapshot.MACD = 0.1, 0.2
		}, nil, 0},
		{"macd bearish cross", func(td, yd *feed.HistoryPoint) {
			yd.Snapshot.MACD, td.Snapshot.MACD = 0.1, -0.1
		}, []Signal{SignalMACDBearishCross}, 0},
		{"macd histogram positive", func(td, yd *feed.HistoryPoint) {
			td.Snapshot.MACDHist = 0.01
		}, []Signal{SignalMACDHistogramPositive}, 0.5},

		{"bollinger touch then recover", func(td, yd *feed.HistoryPoint) {
			yd.Bar.Close, yd.Snapshot.BBLower = 94, 95
			td.Snapshot.BBLower = 95
		}, []Signal{SignalBollingerRebound}, 1.0},
		{"bollinger close on band then recover", func(td, yd *feed.HistoryPoint) {
			yd.Bar.Close, yd.Snapshot.BBLower = 95, 95
			td.Snapshot.BBLower = 95
		}, []Signal{SignalBollingerRebound}, 1.0},
		{"bollinger no touch", func(td, yd *feed.HistoryPoint) {
			yd.Bar.Close, yd.Snapshot.BBLower = 96, 95
			td.Snapshot.BBLower = 95
		}, nil, 0},
		{"bollinger still below", func(td, yd *feed.HistoryPoint) {
			yd.Bar.Close, yd.Snapshot.BBLower = 94, 95
			td.Bar.Close, td.Snapshot.BBLower = 94.5, 95
		}, nil, 0},

		{"rsi at 30", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 30 }, nil, 0},
		{"rsi just above 30", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 30.1 }, []Signal{SignalRSIZone}, 1.2},
		{"rsi just below 50", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 49.9 }, []Signal{SignalRSIZone}, 1.2},
		{"rsi at 50", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 50 }, nil, 0},
		{"rsi at 70", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 70 }, nil, 0},
		{"rsi overbought", func(td, yd *feed.HistoryPoint) { td.Snapshot.RSI = 70.1 }, []Signal{SignalRSIOverbought}, 0},

		{"adx at 25", func(td, yd *feed.HistoryPoint) { td.Snapshot.ADX = 25 }, nil, 0},
		{"adx above 25", func(td, yd *feed.HistoryPoint) { td.Snapshot.ADX = 25.1 }, []Signal{SignalStrongTrend}, 0.8},

		{"volume ratio below 1.5", func(td, yd *feed.HistoryPoint) { td.Snapshot.VolumeRatio = 1.49 }, nil, 0},
		{"volume ratio at 1.5", func(td, yd *feed.HistoryPoint) { td.Snapshot.VolumeRatio = 1.5 }, []Signal{SignalVolumeSurge}, 1.0},
		{"volume surge with rising close", func(td, yd *feed.HistoryPoint) {
			td.Snapshot.VolumeRatio = 1.5
			td.Bar.Close = 101
		}, []Signal{SignalPriceVolumeConfirmation}, 2.0},

		// Close against MA5 110
		{"ma5 deviation just inside -3%", func(td, yd *feed.HistoryPoint) { td.Bar.Close = 106.8 }, []Signal{SignalMA5DeviationOK}, 0.5},
		{"ma5 deviation below -3%", func(td, yd *feed.HistoryPoint) { td.Bar.Close = 106.6 }, nil, 0},
		{"ma5 deviation just inside 5%", func(td, yd *feed.HistoryPoint) { td.Bar.Close = 115.4 }, []Signal{SignalMA5DeviationOK}, 0.5},
		{"ma5 deviation above 5%", func(td, yd *feed.HistoryPoint) { td.Bar.Close = 115.6 }, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			today, yesterday := quietPair()
			tt.mutate(&today, &yesterday)

			res := Evaluate(today, yesterday, DefaultWeights())
			if !slices.Equal(res.Signals, tt.want) {
				t.Errorf("Signals = %v, want %v", res.Signals, tt.want)
			}
			if math.Abs(res.Score-tt.score) > 1e-9 {
				t.Errorf("Score = %v, want %v", res.Score, tt.score)
			}
		})
	}
}

func TestEvaluateBearishCrossSubtracts(t *testing.T) {
	today, yesterday := quietPair()
	yesterday.Snapshot.MACD, today.Snapshot.MACD = 0.1, -0.1
	today.Snapshot.RSI = 40
	today.Snapshot.ADX = 30

	res := Evaluate(today, yesterday, DefaultWeights())
	if got := res.Contributions[SignalMACDBearishCross]; got != -1.0 {
		t.Errorf("macd_bearish_cross contribution = %v, want -1.0", got)
	}
	// rsi_zone 1.2 + strong_trend 0.8 - 1.0
	if math.Abs(res.Score-1.0) > 1e-9 {
		t.Errorf("Score = %v, want 1.0", res.Score)
	}
	if res.EntryBlocked() {
		t.Error("a bearish MACD cross only subtracts, it does not gate entry")
	}
}

func TestSimulateEntryStopTarget(t *testing.T) {
	pts := crossSeries(30, 10)
	trades, err := Simulate("TEST", pts, exampleParams(), DefaultWeights())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	tr := trades[0]
	if !tr.EntryTime.Equal(pts[10].Bar.Time) {
		t.Errorf("entry = %v, want bar 10", tr.EntryTime)
	}
	if tr.EntryPrice != 100 || tr.StopPrice != 97.0 || tr.TargetPrice != 106.0 {
		t.Errorf("entry/stop/target = %v/%v/%v, want 100/97/106", tr.EntryPrice, tr.StopPrice, tr.TargetPrice)
	}
	if tr.Reason != ExitReasonTimeout || tr.HoldDays != 5 {
		t.Errorf("reason=%s hold=%d, want timeout after 5", tr.Reason, tr.HoldDays)
	}
}

func TestSimulateStopPriority(t *testing.T) {
	pts := crossSeries(20, 10)
	pts[11].Bar.Low = 96
	pts[11].Bar.High = 107

	trades, err := Simulate("TEST", pts, exampleParams(), DefaultWeights())
	if err != nil {
		t.Fatalf("Simulate() error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(trades))
	}
	if trades[0].Reason != ExitReasonStop || trades[0].ExitPrice != 97.0 {
		t.Errorf("got %s @ %v, want stop @ 97", trades[0].Reason, trades[0].ExitPrice)
	}
	if math.Abs(trades[0].ReturnPct-(-3.0)) > 1e-9 {
		t.Errorf("ReturnPct = %v, want -3", trades[0].ReturnPct)
	}
}

func TestSimulateTargetHit(t *testing.T) {
	pts := crossSeries(20, 10)
	pts[12].Bar.High = 106.5

	trades, _ := Simulate("TEST", pts, exampleParams(), DefaultWeights())
	if len(trades) != 1 || trades[0].Reason != ExitReasonTarget || trades[0].ExitPrice != 106.0 {
		t.Fatalf("trades = %+v, want one target exit at 106", trades)
	}
}

func TestSimulateHorizonEnd(t *testing.T) {
	p := exampleParams()
	p.MaxHoldDays = 14

	trades, _ := Simulate("TEST", crossSeries(13, 10), p, DefaultWeights())
	if len(trades) != 1 || trades[0].Reason != ExitReasonHorizonEnd {
		t.Fatalf("trades = %+v, want one horizon_end exit", trades)
	}
	if trades[0].HoldDays != 2 {
		t.Errorf("HoldDays = %d, want 2", trades[0].HoldDays)
	}

	// Entry on the final bar never produces a same-day trade
	trades, _ = Simulate("TEST", crossSeries(11, 10), p, DefaultWeights())
	if len(trades) != 0 {
		t.Errorf("trades = %+v, want none", trades)
	}
}

func TestSimulateEntryGates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(pts []feed.HistoryPoint)
	}{
		{"zero atr", func(pts []feed.HistoryPoint) { pts[10].Snapshot.ATR = 0 }},
		{"overbought", func(pts []feed.HistoryPoint) { pts[10].Snapshot.RSI = 75 }},
		{"not ready", func(pts []feed.HistoryPoint) { pts[10].Snapshot.Ready = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts := crossSeries(20, 10)
			tt.mutate(pts)
			trades, err := Simulate("TEST", pts, exampleParams(), DefaultWeights())
			if err != nil {
				t.Fatalf("Simulate() error: %v", err)
			}
			if len(trades) != 0 {
				t.Errorf("trades = %d, want 0", len(trades))
			}
		})
	}
}

func TestSimulateRejectsInvalidParameters(t *testing.T) {
	p := exampleParams()
	p.ATRStopMultiplier = 9
	if _, err := Simulate("TEST", crossSeries(20, 10), p, DefaultWeights()); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

// randomWalk builds a computed history so every signal path can fire
func randomWalk(seed int64, n int) []feed.HistoryPoint {
	rng := rand.New(rand.NewSource(seed))
	bars := make([]feed.Bar, n)
	price := 100.0
	for i := range bars {
		open := price
		price *= 1 + rng.NormFloat64()*0.02
		hi := math.Max(open, price) * (1 + rng.Float64()*0.015)
		lo := math.Min(open, price) * (1 - rng.Float64()*0.015)
		bars[i] = feed.Bar{
			Time:   day0.AddDate(0, 0, i),
			Open:   open,
			High:   hi,
			Low:    lo,
			Close:  price,
			Volume: int64(1000 + rng.Intn(2000)),
		}
	}
	return feed.ComputeIndicators(bars)[feed.WarmupBars:]
}

func TestSimulateInvariants(t *testing.T) {
	p := Parameters{ATRStopMultiplier: 1.5, ATRTargetMultiplier: 3, MinTechnicalScore: 3, MaxHoldDays: 5}
	valid := map[ExitReason]bool{}
	for _, r := range ExitReasons {
		valid[r] = true
	}

	for seed := int64(1); seed <= 25; seed++ {
		trades, err := Simulate("RW", randomWalk(seed, 300), p, DefaultWeights())
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		for k, tr := range trades {
			if !tr.ExitTime.After(tr.EntryTime) {
				t.Errorf("seed %d trade %d: exit %v not after entry %v", seed, k, tr.ExitTime, tr.EntryTime)
			}
			if !valid[tr.Reason] {
				t.Errorf("seed %d trade %d: invalid reason %q", seed, k, tr.Reason)
			}
			if k > 0 && !tr.EntryTime.After(trades[k-1].ExitTime) {
				t.Errorf("seed %d trade %d: overlapping positions", seed, k)
			}
			if tr.Reason != ExitReasonHorizonEnd && tr.HoldDays > p.MaxHoldDays {
				t.Errorf("seed %d trade %d: held %d > %d", seed, k, tr.HoldDays, p.MaxHoldDays)
			}
		}
	}
}

func TestParametersValidateAndClamp(t *testing.T) {
	p := Parameters{ATRStopMultiplier: 0.5, ATRTargetMultiplier: 9, MinTechnicalScore: 8, MaxHoldDays: 30}
	if err := p.Validate(); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Validate() = %v, want ErrInvalidParameter", err)
	}
	c := p.Clamped()
	if c.ATRStopMultiplier != 1.0 || c.ATRTargetMultiplier != 7.0 || c.MinTechnicalScore != 7.0 || c.MaxHoldDays != 14 {
		t.Errorf("Clamped() = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("clamped params invalid: %v", err)
	}
}

func TestPositionManagerSinglePosition(t *testing.T) {
	pm := NewPositionManager()
	if err := pm.OpenPosition(&Position{Ticker: "A"}); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := pm.OpenPosition(&Position{Ticker: "A"}); err == nil {
		t.Error("second open on same ticker should fail")
	}
	if err := pm.OpenPosition(&Position{Ticker: "B"}); err != nil {
		t.Errorf("open on another ticker: %v", err)
	}
	if pm.ClosePosition("A") == nil {
		t.Fatal("close returned nil for an open position")
	}
	if _, open := pm.GetPosition("A"); open {
		t.Error("close did not remove position")
	}
	if pm.ClosePosition("A") != nil {
		t.Error("second close should return nil")
	}
}
