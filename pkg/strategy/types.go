package strategy

import (
	"time"
)

// ScoreResult is the evaluator output for one bar
type ScoreResult struct {
	Score         float64            // Clamped to [0, MaxScore]
	Signals       []Signal           // Triggered signals, in declaration order
	Contributions map[Signal]float64 // Weighted points per triggered signal
	DeadCross     bool               // Entry gate
	Overbought    bool               // Entry gate
}

// Has reports whether sig triggered
func (r ScoreResult) Has(sig Signal) bool {
	for _, s := range r.Signals {
		if s == sig {
			return true
		}
	}
	return false
}

// EntryBlocked reports whether a gating condition suppresses entry
func (r ScoreResult) EntryBlocked() bool {
	return r.DeadCross || r.Overbought
}

// Position represents an open simulated position (one notional unit)
type Position struct {
	Ticker       string
	EntryTime    time.Time
	EntryIndex   int
	EntryPrice   float64
	StopPrice    float64
	TargetPrice  float64
	EntryScore   float64
	EntrySignals []Signal
}

// ExitReason represents why a position was closed
type ExitReason string

const (
	ExitReasonStop       ExitReason = "stop"
	ExitReasonTarget     ExitReason = "target"
	ExitReasonTimeout    ExitReason = "timeout"
	ExitReasonHorizonEnd ExitReason = "horizon_end"
)

// ExitReasons lists every reason in reporting order
var ExitReasons = []ExitReason{ExitReasonStop, ExitReasonTarget, ExitReasonTimeout, ExitReasonHorizonEnd}

// ClosedTrade represents a completed simulated trade
type ClosedTrade struct {
	Ticker         string     `json:"ticker"`
	EntryTime      time.Time  `json:"entry_date"`
	ExitTime       time.Time  `json:"exit_date"`
	EntryPrice     float64    `json:"entry_price"`
	ExitPrice      float64    `json:"exit_price"`
	StopPrice      float64    `json:"stop_price"`
	TargetPrice    float64    `json:"target_price"`
	ReturnPct      float64    `json:"return_pct"`
	HoldDays       int        `json:"hold_days"`
	Reason         ExitReason `json:"exit_reason"`
	SignalsAtEntry []Signal   `json:"signals_at_entry"`
	ScoreAtEntry   float64    `json:"score_at_entry"`
}

// IsWin reports whether the trade closed with a positive return
func (t ClosedTrade) IsWin() bool {
	return t.ReturnPct > 0
}
