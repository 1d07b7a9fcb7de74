package strategy

import (
	"fmt"

	"github.com/perfect-swing-bot/pkg/feed"
)

// Simulate replays one ticker's history and returns its closed trades in
// exit order. Each ticker is an independent single-unit strategy.
//
// Entries fill at the signal bar's close. From the next bar on, the stop
// is checked before the target, so a bar that breaches both closes at the
// stop. A position still open on the last bar is closed there at its close.
func Simulate(ticker string, history []feed.HistoryPoint, p Parameters, w Weights) ([]ClosedTrade, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	pm := NewPositionManager()
	trades := make([]ClosedTrade, 0)

	for i := 1; i < len(history); i++ {
		today := history[i]

		if pos, open := pm.GetPosition(ticker); open {
			if trade, closed := checkExit(pos, today, i, p); closed {
				pm.ClosePosition(ticker)
				trades = append(trades, trade)
			}
			// No same-bar re-entry after an exit
			continue
		}

		res := Evaluate(today, history[i-1], w)
		if res.Score < p.MinTechnicalScore || res.EntryBlocked() {
			continue
		}

		atr := today.Snapshot.ATR
		if atr <= 0 || !today.Snapshot.Ready {
			continue
		}

		entry := today.Bar.Close
		pos := &Position{
			Ticker:       ticker,
			EntryTime:    today.Bar.Time,
			EntryIndex:   i,
			EntryPrice:   entry,
			StopPrice:    entry - p.ATRStopMultiplier*atr,
			TargetPrice:  entry + p.ATRTargetMultiplier*atr,
			EntryScore:   res.Score,
			EntrySignals: res.Signals,
		}
		if err := pm.OpenPosition(pos); err != nil {
			return nil, fmt.Errorf("simulate %s: %w", ticker, err)
		}
	}

	// Horizon end: an entry on the final bar has no later bar to exit on
	// and is dropped.
	if pos, open := pm.GetPosition(ticker); open {
		last := len(history) - 1
		if pos.EntryIndex < last {
			trades = append(trades, closeTrade(pos, history[last], last, history[last].Bar.Close, ExitReasonHorizonEnd))
		}
		pm.ClosePosition(ticker)
	}

	return trades, nil
}

// checkExit applies the stop, target, and timeout rules to one bar
func checkExit(pos *Position, bar feed.HistoryPoint, idx int, p Parameters) (ClosedTrade, bool) {
	switch {
	case bar.Bar.Low <= pos.StopPrice:
		return closeTrade(pos, bar, idx, pos.StopPrice, ExitReasonStop), true
	case bar.Bar.High >= pos.TargetPrice:
		return closeTrade(pos, bar, idx, pos.TargetPrice, ExitReasonTarget), true
	case idx-pos.EntryIndex >= p.MaxHoldDays:
		return closeTrade(pos, bar, idx, bar.Bar.Close, ExitReasonTimeout), true
	}
	return ClosedTrade{}, false
}

func closeTrade(pos *Position, bar feed.HistoryPoint, idx int, exitPrice float64, reason ExitReason) ClosedTrade {
	return ClosedTrade{
		Ticker:         pos.Ticker,
		EntryTime:      pos.EntryTime,
		ExitTime:       bar.Bar.Time,
		EntryPrice:     pos.EntryPrice,
		ExitPrice:      exitPrice,
		StopPrice:      pos.StopPrice,
		TargetPrice:    pos.TargetPrice,
		ReturnPct:      (exitPrice - pos.EntryPrice) / pos.EntryPrice * 100,
		HoldDays:       idx - pos.EntryIndex,
		Reason:         reason,
		SignalsAtEntry: pos.EntrySignals,
		ScoreAtEntry:   pos.EntryScore,
	}
}
