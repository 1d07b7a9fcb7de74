package backtest

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/perfect-swing-bot/pkg/strategy"
)

// ProfitFactorInfinite is reported when there are gains and no losses
const ProfitFactorInfinite = math.MaxFloat64

// tradingDaysPerYear annualises the Sharpe ratio
const tradingDaysPerYear = 252

// GroupStat summarises a subset of trades
type GroupStat struct {
	Count          int     `json:"count"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"` // Fraction in [0, 1]
	AvgReturnPct   float64 `json:"avg_return_pct"`
	TotalReturnPct float64 `json:"total_return_pct"`
}

// BucketStat is a GroupStat for a technical-score range [Low, High)
type BucketStat struct {
	Label string  `json:"label"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	GroupStat
}

// Stats are the aggregate statistics of a set of trades
type Stats struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // Fraction in [0, 1]; 0 with no trades

	AvgReturnPct     float64 `json:"avg_return_pct"`
	TotalReturnPct   float64 `json:"total_return_pct"`
	AvgWinPct        float64 `json:"avg_win_pct"`
	AvgLossPct       float64 `json:"avg_loss_pct"`
	ExpectedValuePct float64 `json:"expected_value_pct"`
	AvgHoldDays      float64 `json:"avg_hold_days"`

	// ProfitFactor is ProfitFactorInfinite with no losing trades and
	// positive gains, and 0 with no gains.
	ProfitFactor float64 `json:"profit_factor"`

	// Sharpe is annualised from per-day returns; SharpeValid is false with
	// fewer than two trades or zero dispersion, and Sharpe is then 0.
	Sharpe      float64 `json:"sharpe"`
	SharpeValid bool    `json:"sharpe_valid"`

	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`

	MonthlyReturns map[string]float64                `json:"monthly_returns"` // "YYYY-MM" -> summed return %
	Months         []string                          `json:"months"`
	SignalStats    map[strategy.Signal]GroupStat     `json:"signal_stats"`
	BucketStats    []BucketStat                      `json:"bucket_stats"`
	ExitBreakdown  map[strategy.ExitReason]GroupStat `json:"exit_breakdown"`
	TickerStats    map[string]GroupStat              `json:"ticker_stats"`
}

// HasInfiniteProfitFactor reports whether ProfitFactor is the sentinel
func (s Stats) HasInfiniteProfitFactor() bool {
	return s.ProfitFactor == ProfitFactorInfinite
}

// ExitRate returns the share of trades that closed for reason
func (s Stats) ExitRate(reason strategy.ExitReason) float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.ExitBreakdown[reason].Count) / float64(s.TotalTrades)
}

// scoreBuckets are the technical-score ranges used by BucketStats
var scoreBuckets = []struct {
	label     string
	low, high float64
}{
	{"0-2", 0, 2},
	{"2-4", 2, 4},
	{"4-6", 4, 6},
	{"6-8", 6, 8},
	{"8-10", 8, strategy.MaxScore},
}

// Aggregate reduces trades to statistics without mutating them
func Aggregate(trades []strategy.ClosedTrade) Stats {
	ordered := sortedByExit(trades)
	returns := lo.Map(ordered, func(t strategy.ClosedTrade, _ int) float64 { return t.ReturnPct })

	s := Stats{
		TotalTrades:    len(ordered),
		MonthlyReturns: make(map[string]float64),
		SignalStats:    make(map[strategy.Signal]GroupStat),
		ExitBreakdown:  make(map[strategy.ExitReason]GroupStat),
		TickerStats:    make(map[string]GroupStat),
	}

	overall := groupStat(ordered)
	s.Wins = overall.Wins
	s.WinRate = overall.WinRate
	s.AvgReturnPct = overall.AvgReturnPct
	s.TotalReturnPct = overall.TotalReturnPct

	wins := lo.Filter(returns, func(r float64, _ int) bool { return r > 0 })
	losses := lo.Filter(returns, func(r float64, _ int) bool { return r < 0 })
	s.Losses = len(losses)

	grossWin := lo.Sum(wins)
	grossLoss := math.Abs(lo.Sum(losses))
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossWin / grossLoss
	case grossWin > 0:
		s.ProfitFactor = ProfitFactorInfinite
	}

	if len(wins) > 0 {
		s.AvgWinPct = stat.Mean(wins, nil)
	}
	if len(losses) > 0 {
		s.AvgLossPct = stat.Mean(losses, nil)
	}
	if s.TotalTrades > 0 {
		lossRate := float64(s.Losses) / float64(s.TotalTrades)
		s.ExpectedValuePct = s.WinRate*s.AvgWinPct + lossRate*s.AvgLossPct
		s.AvgHoldDays = lo.MeanBy(ordered, func(t strategy.ClosedTrade) float64 { return float64(t.HoldDays) })
	}

	s.Sharpe, s.SharpeValid = sharpe(ordered)
	s.MaxDrawdownPct = maxDrawdown(returns)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(returns)

	for month, group := range lo.GroupBy(ordered, func(t strategy.ClosedTrade) string {
		return t.ExitTime.Format("2006-01")
	}) {
		s.MonthlyReturns[month] = lo.SumBy(group, func(t strategy.ClosedTrade) float64 { return t.ReturnPct })
		s.Months = append(s.Months, month)
	}
	sort.Strings(s.Months)

	type signalTrade struct {
		signal strategy.Signal
		trade  strategy.ClosedTrade
	}
	pairs := lo.FlatMap(ordered, func(t strategy.ClosedTrade, _ int) []signalTrade {
		return lo.Map(lo.Uniq(t.SignalsAtEntry), func(sig strategy.Signal, _ int) signalTrade {
			return signalTrade{signal: sig, trade: t}
		})
	})
	for sig, group := range lo.GroupBy(pairs, func(p signalTrade) strategy.Signal { return p.signal }) {
		s.SignalStats[sig] = groupStat(lo.Map(group, func(p signalTrade, _ int) strategy.ClosedTrade { return p.trade }))
	}

	for _, b := range scoreBuckets {
		inBucket := lo.Filter(ordered, func(t strategy.ClosedTrade, _ int) bool {
			if b.high == strategy.MaxScore {
				return t.ScoreAtEntry >= b.low && t.ScoreAtEntry <= b.high
			}
			return t.ScoreAtEntry >= b.low && t.ScoreAtEntry < b.high
		})
		s.BucketStats = append(s.BucketStats, BucketStat{
			Label:     b.label,
			Low:       b.low,
			High:      b.high,
			GroupStat: groupStat(inBucket),
		})
	}

	for reason, group := range lo.GroupBy(ordered, func(t strategy.ClosedTrade) strategy.ExitReason { return t.Reason }) {
		s.ExitBreakdown[reason] = groupStat(group)
	}
	for ticker, group := range lo.GroupBy(ordered, func(t strategy.ClosedTrade) string { return t.Ticker }) {
		s.TickerStats[ticker] = groupStat(group)
	}

	return s
}

func groupStat(trades []strategy.ClosedTrade) GroupStat {
	g := GroupStat{Count: len(trades)}
	if g.Count == 0 {
		return g
	}
	g.Wins = lo.CountBy(trades, func(t strategy.ClosedTrade) bool { return t.IsWin() })
	g.WinRate = float64(g.Wins) / float64(g.Count)
	g.TotalReturnPct = lo.SumBy(trades, func(t strategy.ClosedTrade) float64 { return t.ReturnPct })
	g.AvgReturnPct = g.TotalReturnPct / float64(g.Count)
	return g
}

// sharpe computes mean/stdev of per-day returns, annualised
func sharpe(trades []strategy.ClosedTrade) (float64, bool) {
	if len(trades) < 2 {
		return 0, false
	}
	daily := lo.Map(trades, func(t strategy.ClosedTrade, _ int) float64 {
		hold := t.HoldDays
		if hold < 1 {
			hold = 1
		}
		return t.ReturnPct / float64(hold)
	})
	mean, std := stat.MeanStdDev(daily, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}
	return mean / std * math.Sqrt(tradingDaysPerYear), true
}

// maxDrawdown returns the largest peak-to-trough drop (%) of the
// compounded equity curve, as a non-negative number
func maxDrawdown(returns []float64) float64 {
	equity, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		equity *= 1 + r/100
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return worst
}

func maxConsecutiveLosses(returns []float64) int {
	run, best := 0, 0
	for _, r := range returns {
		if r < 0 {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	return best
}

// sortedByExit copies trades ordered by exit time, then ticker, then entry time
func sortedByExit(trades []strategy.ClosedTrade) []strategy.ClosedTrade {
	out := make([]strategy.ClosedTrade, len(trades))
	copy(out, trades)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ExitTime.Equal(out[j].ExitTime) {
			return out[i].ExitTime.Before(out[j].ExitTime)
		}
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}
