package optimizer

import (
	"math"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/strategy"
)

// profitFactorCap stands in for an infinite profit factor so it still orders
const profitFactorCap = 1e6

// Score is an objective's verdict on one backtest
type Score struct {
	Value     float64 `json:"value"`
	WinRate   float64 `json:"win_rate"`
	Trades    int     `json:"trades"`
	Qualified bool    `json:"qualified"` // False below the trade floor or with no trades
}

// Objective turns backtest statistics into a comparable Score
type Objective interface {
	Name() string
	Score(s backtest.Stats) Score
}

// ProfitFactorObjective maximises profit factor above a trade-count floor;
// win rate breaks ties.
type ProfitFactorObjective struct {
	MinTrades int
}

// Name implements Objective
func (o ProfitFactorObjective) Name() string {
	return "profit_factor"
}

// Score implements Objective
func (o ProfitFactorObjective) Score(s backtest.Stats) Score {
	sc := Score{WinRate: s.WinRate, Trades: s.TotalTrades}
	if s.TotalTrades == 0 || s.TotalTrades < o.MinTrades {
		return sc
	}
	sc.Qualified = true
	sc.Value = math.Min(s.ProfitFactor, profitFactorCap)
	return sc
}

// Candidate is one evaluated parameter set
type Candidate struct {
	Params strategy.Parameters `json:"params"`
	Score  Score               `json:"score"`
	Result *backtest.Result    `json:"-"`
}

// Better reports whether a ranks ahead of b. The order is total: qualified
// before unqualified, then higher value, higher win rate, and finally the
// parameter key, so evaluation order never changes the winner.
func Better(a, b Candidate) bool {
	if a.Score.Qualified != b.Score.Qualified {
		return a.Score.Qualified
	}
	if a.Score.Value != b.Score.Value {
		return a.Score.Value > b.Score.Value
	}
	if a.Score.WinRate != b.Score.WinRate {
		return a.Score.WinRate > b.Score.WinRate
	}
	return a.Params.Key() < b.Params.Key()
}
