package tuning

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/regime"
	"github.com/perfect-swing-bot/pkg/strategy"
)

// ParamChange is one parameter that moved in a cycle
type ParamChange struct {
	Name string  `json:"name"`
	Old  float64 `json:"old"`
	New  float64 `json:"new"`
}

// WeightChange is one signal weight that moved in a cycle
type WeightChange struct {
	Signal   strategy.Signal `json:"signal"`
	Old      float64         `json:"old"`
	New      float64         `json:"new"`
	DeltaPct float64         `json:"delta_pct"`
}

// Summary reports a tuning cycle
type Summary struct {
	CycleID   string        `json:"cycle_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Days      int           `json:"days"`
	DryRun    bool          `json:"dry_run"`
	Accepted  bool          `json:"accepted"`
	Reason    string        `json:"reason"`

	Regime regime.Result `json:"regime"`

	// New* are the values in effect after the cycle: the blended proposal
	// when accepted, the old values otherwise. Proposed* are always the
	// blended proposal.
	OldParameters      strategy.Parameters `json:"old_parameters"`
	NewParameters      strategy.Parameters `json:"new_parameters"`
	ProposedParameters strategy.Parameters `json:"proposed_parameters"`
	ParameterChanges   []ParamChange       `json:"parameter_changes"`
	OldWeights         strategy.Weights    `json:"old_weights"`
	NewWeights         strategy.Weights    `json:"new_weights"`
	ProposedWeights    strategy.Weights    `json:"proposed_weights"`
	WeightChanges      []WeightChange      `json:"weight_changes"`

	BaselineTrades    int     `json:"baseline_trades"`
	BestTrades        int     `json:"best_trades"`
	BaselineObjective float64 `json:"baseline_objective"`
	BestObjective     float64 `json:"best_objective"`
	ImprovementPct    float64 `json:"improvement_pct"`
	Evaluated         int     `json:"evaluated"`

	StateVersion int                `json:"state_version"`
	Skipped      []backtest.Skipped `json:"skipped"`
	Warnings     []string           `json:"warnings"`
}

// Headline is a one-line verdict
func (s *Summary) Headline() string {
	verdict := "REJECTED"
	if s.Accepted {
		verdict = "ACCEPTED"
	}
	if s.DryRun {
		verdict += " (dry run)"
	}
	return fmt.Sprintf("Tuning %s: %s, regime %s (%.0f%%)", verdict, s.Reason, s.Regime.Regime, s.Regime.Confidence*100)
}

// Text renders the summary for humans
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, s.Headline())
	fmt.Fprintf(&b, "Cycle %s over %d days, %d candidates\n", s.CycleID, s.Days, s.Evaluated)
	fmt.Fprintf(&b, "Objective: baseline %s (%d trades) -> best %s (%d trades), %s\n",
		formatObjective(s.BaselineObjective), s.BaselineTrades,
		formatObjective(s.BestObjective), s.BestTrades,
		formatImprovement(s.ImprovementPct))

	if len(s.ParameterChanges) > 0 {
		fmt.Fprintln(&b, "Parameters:")
		for _, c := range s.ParameterChanges {
			fmt.Fprintf(&b, "  %s: %.2f -> %.2f\n", c.Name, c.Old, c.New)
		}
	}
	if len(s.WeightChanges) > 0 {
		fmt.Fprintln(&b, "Weights:")
		for _, c := range s.WeightChanges {
			fmt.Fprintf(&b, "  %s: %.3f -> %.3f (%+.1f%%)\n", c.Signal, c.Old, c.New, c.DeltaPct)
		}
	}
	if !s.Accepted && s.ProposedParameters != s.OldParameters {
		fmt.Fprintf(&b, "Declined proposal: %s\n", s.ProposedParameters.Key())
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "Skipped %d tickers\n", len(s.Skipped))
	}
	return b.String()
}

func formatObjective(v float64) string {
	if v >= 1e6 {
		return "inf"
	}
	return fmt.Sprintf("%.3f", v)
}

func formatImprovement(pct float64) string {
	if math.Abs(pct) >= 1e6 {
		return "from unqualified baseline"
	}
	return fmt.Sprintf("%+.1f%%", pct)
}

// paramChanges lists the parameters that differ between before and after
func paramChanges(before, after strategy.Parameters) []ParamChange {
	var out []ParamChange
	for _, name := range strategy.ParamNames {
		o, _ := before.Get(name)
		n, _ := after.Get(name)
		if math.Abs(n-o) > 1e-9 {
			out = append(out, ParamChange{Name: name, Old: o, New: n})
		}
	}
	return out
}

// weightChanges lists the weights that differ between before and after, by signal name
func weightChanges(before, after strategy.Weights) []WeightChange {
	var out []WeightChange
	for _, sig := range after.Signals() {
		o, n := before.Get(sig), after.Get(sig)
		if math.Abs(n-o) <= 1e-9 {
			continue
		}
		out = append(out, WeightChange{Signal: sig, Old: o, New: n, DeltaPct: (n - o) / o * 100})
	}
	return out
}
