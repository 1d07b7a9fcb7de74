package backtest

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/perfect-swing-bot/pkg/strategy"
)

// FormatProfitFactor renders the profit factor, including the infinite sentinel
func FormatProfitFactor(pf float64) string {
	if pf == ProfitFactorInfinite {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}

// PrintReport writes a human-readable summary of stats
func PrintReport(w io.Writer, title string, s Stats, skipped []Skipped) {
	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Total Trades: %d\n", s.TotalTrades)
	fmt.Fprintf(w, "Wins: %d, Losses: %d\n", s.Wins, s.Losses)
	fmt.Fprintf(w, "Win Rate: %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(w, "Profit Factor: %s\n", FormatProfitFactor(s.ProfitFactor))
	if s.SharpeValid {
		fmt.Fprintf(w, "Sharpe: %.2f\n", s.Sharpe)
	} else {
		fmt.Fprintln(w, "Sharpe: n/a")
	}
	fmt.Fprintf(w, "Avg Return: %.2f%%  (win %.2f%% / loss %.2f%%)\n", s.AvgReturnPct, s.AvgWinPct, s.AvgLossPct)
	fmt.Fprintf(w, "Total Return: %.2f%%\n", s.TotalReturnPct)
	fmt.Fprintf(w, "Max Drawdown: %.2f%%\n", s.MaxDrawdownPct)
	fmt.Fprintf(w, "Max Consecutive Losses: %d\n", s.MaxConsecutiveLosses)
	fmt.Fprintf(w, "Avg Hold: %.1f days\n", s.AvgHoldDays)

	if s.TotalTrades > 0 {
		fmt.Fprintln(w, "\nExit Breakdown:")
		for _, reason := range strategy.ExitReasons {
			g := s.ExitBreakdown[reason]
			fmt.Fprintf(w, "  %-12s %4d  (%.1f%%)  avg %.2f%%\n", reason, g.Count, s.ExitRate(reason)*100, g.AvgReturnPct)
		}

		fmt.Fprintln(w, "\nMonthly Returns:")
		for _, m := range s.Months {
			fmt.Fprintf(w, "  %s  %+.2f%%\n", m, s.MonthlyReturns[m])
		}

		fmt.Fprintln(w, "\nSignals:")
		signals := make([]strategy.Signal, 0, len(s.SignalStats))
		for sig := range s.SignalStats {
			signals = append(signals, sig)
		}
		sort.Slice(signals, func(i, j int) bool { return signals[i] < signals[j] })
		for _, sig := range signals {
			g := s.SignalStats[sig]
			fmt.Fprintf(w, "  %-26s n=%-4d win %.1f%%  avg %+.2f%%\n", sig, g.Count, g.WinRate*100, g.AvgReturnPct)
		}

		fmt.Fprintln(w, "\nScore Buckets:")
		for _, b := range s.BucketStats {
			fmt.Fprintf(w, "  %-5s n=%-4d win %.1f%%  avg %+.2f%%\n", b.Label, b.Count, b.WinRate*100, b.AvgReturnPct)
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped Tickers:")
		for _, sk := range skipped {
			fmt.Fprintf(w, "  %s: %s\n", sk.Ticker, sk.Reason)
		}
	}
}
