package backtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/perfect-swing-bot/pkg/feed"
	"github.com/perfect-swing-bot/pkg/strategy"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func trade(ticker string, exitDay int, ret float64, hold int, score float64, sigs ...strategy.Signal) strategy.ClosedTrade {
	return strategy.ClosedTrade{
		Ticker:         ticker,
		EntryTime:      day0.AddDate(0, 0, exitDay-hold),
		ExitTime:       day0.AddDate(0, 0, exitDay),
		EntryPrice:     100,
		ExitPrice:      100 + ret,
		ReturnPct:      ret,
		HoldDays:       hold,
		Reason:         strategy.ExitReasonTimeout,
		SignalsAtEntry: sigs,
		ScoreAtEntry:   score,
	}
}

func TestAggregateEmpty(t *testing.T) {
	s := Aggregate(nil)
	if s.TotalTrades != 0 || s.WinRate != 0 || s.ProfitFactor != 0 {
		t.Errorf("empty stats = %+v", s)
	}
	if s.SharpeValid {
		t.Error("Sharpe should be undefined with no trades")
	}
	if len(s.BucketStats) != 5 {
		t.Errorf("buckets = %d, want 5", len(s.BucketStats))
	}
}

func TestAggregateSentinels(t *testing.T) {
	tests := []struct {
		name        string
		trades      []strategy.ClosedTrade
		wantPF      float64
		sharpeValid bool
	}{
		{"single win", []strategy.ClosedTrade{trade("A", 5, 3, 2, 5)}, ProfitFactorInfinite, false},
		{"only wins equal", []strategy.ClosedTrade{trade("A", 5, 2, 1, 5), trade("B", 6, 2, 1, 5)}, ProfitFactorInfinite, false},
		{"only losses", []strategy.ClosedTrade{trade("A", 5, -2, 1, 5), trade("B", 6, -6, 2, 5)}, 0, true},
		{"flat", []strategy.ClosedTrade{trade("A", 5, 0, 1, 5), trade("B", 6, 0, 1, 5)}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Aggregate(tt.trades)
			if s.ProfitFactor != tt.wantPF {
				t.Errorf("ProfitFactor = %v, want %v", s.ProfitFactor, tt.wantPF)
			}
			if s.SharpeValid != tt.sharpeValid {
				t.Errorf("SharpeValid = %v, want %v", s.SharpeValid, tt.sharpeValid)
			}
			if math.IsNaN(s.Sharpe) || math.IsInf(s.Sharpe, 0) {
				t.Errorf("Sharpe = %v, want finite", s.Sharpe)
			}
		})
	}
}

func TestAggregateValues(t *testing.T) {
	trades := []strategy.ClosedTrade{
		trade("B", 40, -2, 2, 4.5, strategy.SignalGoldenCross),
		trade("A", 3, 4, 2, 6.2, strategy.SignalGoldenCross, strategy.SignalMAAlignment),
		trade("A", 10, 2, 1, 8.0, strategy.SignalMAAlignment),
		trade("C", 41, -1, 1, 10.0, strategy.SignalRSIZone),
	}
	before := fmt.Sprintf("%+v", trades)

	s := Aggregate(trades)

	if after := fmt.Sprintf("%+v", trades); after != before {
		t.Error("Aggregate mutated its input")
	}
	if s.TotalTrades != 4 || s.Wins != 2 || s.Losses != 2 {
		t.Fatalf("counts = %d/%d/%d", s.TotalTrades, s.Wins, s.Losses)
	}
	if s.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", s.WinRate)
	}
	if s.ProfitFactor != 2.0 {
		t.Errorf("ProfitFactor = %v, want 2.0", s.ProfitFactor)
	}
	if s.MaxConsecutiveLosses != 2 {
		t.Errorf("MaxConsecutiveLosses = %d, want 2", s.MaxConsecutiveLosses)
	}
	// Equity 1.04 -> 1.0608 -> 1.039584 -> 1.02918816; drop from peak is 2.98%
	if math.Abs(s.MaxDrawdownPct-2.98) > 1e-9 {
		t.Errorf("MaxDrawdownPct = %v, want 2.98", s.MaxDrawdownPct)
	}

	if got := s.MonthlyReturns["2024-01"]; got != 6 {
		t.Errorf("Jan return = %v, want 6", got)
	}
	if got := s.MonthlyReturns["2024-02"]; got != -3 {
		t.Errorf("Feb return = %v, want -3", got)
	}
	if len(s.Months) != 2 || s.Months[0] != "2024-01" {
		t.Errorf("Months = %v", s.Months)
	}

	gc := s.SignalStats[strategy.SignalGoldenCross]
	if gc.Count != 2 || gc.WinRate != 0.5 || gc.AvgReturnPct != 1 {
		t.Errorf("golden_cross stats = %+v", gc)
	}
	ma := s.SignalStats[strategy.SignalMAAlignment]
	if ma.Count != 2 || ma.WinRate != 1 {
		t.Errorf("ma_alignment stats = %+v", ma)
	}

	byLabel := map[string]BucketStat{}
	for _, b := range s.BucketStats {
		byLabel[b.Label] = b
	}
	if byLabel["4-6"].Count != 1 || byLabel["6-8"].Count != 1 || byLabel["8-10"].Count != 2 {
		t.Errorf("buckets = %+v", s.BucketStats)
	}

	if s.ExitRate(strategy.ExitReasonTimeout) != 1 {
		t.Errorf("timeout rate = %v, want 1", s.ExitRate(strategy.ExitReasonTimeout))
	}
	if s.TickerStats["A"].Count != 2 {
		t.Errorf("ticker A count = %d, want 2", s.TickerStats["A"].Count)
	}
}

// stubProvider serves fixed histories or errors per ticker
type stubProvider struct {
	history map[string][]feed.HistoryPoint
	errs    map[string]error
}

func (p *stubProvider) GetHistory(ctx context.Context, ticker string, start, end time.Time) ([]feed.HistoryPoint, error) {
	if err, ok := p.errs[ticker]; ok {
		return nil, err
	}
	return p.history[ticker], nil
}

// crossHistory yields one golden-cross entry at bar 10 that times out
func crossHistory(n int) []feed.HistoryPoint {
	pts := make([]feed.HistoryPoint, n)
	for i := range pts {
		snap := feed.IndicatorSnapshot{MA5: 99, MA10: 99.5, MA20: 100, RSI: 55, ATR: 2, ADX: 20, VolumeRatio: 1, Ready: true}
		if i >= 10 {
			snap.MA5, snap.MA10 = 104, 102
		}
		pts[i] = feed.HistoryPoint{
			Bar:      feed.Bar{Time: day0.AddDate(0, 0, i), Open: 100, High: 101, Low: 99, Close: 100 + float64(i)*0.01},
			Snapshot: snap,
		}
	}
	return pts
}

func TestRunBacktestSkipsAndReports(t *testing.T) {
	provider := &stubProvider{
		history: map[string][]feed.HistoryPoint{
			"AAA": crossHistory(40),
			"BBB": crossHistory(40),
		},
		errs: map[string]error{
			"NEW":  fmt.Errorf("NEW: 5 usable bars: %w", feed.ErrInsufficientHistory),
			"GONE": fmt.Errorf("GONE: %w", feed.ErrNoData),
			"ERR":  errors.New("boom"),
		},
	}
	engine := NewEngine(provider, nil)

	params := strategy.Parameters{ATRStopMultiplier: 1.5, ATRTargetMultiplier: 3, MinTechnicalScore: 3, MaxHoldDays: 5}
	res, err := engine.RunBacktest(context.Background(), []string{"AAA", "new", "GONE", "BBB", "ERR", "aaa"}, 40, params, strategy.DefaultWeights())
	if err != nil {
		t.Fatalf("RunBacktest() error: %v", err)
	}

	if len(res.Tickers) != 2 {
		t.Errorf("Tickers = %v, want AAA and BBB", res.Tickers)
	}
	reasons := map[string]string{}
	for _, sk := range res.Skipped {
		reasons[sk.Ticker] = sk.Reason
	}
	if reasons["NEW"] != SkipInsufficientHistory || reasons["GONE"] != SkipNoData || reasons["ERR"] != SkipFetchError {
		t.Errorf("skipped = %+v", res.Skipped)
	}
	if res.Stats.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2", res.Stats.TotalTrades)
	}
	if res.ID == "" {
		t.Error("result ID not set")
	}
	if err := res.Check(); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestRunBacktestRejectsInvalidParameters(t *testing.T) {
	engine := NewEngine(&stubProvider{}, nil)
	params := strategy.DefaultParameters()
	params.MaxHoldDays = 100

	_, err := engine.RunBacktest(context.Background(), []string{"AAA"}, 30, params, strategy.DefaultWeights())
	if !errors.Is(err, strategy.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestRunNoTrades(t *testing.T) {
	u := &Universe{Tickers: []string{"AAA"}, History: map[string][]feed.HistoryPoint{"AAA": crossHistory(40)}}
	params := strategy.Parameters{ATRStopMultiplier: 1.5, ATRTargetMultiplier: 3, MinTechnicalScore: 7, MaxHoldDays: 5}

	res, err := Run(u, 40, params, strategy.DefaultWeights())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if !errors.Is(res.Check(), ErrNoTrades) {
		t.Errorf("Check() = %v, want ErrNoTrades", res.Check())
	}
}

func TestCSVExportAndLoad(t *testing.T) {
	trades := []strategy.ClosedTrade{
		trade("A", 3, 4, 2, 6.2, strategy.SignalGoldenCross, strategy.SignalMAAlignment),
		trade("B", 9, -1.5, 3, 4.0),
	}
	res := &Result{CreatedAt: day0, Days: 60, Trades: trades, Stats: Aggregate(trades)}

	path, err := ExportCSV(res, t.TempDir())
	if err != nil {
		t.Fatalf("ExportCSV() error: %v", err)
	}
	if !strings.HasSuffix(filepath.Base(path), "_60d_2.5pct.csv") {
		t.Errorf("unexpected filename %s", path)
	}

	loaded, err := LoadTradesCSV(path)
	if err != nil {
		t.Fatalf("LoadTradesCSV() error: %v", err)
	}
	if len(loaded) != 2 || len(loaded[0].SignalsAtEntry) != 2 || loaded[1].ReturnPct != -1.5 {
		t.Errorf("loaded = %+v", loaded)
	}
	if Aggregate(loaded).ProfitFactor != Aggregate(trades).ProfitFactor {
		t.Error("profit factor changed across CSV round trip")
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("export missing: %v", err)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	s := Aggregate([]strategy.ClosedTrade{trade("A", 3, 4, 2, 6.2, strategy.SignalGoldenCross)})
	PrintReport(&buf, "TEST", s, []Skipped{{Ticker: "X", Reason: SkipNoData}})

	out := buf.String()
	for _, want := range []string{"Profit Factor: inf", "Sharpe: n/a", "golden_cross", "X: no_data"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
