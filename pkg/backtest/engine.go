package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/feed"
	"github.com/perfect-swing-bot/pkg/strategy"
)

// ErrNoTrades marks a run that produced zero trades. It is informational:
// callers score such runs as worst-case rather than failing.
var ErrNoTrades = errors.New("no trades")

// Skip reasons recorded for tickers left out of a run
const (
	SkipNoData              = "no_data"
	SkipInsufficientHistory = "insufficient_history"
	SkipFetchError          = "fetch_error"
	SkipSimulationError     = "simulation_error"
)

// Skipped records a ticker excluded from a run and why
type Skipped struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Universe is preloaded history for a set of tickers
type Universe struct {
	Tickers []string // Loaded tickers, in request order
	History map[string][]feed.HistoryPoint
	Skipped []Skipped
}

// Result is one simulation run. It is not modified after construction.
type Result struct {
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"created_at"`
	Days       int                    `json:"days"`
	Tickers    []string               `json:"tickers"`
	Parameters strategy.Parameters    `json:"parameters"`
	Weights    strategy.Weights       `json:"weights"`
	Trades     []strategy.ClosedTrade `json:"trades"`
	Stats      Stats                  `json:"stats"`
	Skipped    []Skipped              `json:"skipped"`
}

// Check returns ErrNoTrades for an empty run
func (r *Result) Check() error {
	if len(r.Trades) == 0 {
		return ErrNoTrades
	}
	return nil
}

// Engine runs backtests against a history provider
type Engine struct {
	provider feed.HistoryProvider
	logger   *zap.Logger
	now      func() time.Time
}

// NewEngine creates a new backtest engine
func NewEngine(provider feed.HistoryProvider, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the engine's notion of "now"
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// LoadUniverse fetches the trailing `days` trading days for each ticker.
// Per-ticker failures are recorded in Skipped; only context cancellation
// aborts the load.
func (e *Engine) LoadUniverse(ctx context.Context, tickers []string, days int) (*Universe, error) {
	if days < feed.MinHistoryBars {
		return nil, fmt.Errorf("days=%d below minimum %d: %w", days, feed.MinHistoryBars, strategy.ErrInvalidParameter)
	}

	end := e.now()
	start := end.AddDate(0, 0, -feed.TradingDaysToCalendar(days))

	u := &Universe{History: make(map[string][]feed.HistoryPoint)}
	seen := make(map[string]bool)
	for _, raw := range tickers {
		ticker := strings.ToUpper(strings.TrimSpace(raw))
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		points, err := e.provider.GetHistory(ctx, ticker, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			skip := Skipped{Ticker: ticker, Reason: SkipFetchError, Detail: err.Error()}
			switch {
			case errors.Is(err, feed.ErrInsufficientHistory):
				skip.Reason = SkipInsufficientHistory
			case errors.Is(err, feed.ErrNoData):
				skip.Reason = SkipNoData
			}
			e.logger.Warn("skipping ticker", zap.String("ticker", ticker), zap.String("reason", skip.Reason), zap.Error(err))
			u.Skipped = append(u.Skipped, skip)
			continue
		}

		if len(points) > days {
			points = points[len(points)-days:]
		}
		u.Tickers = append(u.Tickers, ticker)
		u.History[ticker] = points
	}

	e.logger.Info("universe loaded",
		zap.Int("tickers", len(u.Tickers)),
		zap.Int("skipped", len(u.Skipped)),
		zap.Int("days", days))
	return u, nil
}

// RunBacktest loads history and simulates every ticker with params and weights
func (e *Engine) RunBacktest(ctx context.Context, tickers []string, days int, params strategy.Parameters, weights strategy.Weights) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	u, err := e.LoadUniverse(ctx, tickers, days)
	if err != nil {
		return nil, err
	}

	res, err := Run(u, days, params, weights)
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("run_id", res.ID),
		zap.Int("trades", res.Stats.TotalTrades),
		zap.Float64("win_rate", res.Stats.WinRate),
		zap.Float64("profit_factor", res.Stats.ProfitFactor),
	}
	if errors.Is(res.Check(), ErrNoTrades) {
		e.logger.Warn("backtest produced no trades", fields...)
	} else {
		e.logger.Info("backtest complete", fields...)
	}
	return res, nil
}

// Run simulates a preloaded universe. It does no I/O, so the optimizer can
// call it concurrently for different parameter sets.
func Run(u *Universe, days int, params strategy.Parameters, weights strategy.Weights) (*Result, error) {
	var trades []strategy.ClosedTrade
	skipped := append([]Skipped(nil), u.Skipped...)

	for _, ticker := range u.Tickers {
		tickerTrades, err := strategy.Simulate(ticker, u.History[ticker], params, weights)
		if err != nil {
			if errors.Is(err, strategy.ErrInvalidParameter) {
				return nil, err
			}
			skipped = append(skipped, Skipped{Ticker: ticker, Reason: SkipSimulationError, Detail: err.Error()})
			continue
		}
		trades = append(trades, tickerTrades...)
	}

	ordered := sortedByExit(trades)
	return &Result{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now(),
		Days:       days,
		Tickers:    append([]string(nil), u.Tickers...),
		Parameters: params,
		Weights:    weights.Clone(),
		Trades:     ordered,
		Stats:      Aggregate(ordered),
		Skipped:    skipped,
	}, nil
}
