package optimizer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	lop "github.com/samber/lo/parallel"
	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/strategy"
)

// ErrEmptySpace is returned when no valid candidate survives expansion
var ErrEmptySpace = errors.New("parameter space produced no valid candidates")

// Options tunes a search
type Options struct {
	Base    strategy.Parameters // Value for dimensions the space leaves out
	Weights strategy.Weights
	Quick   bool // Evaluate a deterministic sample instead of the full grid
	Samples int  // Sample size in quick mode
	TopN    int  // Ranked candidates kept in the outcome
}

// DefaultOptions searches the full grid with default weights
func DefaultOptions() Options {
	return Options{
		Base:    strategy.DefaultParameters(),
		Weights: strategy.DefaultWeights(),
		Samples: 60,
		TopN:    10,
	}
}

// Outcome is the result of a search
type Outcome struct {
	Objective string             `json:"objective"`
	Best      Candidate          `json:"best"`
	Result    *backtest.Result   `json:"-"` // Best candidate's full backtest
	Evaluated int                `json:"evaluated"`
	Ranked    []Candidate        `json:"ranked"`
	Skipped   []backtest.Skipped `json:"skipped"`
	Duration  time.Duration      `json:"duration"`
}

// Qualified reports whether any candidate met the objective's floor
func (o *Outcome) Qualified() bool {
	return o.Best.Score.Qualified
}

// Optimizer searches parameter spaces with parallel backtests
type Optimizer struct {
	engine  *backtest.Engine
	workers int
	logger  *zap.Logger
}

// New creates an optimizer. workers <= 0 uses one per CPU.
func New(engine *backtest.Engine, workers int, logger *zap.Logger) *Optimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{engine: engine, workers: workers, logger: logger}
}

// Optimize loads the universe once and searches space for the parameter set
// the objective ranks highest.
func (o *Optimizer) Optimize(ctx context.Context, tickers []string, days int, space Space, objective Objective, opts Options) (*Outcome, error) {
	u, err := o.engine.LoadUniverse(ctx, tickers, days)
	if err != nil {
		return nil, err
	}
	return o.Search(ctx, u, days, space, objective, opts)
}

// Search evaluates space against a preloaded universe
func (o *Optimizer) Search(ctx context.Context, u *backtest.Universe, days int, space Space, objective Objective, opts Options) (*Outcome, error) {
	if opts.Weights == nil {
		opts.Weights = strategy.DefaultWeights()
	}
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}

	var candidates []strategy.Parameters
	var err error
	if opts.Quick {
		candidates, err = space.Sample(opts.Base, opts.Samples)
	} else {
		candidates, err = space.Candidates(opts.Base)
	}
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrEmptySpace
	}

	o.logger.Info("starting parameter search",
		zap.String("objective", objective.Name()),
		zap.Int("candidates", len(candidates)),
		zap.Int("grid_size", space.Size()),
		zap.Bool("quick", opts.Quick),
		zap.Int("workers", o.workers))

	started := time.Now()
	evaluated, err := o.evaluate(ctx, u, days, candidates, opts.Weights, objective)
	if err != nil {
		return nil, err
	}

	ranked := append([]Candidate(nil), evaluated...)
	sort.Slice(ranked, func(i, j int) bool { return Better(ranked[i], ranked[j]) })

	topN := opts.TopN
	if topN <= 0 || topN > len(ranked) {
		topN = len(ranked)
	}

	out := &Outcome{
		Objective: objective.Name(),
		Best:      ranked[0],
		Result:    ranked[0].Result,
		Evaluated: len(evaluated),
		Ranked:    ranked[:topN],
		Skipped:   u.Skipped,
		Duration:  time.Since(started),
	}

	qualified := lo.CountBy(evaluated, func(c Candidate) bool { return c.Score.Qualified })
	o.logger.Info("parameter search complete",
		zap.String("best", out.Best.Params.Key()),
		zap.Float64("best_value", out.Best.Score.Value),
		zap.Int("best_trades", out.Best.Score.Trades),
		zap.Int("qualified", qualified),
		zap.Duration("duration", out.Duration))
	if qualified == 0 {
		o.logger.Warn("no candidate met the trade floor")
	}

	return out, nil
}

// evaluate backtests every candidate, at most o.workers at a time
func (o *Optimizer) evaluate(ctx context.Context, u *backtest.Universe, days int, candidates []strategy.Parameters, weights strategy.Weights, objective Objective) ([]Candidate, error) {
	sem := make(chan struct{}, o.workers)

	var mu sync.Mutex
	var firstErr error

	results := lop.Map(candidates, func(p strategy.Parameters, _ int) Candidate {
		c := Candidate{Params: p}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return c
		}
		defer func() { <-sem }()

		if ctx.Err() != nil {
			return c
		}

		res, err := backtest.Run(u, days, p, weights)
		if err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = fmt.Errorf("evaluating %s: %w", p.Key(), err)
			}
			mu.Unlock()
			return c
		}
		c.Result = res
		c.Score = objective.Score(res.Stats)
		return c
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
