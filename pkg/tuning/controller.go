package tuning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/config"
	"github.com/perfect-swing-bot/pkg/feed"
	"github.com/perfect-swing-bot/pkg/history"
	"github.com/perfect-swing-bot/pkg/optimizer"
	"github.com/perfect-swing-bot/pkg/regime"
	"github.com/perfect-swing-bot/pkg/state"
	"github.com/perfect-swing-bot/pkg/strategy"
)

// ReferenceFeed returns at least bars trailing closes of the reference
// index, oldest first.
type ReferenceFeed func(ctx context.Context, bars int) ([]float64, error)

// ProviderReference reads reference closes through a history provider
func ProviderReference(p feed.HistoryProvider, ticker string, now func() time.Time) ReferenceFeed {
	return func(ctx context.Context, bars int) ([]float64, error) {
		end := now()
		start := end.AddDate(0, 0, -feed.TradingDaysToCalendar(bars))
		points, err := p.GetHistory(ctx, ticker, start, end)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", ticker, err)
		}
		return feed.Closes(points), nil
	}
}

// SafetyThresholds mark a degraded baseline
type SafetyThresholds struct {
	MinTrades            int // Below this the baseline is not judged
	MinWinRate           float64
	MinProfitFactor      float64
	MaxConsecutiveLosses int
}

// DefaultSafetyThresholds returns the standard degradation limits
func DefaultSafetyThresholds() SafetyThresholds {
	return SafetyThresholds{
		MinTrades:            10,
		MinWinRate:           0.35,
		MinProfitFactor:      0.7,
		MaxConsecutiveLosses: 15,
	}
}

// Config controls a tuning cycle
type Config struct {
	Tickers           []string
	MinImprovementPct float64 // Required objective gain over baseline (%)
	BlendRatio        float64 // Share of the proposal kept when blending with current values
	MaxWeightDeltaPct float64 // Per-cycle weight change bound (% of current weight)
	MinTrades         int     // Objective trade floor
	Quick             bool
	Samples           int
	Regime            regime.Config
	Safety            SafetyThresholds
}

// ConfigFrom builds a tuning config from the environment config
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Tickers:           cfg.Universe(),
		MinImprovementPct: cfg.MinImprovementPct,
		BlendRatio:        cfg.BlendRatio,
		MaxWeightDeltaPct: cfg.MaxWeightDeltaPct,
		MinTrades:         cfg.MinTrades,
		Samples:           60,
		Regime:            regime.DefaultConfig(),
		Safety:            DefaultSafetyThresholds(),
	}
}

// Controller runs self-tuning cycles
type Controller struct {
	engine    *backtest.Engine
	optimizer *optimizer.Optimizer
	reference ReferenceFeed
	store     state.Store
	recorder  history.Recorder // May be nil
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewController wires a controller. recorder may be nil.
func NewController(engine *backtest.Engine, opt *optimizer.Optimizer, reference ReferenceFeed, store state.Store, recorder history.Recorder, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		engine:    engine,
		optimizer: opt,
		reference: reference,
		store:     store,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the controller's notion of "now"
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// cycle is the record threaded through the stages. Stages receive a copy
// and return the updated copy; nothing is shared between stages.
type cycle struct {
	id        string
	startedAt time.Time
	days      int
	dryRun    bool
	log       *zap.Logger

	current state.StrategyState
	regime  regime.Result

	universe      *backtest.Universe
	baseline      *backtest.Result
	baselineScore optimizer.Score
	degraded      bool
	searchBase    strategy.Parameters

	outcome         *optimizer.Outcome
	proposedParams  strategy.Parameters
	proposedWeights strategy.Weights

	newParams   strategy.Parameters
	newWeights  strategy.Weights
	improvement float64
	accepted    bool
	reason      string
	version     int

	warnings []string
}

// applied returns the parameters and weights in effect after the cycle
func (cy cycle) applied() (strategy.Parameters, strategy.Weights) {
	if cy.accepted {
		return cy.newParams, cy.newWeights
	}
	return cy.current.Parameters, cy.current.Weights
}

func (cy cycle) warn(msg string) cycle {
	cy.warnings = append(append([]string(nil), cy.warnings...), msg)
	cy.log.Warn(msg)
	return cy
}

type stage struct {
	name string
	run  func(context.Context, cycle) (cycle, error)
}

// Run executes one tuning cycle over the trailing days. With dryRun
// nothing is written. A rejected cycle leaves the strategy state as it was.
func (c *Controller) Run(ctx context.Context, days int, dryRun bool) (*Summary, error) {
	if days < feed.MinHistoryBars {
		return nil, fmt.Errorf("days=%d below minimum %d: %w", days, feed.MinHistoryBars, strategy.ErrInvalidParameter)
	}

	current, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy state: %w", err)
	}

	id := uuid.NewString()
	cy := cycle{
		id:        id,
		startedAt: c.now(),
		days:      days,
		dryRun:    dryRun,
		log:       c.logger.With(zap.String("cycle_id", id)),
		current:   current.Clone(),
		version:   current.Version,
	}
	cy.log.Info("tuning cycle started",
		zap.Int("days", days),
		zap.Bool("dry_run", dryRun),
		zap.Int("state_version", current.Version))

	stages := []stage{
		{"detect_regime", c.detectRegime},
		{"baseline", c.runBaseline},
		{"optimize", c.optimize},
		{"adjust_weights", c.adjustWeights},
		{"safeguards", c.safeguards},
		{"persist", c.persist},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := st.run(ctx, cy)
		if err != nil {
			cy.log.Error("tuning stage failed", zap.String("stage", st.name), zap.Error(err))
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
		cy = next
	}

	sum := c.summarize(cy)
	cy.log.Info("tuning cycle finished",
		zap.Bool("accepted", sum.Accepted),
		zap.String("reason", sum.Reason),
		zap.Float64("improvement_pct", sum.ImprovementPct),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

func (c *Controller) objective() optimizer.Objective {
	return optimizer.ProfitFactorObjective{MinTrades: c.cfg.MinTrades}
}

// detectRegime classifies the reference index. Failure falls back to a
// low-confidence sideways market rather than aborting the cycle.
func (c *Controller) detectRegime(ctx context.Context, cy cycle) (cycle, error) {
	bars := cy.days
	if need := c.cfg.Regime.Lookback + 1; bars < need {
		bars = need
	}

	fallback := regime.Result{Regime: regime.Sideways, Confidence: 0.3}
	closes, err := c.reference(ctx, bars)
	if err != nil {
		if ctx.Err() != nil {
			return cy, ctx.Err()
		}
		cy.regime = fallback
		return cy.warn(fmt.Sprintf("regime detection unavailable: %v", err)), nil
	}

	res, err := regime.Detect(closes, c.cfg.Regime)
	if err != nil {
		cy.regime = fallback
		return cy.warn(fmt.Sprintf("regime detection failed: %v", err)), nil
	}

	cy.regime = res
	cy.log.Info("market regime",
		zap.String("regime", string(res.Regime)),
		zap.Float64("confidence", res.Confidence),
		zap.Float64("trailing_return_pct", res.TrailingReturn),
		zap.Float64("volatility_pct", res.Volatility))
	return cy, nil
}

func (c *Controller) runBaseline(ctx context.Context, cy cycle) (cycle, error) {
	u, err := c.engine.LoadUniverse(ctx, c.cfg.Tickers, cy.days)
	if err != nil {
		return cy, err
	}
	if len(u.Tickers) == 0 {
		return cy, fmt.Errorf("no tickers with usable history: %w", feed.ErrNoData)
	}

	res, err := backtest.Run(u, cy.days, cy.current.Parameters, cy.current.Weights)
	if err != nil {
		return cy, err
	}

	cy.universe = u
	cy.baseline = res
	cy.baselineScore = c.objective().Score(res.Stats)
	cy.searchBase = cy.current.Parameters

	cy.log.Info("baseline backtest",
		zap.Int("trades", res.Stats.TotalTrades),
		zap.Float64("win_rate", res.Stats.WinRate),
		zap.Float64("objective", cy.baselineScore.Value),
		zap.Bool("qualified", cy.baselineScore.Qualified))

	for _, w := range safetyWarnings(res.Stats, c.cfg.Safety) {
		cy = cy.warn("baseline degraded: " + w)
		cy.degraded = true
	}
	if cy.degraded {
		cy.searchBase = strategy.ConservativeParameters()
		cy.log.Info("searching around conservative parameters", zap.String("base", cy.searchBase.Key()))
	}
	return cy, nil
}

func (c *Controller) optimize(ctx context.Context, cy cycle) (cycle, error) {
	opts := optimizer.Options{
		Base:    cy.searchBase,
		Weights: cy.current.Weights,
		Quick:   c.cfg.Quick,
		Samples: c.cfg.Samples,
		TopN:    5,
	}
	out, err := c.optimizer.Search(ctx, cy.universe, cy.days, optimizer.Neighborhood(cy.searchBase), c.objective(), opts)
	if err != nil {
		return cy, err
	}
	cy.outcome = out

	// The regime preset acts as a prior on the winner, up to regimeParamPull
	// of the way at full confidence.
	profile := regime.ProfileFor(cy.regime.Regime)
	cy.proposedParams = blendParameters(out.Best.Params, profile.Parameters, cy.regime.Confidence*regimeParamPull)
	cy.log.Info("proposed parameters",
		zap.String("best", out.Best.Params.Key()),
		zap.String("proposed", cy.proposedParams.Key()))
	return cy, nil
}

// adjustWeights derives new signal weights from the winning candidate's
// trades and tilts them toward the regime profile.
func (c *Controller) adjustWeights(_ context.Context, cy cycle) (cycle, error) {
	source := cy.baseline
	if cy.outcome.Result != nil {
		source = cy.outcome.Result
	}

	w := adjustWeights(cy.current.Weights, source.Stats.SignalStats, c.cfg.MaxWeightDeltaPct/100)
	w = nudgeWeights(w, regime.ProfileFor(cy.regime.Regime).Weights, cy.regime.Confidence)
	cy.proposedWeights = w
	return cy, nil
}

func (c *Controller) safeguards(_ context.Context, cy cycle) (cycle, error) {
	cy.newParams = blendParameters(cy.current.Parameters, cy.proposedParams.Clamped(), c.cfg.BlendRatio)
	cy.newWeights = blendWeights(cy.current.Weights, cy.proposedWeights, c.cfg.BlendRatio, c.cfg.MaxWeightDeltaPct/100)

	best := cy.outcome.Best.Score
	cy.improvement = improvementPct(cy.baselineScore.Value, best.Value)

	switch {
	case !best.Qualified:
		cy.reason = fmt.Sprintf("no candidate reached %d trades", c.cfg.MinTrades)
	case cy.improvement < c.cfg.MinImprovementPct:
		cy.reason = fmt.Sprintf("improvement %.1f%% below required %.1f%%", cy.improvement, c.cfg.MinImprovementPct)
	default:
		if err := cy.newParams.Validate(); err != nil {
			cy.reason = fmt.Sprintf("blended parameters invalid: %v", err)
			break
		}
		if err := cy.newWeights.Validate(); err != nil {
			cy.reason = fmt.Sprintf("blended weights invalid: %v", err)
			break
		}
		cy.accepted = true
		cy.reason = fmt.Sprintf("objective improved %.1f%%", cy.improvement)
		if !cy.baselineScore.Qualified {
			cy.reason = "baseline below trade floor, candidate qualified"
		}
	}
	return cy, nil
}

// persist saves accepted state and records the cycle. It is the only
// stage that writes.
func (c *Controller) persist(ctx context.Context, cy cycle) (cycle, error) {
	if cy.dryRun {
		cy.log.Info("dry run, nothing persisted", zap.Bool("accepted", cy.accepted))
		return cy, nil
	}

	if cy.accepted {
		next := cy.current.Clone()
		next.Version++
		next.Parameters = cy.newParams
		next.Weights = cy.newWeights.Clone()
		next.LastUpdated = c.now()
		next.RegimeAtTuning = string(cy.regime.Regime)
		next.LastCycleID = cy.id
		next.LastCycleAccepted = true

		if err := c.store.Save(ctx, next); err != nil {
			if !errors.Is(err, state.ErrPersistence) {
				err = fmt.Errorf("%w: %w", state.ErrPersistence, err)
			}
			return cy, err
		}
		cy.version = next.Version
		cy.log.Info("strategy state saved", zap.Int("version", next.Version))
	}

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, c.historyEntry(cy)); err != nil {
			cy = cy.warn(fmt.Sprintf("failed to record tuning history: %v", err))
		}
	}
	return cy, nil
}

func (c *Controller) historyEntry(cy cycle) history.Entry {
	params, weights := cy.applied()
	changes := make(map[strategy.Signal]float64)
	for _, wc := range weightChanges(cy.current.Weights, weights) {
		changes[wc.Signal] = wc.New - wc.Old
	}
	return history.Entry{
		CycleID:            cy.id,
		RanAt:              cy.startedAt,
		Days:               cy.days,
		DryRun:             cy.dryRun,
		Accepted:           cy.accepted,
		Reason:             cy.reason,
		Regime:             string(cy.regime.Regime),
		RegimeConfidence:   cy.regime.Confidence,
		BaselineTrades:     cy.baseline.Stats.TotalTrades,
		BaselineObjective:  cy.baselineScore.Value,
		BestObjective:      cy.outcome.Best.Score.Value,
		ImprovementPct:     cy.improvement,
		OldParameters:      cy.current.Parameters,
		NewParameters:      params,
		ProposedParameters: cy.newParams,
		WeightChanges:      changes,
		Warnings:           cy.warnings,
	}
}

func (c *Controller) summarize(cy cycle) *Summary {
	params, weights := cy.applied()
	return &Summary{
		CycleID:            cy.id,
		StartedAt:          cy.startedAt,
		Duration:           c.now().Sub(cy.startedAt),
		Days:               cy.days,
		DryRun:             cy.dryRun,
		Accepted:           cy.accepted,
		Reason:             cy.reason,
		Regime:             cy.regime,
		OldParameters:      cy.current.Parameters,
		NewParameters:      params,
		ProposedParameters: cy.newParams,
		ParameterChanges:   paramChanges(cy.current.Parameters, params),
		OldWeights:         cy.current.Weights.Clone(),
		NewWeights:         weights.Clone(),
		ProposedWeights:    cy.newWeights.Clone(),
		WeightChanges:      weightChanges(cy.current.Weights, weights),
		BaselineTrades:     cy.baseline.Stats.TotalTrades,
		BestTrades:         cy.outcome.Best.Score.Trades,
		BaselineObjective:  cy.baselineScore.Value,
		BestObjective:      cy.outcome.Best.Score.Value,
		ImprovementPct:     cy.improvement,
		Evaluated:          cy.outcome.Evaluated,
		StateVersion:       cy.version,
		Skipped:            cy.universe.Skipped,
		Warnings:           cy.warnings,
	}
}
