package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/backtest"
	"github.com/perfect-swing-bot/pkg/config"
	"github.com/perfect-swing-bot/pkg/feed"
	"github.com/perfect-swing-bot/pkg/history"
	"github.com/perfect-swing-bot/pkg/logging"
	"github.com/perfect-swing-bot/pkg/notify"
	"github.com/perfect-swing-bot/pkg/optimizer"
	"github.com/perfect-swing-bot/pkg/state"
	"github.com/perfect-swing-bot/pkg/tuning"
)

// App holds the wired components shared by the commands
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Provider   feed.HistoryProvider
	Engine     *backtest.Engine
	Optimizer  *optimizer.Optimizer
	Store      state.Store
	Recorder   history.Recorder
	Controller *tuning.Controller
	Sink       notify.Sink

	closers []func()
}

// Setup loads configuration and wires every component. needFeed requires
// a market data key.
func Setup(ctx context.Context, needFeed bool) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(needFeed); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return Wire(ctx, cfg)
}

// Wire builds the components for cfg
func Wire(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Logger: logger}
	app.closers = append(app.closers, func() { _ = logger.Sync() })

	source := feed.NewPolygonFeed(cfg.PolygonAPIKey)
	cache := feed.NewCacheManager(cfg.CacheDir)
	app.Provider = feed.NewIndicatorProvider(source, cache, logger.Named("feed"))

	app.Engine = backtest.NewEngine(app.Provider, logger.Named("backtest"))
	app.Optimizer = optimizer.New(app.Engine, cfg.OptimizerWorkers, logger.Named("optimizer"))
	app.Store = state.NewFileStore(cfg.StatePath)

	if cfg.DatabaseURL != "" {
		pg, err := history.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Recorder = pg
		app.closers = append(app.closers, pg.Close)
		logger.Info("tuning history in postgres")
	} else {
		app.Recorder = history.NewFileRecorder(cfg.HistoryPath)
	}

	reference := tuning.ProviderReference(app.Provider, cfg.ReferenceTicker, time.Now)
	app.Controller = tuning.NewController(
		app.Engine,
		app.Optimizer,
		reference,
		app.Store,
		app.Recorder,
		tuning.ConfigFrom(cfg),
		logger.Named("tuning"),
	)

	sinks := notify.Multi{notify.NewLogSink(logger.Named("report"))}
	if cfg.ReportWebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.ReportWebhookURL))
	}
	app.Sink = sinks

	return app, nil
}

// WithQuickTuning rebuilds the controller with quick-mode search
func (a *App) WithQuickTuning(quick bool) {
	tcfg := tuning.ConfigFrom(a.Config)
	tcfg.Quick = quick
	reference := tuning.ProviderReference(a.Provider, a.Config.ReferenceTicker, time.Now)
	a.Controller = tuning.NewController(a.Engine, a.Optimizer, reference, a.Store, a.Recorder, tcfg, a.Logger.Named("tuning"))
}

// Close releases resources in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
