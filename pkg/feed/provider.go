package feed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// warmupCalendarDays is the extra calendar lookback fetched before the
// requested start so indicators are ready on the first requested bar.
const warmupCalendarDays = 60

// IndicatorProvider implements HistoryProvider on top of a BarSource,
// an optional disk cache, and ComputeIndicators.
type IndicatorProvider struct {
	source BarSource
	cache  *CacheManager
	logger *zap.Logger
}

// NewIndicatorProvider creates a provider. cache may be nil.
func NewIndicatorProvider(source BarSource, cache *CacheManager, logger *zap.Logger) *IndicatorProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndicatorProvider{
		source: source,
		cache:  cache,
		logger: logger,
	}
}

// GetHistory returns ready history points dated within [startDate, endDate]
func (p *IndicatorProvider) GetHistory(ctx context.Context, ticker string, startDate, endDate time.Time) ([]HistoryPoint, error) {
	fetchStart := startDate.AddDate(0, 0, -warmupCalendarDays)

	bars, err := p.loadBars(ctx, ticker, fetchStart, endDate)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNoData)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})
	bars = dedupe(bars)

	all := ComputeIndicators(bars)

	from := truncateDay(startDate)
	points := make([]HistoryPoint, 0, len(all))
	for _, pt := range all {
		if !pt.Snapshot.Ready || truncateDay(pt.Bar.Time).Before(from) {
			continue
		}
		points = append(points, pt)
	}

	if len(points) < MinHistoryBars {
		return nil, fmt.Errorf("%s: %d usable bars, need %d: %w", ticker, len(points), MinHistoryBars, ErrInsufficientHistory)
	}
	return points, nil
}

func (p *IndicatorProvider) loadBars(ctx context.Context, ticker string, startDate, endDate time.Time) ([]Bar, error) {
	if p.cache != nil {
		bars, err := p.cache.LoadCachedBars(ticker, startDate, endDate)
		if err != nil {
			p.logger.Warn("cache read failed", zap.String("ticker", ticker), zap.Error(err))
		} else if bars != nil {
			p.logger.Debug("cache hit", zap.String("ticker", ticker), zap.Int("bars", len(bars)))
			return bars, nil
		}
	}

	bars, err := p.source.GetDailyBars(ctx, ticker, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", ticker, err)
	}

	if p.cache != nil && len(bars) > 0 {
		if err := p.cache.SaveCachedBars(ticker, startDate, endDate, bars); err != nil {
			p.logger.Warn("cache write failed", zap.String("ticker", ticker), zap.Error(err))
		}
	}
	return bars, nil
}

// dedupe drops bars sharing a calendar day with the previous bar
func dedupe(bars []Bar) []Bar {
	out := bars[:0]
	for i, b := range bars {
		if i > 0 && sameDay(b.Time, out[len(out)-1].Time) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// TradingDaysToCalendar converts a trading-day window to calendar days
func TradingDaysToCalendar(days int) int {
	return days*7/5 + 5
}
