package feed

import (
	"context"
	"errors"
	"time"
)

// MinHistoryBars is the fewest indicator-ready bars a ticker must have
// before it can be backtested.
const MinHistoryBars = 20

var (
	// ErrNoData means the provider returned no bars at all for the ticker
	ErrNoData = errors.New("no data for ticker")
	// ErrInsufficientHistory means bars exist but too few to evaluate
	ErrInsufficientHistory = errors.New("insufficient history")
)

// Bar represents a single daily bar
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// IndicatorSnapshot holds derived values for one bar.
// Ready is false while any indicator is still warming up.
type IndicatorSnapshot struct {
	MA5  float64
	MA10 float64
	MA20 float64

	RSI float64 // RSI14

	MACD       float64
	MACDSignal float64
	MACDHist   float64

	BBUpper  float64
	BBMiddle float64
	BBLower  float64

	ATR float64 // ATR14
	ADX float64 // ADX14

	VolumeMA20  float64
	VolumeRatio float64 // Volume / VolumeMA20

	Ready bool
}

// HistoryPoint pairs a bar with its snapshot
type HistoryPoint struct {
	Bar      Bar
	Snapshot IndicatorSnapshot
}

// BarSource fetches raw daily bars
type BarSource interface {
	GetDailyBars(ctx context.Context, ticker string, startDate, endDate time.Time) ([]Bar, error)
}

// HistoryProvider returns chronologically ordered bars with indicators.
// Implementations return ErrNoData or ErrInsufficientHistory (wrapped)
// so callers can tell the two apart.
type HistoryProvider interface {
	GetHistory(ctx context.Context, ticker string, startDate, endDate time.Time) ([]HistoryPoint, error)
}

// Closes extracts the close series from a history
func Closes(points []HistoryPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Bar.Close
	}
	return out
}
