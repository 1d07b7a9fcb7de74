package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CacheMetadata stores metadata about cached data
type CacheMetadata struct {
	Ticker    string    `json:"ticker"`
	PullDate  time.Time `json:"pull_date"`  // When the data was pulled
	StartDate time.Time `json:"start_date"` // Requested range start
	EndDate   time.Time `json:"end_date"`   // Requested range end
	BarCount  int       `json:"bar_count"`
}

// CachedBar is a serializable version of Bar
type CachedBar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// CacheManager handles caching of daily bars on disk
type CacheManager struct {
	cacheDir string
	now      func() time.Time
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	if cacheDir == "" {
		cacheDir = "data/cache"
	}
	return &CacheManager{
		cacheDir: cacheDir,
		now:      time.Now,
	}
}

// GetCachePath returns the cache file path for a ticker
func (cm *CacheManager) GetCachePath(ticker string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("%s_daily.json", ticker))
}

// GetMetadataPath returns the metadata file path for a ticker
func (cm *CacheManager) GetMetadataPath(ticker string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("%s_daily_metadata.json", ticker))
}

// LoadCachedBars returns cached bars for [startDate, endDate] when the
// cache was pulled today and covers the range. A miss returns nil, nil.
func (cm *CacheManager) LoadCachedBars(ticker string, startDate, endDate time.Time) ([]Bar, error) {
	metadataBytes, err := os.ReadFile(cm.GetMetadataPath(ticker))
	if err != nil {
		return nil, nil // No cache exists, that's okay
	}

	var metadata CacheMetadata
	if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
		return nil, nil // Invalid metadata, ignore cache
	}

	if !sameDay(metadata.PullDate, cm.now()) {
		return nil, nil
	}
	if metadata.StartDate.After(truncateDay(startDate)) || metadata.EndDate.Before(truncateDay(endDate)) {
		return nil, nil // Requested range not covered
	}

	dataBytes, err := os.ReadFile(cm.GetCachePath(ticker))
	if err != nil {
		return nil, nil
	}

	var cached []CachedBar
	if err := json.Unmarshal(dataBytes, &cached); err != nil {
		return nil, nil
	}

	bars := make([]Bar, 0, len(cached))
	for _, cb := range cached {
		if cb.Time.Before(truncateDay(startDate)) || cb.Time.After(endOfDay(endDate)) {
			continue
		}
		bars = append(bars, Bar{
			Time:   cb.Time,
			Open:   cb.Open,
			High:   cb.High,
			Low:    cb.Low,
			Close:  cb.Close,
			Volume: cb.Volume,
		})
	}
	return bars, nil
}

// SaveCachedBars saves bars and metadata for a ticker
func (cm *CacheManager) SaveCachedBars(ticker string, startDate, endDate time.Time, bars []Bar) error {
	if err := os.MkdirAll(cm.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %v", err)
	}

	cached := make([]CachedBar, len(bars))
	for i, bar := range bars {
		cached[i] = CachedBar{
			Time:   bar.Time,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
		}
	}

	dataBytes, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %v", err)
	}
	if err := os.WriteFile(cm.GetCachePath(ticker), dataBytes, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %v", err)
	}

	metadata := CacheMetadata{
		Ticker:    ticker,
		PullDate:  cm.now(),
		StartDate: truncateDay(startDate),
		EndDate:   truncateDay(endDate),
		BarCount:  len(bars),
	}
	metadataBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %v", err)
	}
	if err := os.WriteFile(cm.GetMetadataPath(ticker), metadataBytes, 0644); err != nil {
		return fmt.Errorf("failed to write metadata file: %v", err)
	}

	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return truncateDay(t).Add(24*time.Hour - time.Nanosecond)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
