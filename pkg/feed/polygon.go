package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PolygonFeed fetches daily aggregates from Polygon.io
type PolygonFeed struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewPolygonFeed creates a new Polygon.io feed
func NewPolygonFeed(apiKey string) *PolygonFeed {
	return &PolygonFeed{
		apiKey:  apiKey,
		baseURL: "https://api.polygon.io",
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithBaseURL overrides the API host (used by tests)
func (pf *PolygonFeed) WithBaseURL(baseURL string) *PolygonFeed {
	pf.baseURL = baseURL
	return pf
}

// GetDailyBars fetches daily bars for [startDate, endDate]
func (pf *PolygonFeed) GetDailyBars(ctx context.Context, ticker string, startDate, endDate time.Time) ([]Bar, error) {
	endpoint := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s",
		pf.baseURL,
		ticker,
		formatDate(startDate),
		formatDate(endDate),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	q := req.URL.Query()
	q.Add("apiKey", pf.apiKey)
	q.Add("adjusted", "true") // Adjusted for splits
	q.Add("sort", "asc")
	q.Add("limit", "50000")
	req.URL.RawQuery = q.Encode()

	resp, err := pf.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Results []struct {
			T int64   `json:"t"` // Timestamp (milliseconds)
			O float64 `json:"o"`
			H float64 `json:"h"`
			L float64 `json:"l"`
			C float64 `json:"c"`
			V float64 `json:"v"` // Volume (can be float64 from API)
		} `json:"results"`
		Status       string `json:"status"`
		ResultsCount int    `json:"resultsCount"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	// Accept OK or DELAYED status for historical data
	if result.Status != "OK" && result.Status != "DELAYED" {
		return nil, fmt.Errorf("API returned non-OK status: %s", result.Status)
	}

	bars := make([]Bar, 0, len(result.Results))
	for _, r := range result.Results {
		bars = append(bars, Bar{
			Time:   time.UnixMilli(r.T).UTC(),
			Open:   r.O,
			High:   r.H,
			Low:    r.L,
			Close:  r.C,
			Volume: int64(r.V),
		})
	}

	return bars, nil
}

// formatDate formats a date for Polygon.io API (YYYY-MM-DD)
func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
