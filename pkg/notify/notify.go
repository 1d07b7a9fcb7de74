package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/perfect-swing-bot/pkg/tuning"
)

// Embed colours for accepted and rejected cycles
const (
	colorAccepted = 0x2ecc71
	colorRejected = 0xe67e22
)

// maxContentLen is the webhook's message length limit
const maxContentLen = 2000

// Sink publishes tuning summaries
type Sink interface {
	Publish(ctx context.Context, s *tuning.Summary) error
}

// WebhookSink posts summaries to a Discord-compatible webhook
type WebhookSink struct {
	webhookURL string
	client     *http.Client
}

// NewWebhookSink creates a new webhook sink
func NewWebhookSink(webhookURL string) *WebhookSink {
	return &WebhookSink{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Embed is one rich block of a webhook message
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// EmbedField is a name/value row of an embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Payload is the webhook request body
type Payload struct {
	Content string  `json:"content"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Publish posts s to the webhook
func (ws *WebhookSink) Publish(ctx context.Context, s *tuning.Summary) error {
	jsonData, err := json.Marshal(BuildPayload(s))
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("report rejected: status %d, body: %s", resp.StatusCode, string(body))
	}
	return nil
}

// BuildPayload renders a summary as a webhook message
func BuildPayload(s *tuning.Summary) Payload {
	color := colorRejected
	if s.Accepted {
		color = colorAccepted
	}

	fields := []EmbedField{
		{Name: "Regime", Value: fmt.Sprintf("%s (%.0f%%)", s.Regime.Regime, s.Regime.Confidence*100), Inline: true},
		{Name: "Trades", Value: fmt.Sprintf("%d -> %d", s.BaselineTrades, s.BestTrades), Inline: true},
		{Name: "Candidates", Value: fmt.Sprintf("%d", s.Evaluated), Inline: true},
	}
	for _, c := range s.ParameterChanges {
		fields = append(fields, EmbedField{Name: c.Name, Value: fmt.Sprintf("%.2f -> %.2f", c.Old, c.New), Inline: true})
	}
	if len(s.WeightChanges) > 0 {
		var b bytes.Buffer
		for _, c := range s.WeightChanges {
			fmt.Fprintf(&b, "%s: %.3f -> %.3f\n", c.Signal, c.Old, c.New)
		}
		fields = append(fields, EmbedField{Name: "Weights", Value: truncate(b.String(), 1024)})
	}

	return Payload{
		Content: truncate(s.Headline(), maxContentLen),
		Embeds: []Embed{{
			Title:       "Tuning cycle " + s.CycleID,
			Description: truncate(s.Text(), 4096),
			Color:       color,
			Fields:      fields,
			Timestamp:   s.StartedAt,
		}},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// LogSink writes summaries to a zap logger
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink on logger
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Publish implements Sink
func (ls *LogSink) Publish(ctx context.Context, s *tuning.Summary) error {
	ls.logger.Info(s.Headline(),
		zap.String("cycle_id", s.CycleID),
		zap.Bool("accepted", s.Accepted),
		zap.Bool("dry_run", s.DryRun),
		zap.Float64("improvement_pct", s.ImprovementPct),
		zap.Int("parameter_changes", len(s.ParameterChanges)),
		zap.Int("weight_changes", len(s.WeightChanges)),
		zap.Strings("warnings", s.Warnings))
	return nil
}

// Multi publishes to every sink and returns the first error
type Multi []Sink

// Publish implements Sink
func (m Multi) Publish(ctx context.Context, s *tuning.Summary) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Publish(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
