// Package sink forwards classified faults to the external crash-reporting
// service. Forwarding is fire-and-forget: failures are logged, never retried
// beyond the client's bounded retry, and never surfaced to ingestion callers.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vigilstack/vigil-telemetry/internal/metrics"
	"github.com/vigilstack/vigil-telemetry/internal/models"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

const eventsPath = "/api/v1/events"

// Config holds the export-sink connection settings.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	SampleRate float64
	Enabled    bool
}

// Client submits fault events to the export sink over HTTP.
type Client struct {
	http       *resty.Client
	logger     *slog.Logger
	sampleRate float64
	enabled    bool
}

// payload is the wire shape submitted to the sink.
type payload struct {
	ID            string               `json:"id"`
	Timestamp     time.Time            `json:"timestamp"`
	Message       string               `json:"message"`
	StackTrace    string               `json:"stackTrace,omitempty"`
	Severity      models.Severity      `json:"severity"`
	Category      models.Category      `json:"category"`
	Type          string               `json:"type"`
	Fingerprint   string               `json:"fingerprint"`
	QuickCategory string               `json:"quickCategory"`
	QuickUrgency  string               `json:"quickUrgency"`
	Context       models.ErrorContext  `json:"context"`
	Tags          map[string]string    `json:"tags,omitempty"`
	Extra         map[string]any       `json:"extra,omitempty"`
	Environment   string               `json:"environment,omitempty"`
	Release       string               `json:"release,omitempty"`
}

// NewClient constructs a sink client with bounded retry. A nil return never
// happens; a disabled or unconfigured client drops everything silently.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.SampleRate <= 0 || cfg.SampleRate > 1 {
		cfg.SampleRate = 1
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.APIKey != "" {
		httpClient.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Client{
		http:       httpClient,
		logger:     logger,
		sampleRate: cfg.SampleRate,
		enabled:    cfg.Enabled && cfg.BaseURL != "",
	}
}

// Forward submits the event unless it is denied by the noise filter or
// dropped by sampling. The returned error is informational; callers treat
// the forward as fire-and-forget.
func (c *Client) Forward(ctx context.Context, event models.ErrorEvent) error {
	if c == nil || !c.enabled {
		return nil
	}
	if Denied(event.Message) {
		metrics.ObserveSinkDrop()
		c.logger.Debug("noisy event dropped before sink", slog.String("id", event.ID))
		return nil
	}
	if c.sampleRate < 1 && rand.Float64() > c.sampleRate {
		return nil
	}

	quick := QuickClassify(event.Message)
	body := payload{
		ID:            event.ID,
		Timestamp:     event.Timestamp,
		Message:       event.Message,
		StackTrace:    event.StackTrace,
		Severity:      event.Classification.Severity,
		Category:      event.Classification.Category,
		Type:          event.Classification.Type,
		Fingerprint:   event.Fingerprint,
		QuickCategory: quick.Category,
		QuickUrgency:  quick.Urgency,
		Context:       event.Context,
		Tags:          event.Tags,
		Extra:         event.Extra,
		Environment:   event.Environment,
		Release:       event.Release,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(eventsPath)
	if err != nil {
		return utils.NewAppError("sink.Forward", "submit event", err)
	}
	if resp.IsError() {
		return utils.NewAppError("sink.Forward", fmt.Sprintf("sink returned %s", resp.Status()), nil)
	}
	return nil
}
