package detectors

import (
	"context"
	"log/slog"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

const (
	// regressionThreshold flags a regression when the recent window averages
	// more than 20% above the baseline window.
	regressionThreshold = 1.2
	// trendWindowLen is the number of samples in each comparison window. The
	// windows overlap when fewer than twice this many samples exist.
	trendWindowLen = 24
	// minTrendSamples is the floor below which no regression is reported.
	minTrendSamples = 10
	// trendLookback bounds how far back history is pulled.
	trendLookback = 7 * 24 * time.Hour
)

// HistorySource supplies retained samples for a metric. Implemented by the
// storage layer.
type HistorySource interface {
	MetricHistory(ctx context.Context, metric string, since time.Time) ([]models.MetricSample, error)
}

// RegressionReport is the outcome of one regression check.
type RegressionReport struct {
	Metric      string  `json:"metric"`
	Regression  bool    `json:"regression"`
	RecentAvg   float64 `json:"recentAvg"`
	BaselineAvg float64 `json:"baselineAvg"`
	ChangePct   float64 `json:"changePct"`
	SampleCount int     `json:"sampleCount"`
	Reason      string  `json:"reason,omitempty"`
}

// TrendAnalyzer compares recent performance samples against an earlier
// baseline window per metric.
type TrendAnalyzer struct {
	history HistorySource
	logger  *slog.Logger
}

// NewTrendAnalyzer constructs an analyzer over the given history source.
func NewTrendAnalyzer(history HistorySource, logger *slog.Logger) *TrendAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrendAnalyzer{history: history, logger: logger}
}

// CheckRegression pulls up to seven days of samples for the metric and flags
// a regression when the last window averages 20% above the first.
func (a *TrendAnalyzer) CheckRegression(ctx context.Context, metric string) (RegressionReport, error) {
	report := RegressionReport{Metric: metric}
	if a.history == nil {
		report.Reason = "no history source"
		return report, nil
	}

	samples, err := a.history.MetricHistory(ctx, metric, time.Now().Add(-trendLookback))
	if err != nil {
		return report, err
	}
	report.SampleCount = len(samples)

	if len(samples) < minTrendSamples {
		report.Reason = "insufficient data"
		return report, nil
	}

	window := trendWindowLen
	if len(samples) < window {
		window = len(samples)
	}

	report.BaselineAvg = meanOf(samples[:window])
	report.RecentAvg = meanOf(samples[len(samples)-window:])

	if report.BaselineAvg > 0 {
		report.ChangePct = (report.RecentAvg - report.BaselineAvg) / report.BaselineAvg * 100
		report.Regression = report.RecentAvg > report.BaselineAvg*regressionThreshold
	}
	return report, nil
}

func meanOf(samples []models.MetricSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples))
}
