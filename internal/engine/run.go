package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vigilstack/vigil-telemetry/internal/metrics"
)

// Run drives the periodic pattern and trend sweeps until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		ticker := time.NewTicker(e.opts.PatternSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				e.sweepPatterns(ctx)
			}
		}
	})

	group.Go(func() error {
		ticker := time.NewTicker(e.opts.TrendSweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				e.sweepTrends(ctx)
			}
		}
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// sweepPatterns recomputes pattern aggregates and emits alerts for patterns
// that crossed the frequency bar. Overlapping invocations are skipped.
func (e *Engine) sweepPatterns(ctx context.Context) {
	if !e.patternSweep.TryLock() {
		e.logger.Debug("pattern sweep still running, skipping")
		return
	}
	defer e.patternSweep.Unlock()

	start := time.Now()
	alerts := e.tracker.Sweep(ctx, time.Now().UTC())
	for _, pattern := range alerts {
		e.bus.Publish(SignalPatternAlert, pattern)
		e.logger.Warn("error pattern accelerating",
			slog.String("pattern", pattern.ID),
			slog.Float64("frequency", pattern.Frequency),
			slog.Int64("count", pattern.Count))
	}
	metrics.ObserveSweep("patterns", time.Since(start))
}

// sweepTrends checks the configured metrics for performance regressions.
func (e *Engine) sweepTrends(ctx context.Context) {
	if e.trends == nil || len(e.opts.TrendMetrics) == 0 {
		return
	}
	if !e.trendSweep.TryLock() {
		e.logger.Debug("trend sweep still running, skipping")
		return
	}
	defer e.trendSweep.Unlock()

	start := time.Now()
	for _, metric := range e.opts.TrendMetrics {
		report, err := e.trends.CheckRegression(ctx, metric)
		if err != nil {
			e.logger.Warn("regression check failed",
				slog.String("metric", metric), slog.Any("error", err))
			continue
		}
		if report.Regression {
			e.bus.Publish(SignalPerformanceRegression, report)
			e.logger.Warn("performance regression detected",
				slog.String("metric", metric),
				slog.Float64("changePct", report.ChangePct))
		}
	}
	metrics.ObserveSweep("trends", time.Since(start))
}
