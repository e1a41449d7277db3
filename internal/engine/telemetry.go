// Package engine orchestrates telemetry ingestion: classification, pattern
// tracking, anomaly evaluation, persistence and signal emission.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vigilstack/vigil-telemetry/internal/classify"
	"github.com/vigilstack/vigil-telemetry/internal/detectors"
	"github.com/vigilstack/vigil-telemetry/internal/metrics"
	"github.com/vigilstack/vigil-telemetry/internal/models"
	"github.com/vigilstack/vigil-telemetry/internal/patterns"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

const (
	unknownField = "unknown"
	// persistTimeout bounds each detached persistence or sink write.
	persistTimeout = 5 * time.Second
	// latencyLogEvery controls how often the ingest p95 is logged.
	latencyLogEvery = 100
)

// EventStore is the persistence collaborator.
type EventStore interface {
	SaveError(ctx context.Context, event models.ErrorEvent) error
	SavePerformance(ctx context.Context, event models.PerformanceEvent) error
	AppendMetricSample(ctx context.Context, metric string, sample models.MetricSample) error
}

// ExportSink receives classified faults for external alerting.
type ExportSink interface {
	Forward(ctx context.Context, event models.ErrorEvent) error
}

// Options tune the orchestrator.
type Options struct {
	AutoClassify        bool
	ConfidenceThreshold float64
	AnomalyEnabled      bool
	PatternSweepEvery   time.Duration
	TrendSweepEvery     time.Duration
	TrendMetrics        []string
	SignalBuffer        int
}

// Engine owns the live pattern table, anomaly baselines and metric history
// for the process lifetime. All mutation goes through its methods.
type Engine struct {
	logger     *slog.Logger
	opts       Options
	classifier *classify.Classifier
	anomalies  *detectors.AnomalyDetector
	trends     *detectors.TrendAnalyzer
	tracker    *patterns.Tracker
	store      EventStore
	sink       ExportSink
	bus        *SignalBus
	latencies  *utils.LatencyTracker

	background   sync.WaitGroup
	patternSweep sync.Mutex
	trendSweep   sync.Mutex
}

// New wires the orchestrator. Store and sink may be nil; the engine then
// keeps in-memory state only.
func New(
	logger *slog.Logger,
	opts Options,
	classifier *classify.Classifier,
	anomalies *detectors.AnomalyDetector,
	trends *detectors.TrendAnalyzer,
	tracker *patterns.Tracker,
	store EventStore,
	sink ExportSink,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PatternSweepEvery <= 0 {
		opts.PatternSweepEvery = 5 * time.Minute
	}
	if opts.TrendSweepEvery <= 0 {
		opts.TrendSweepEvery = 10 * time.Minute
	}
	if tracker == nil {
		tracker = patterns.NewTracker(nil, logger)
	}

	return &Engine{
		logger:     logger,
		opts:       opts,
		classifier: classifier,
		anomalies:  anomalies,
		trends:     trends,
		tracker:    tracker,
		store:      store,
		sink:       sink,
		bus:        NewSignalBus(opts.SignalBuffer),
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// Subscribe registers a handler for a signal kind.
func (e *Engine) Subscribe(kind SignalKind, handler SignalHandler) {
	e.bus.Subscribe(kind, handler)
}

// ErrorInput is the normalized fault submission.
type ErrorInput struct {
	Message       string
	StackTrace    string
	Severity      models.Severity
	CorrelationID string
	Context       models.ErrorContext
	Tags          map[string]string
	Extra         map[string]any
	User          *models.UserContext
	Environment   string
	Release       string
}

// RecordError ingests one fault occurrence and returns its identifier.
// Collaborator failures are logged, never surfaced; a validated submission
// always yields an id.
func (e *Engine) RecordError(ctx context.Context, input ErrorInput) (string, error) {
	start := time.Now()

	message := strings.TrimSpace(input.Message)
	if message == "" {
		message = "unknown error"
	}
	eventCtx := input.Context
	if eventCtx.Service == "" {
		eventCtx.Service = unknownField
	}
	if eventCtx.Module == "" {
		eventCtx.Module = unknownField
	}

	// Rule-derived classifications below the confidence bar are discarded in
	// favor of the default, which downstream reads as "unclassified".
	classification := models.DefaultClassification()
	if e.opts.AutoClassify && e.classifier != nil {
		if candidate := e.classifier.Classify(message); candidate.Confidence >= e.opts.ConfidenceThreshold {
			classification = candidate
		}
	}

	severity := input.Severity
	if severity == "" {
		severity = classification.Severity
	}

	event := models.ErrorEvent{
		ID:             uuid.NewString(),
		Timestamp:      time.Now().UTC(),
		Severity:       severity,
		Message:        message,
		StackTrace:     input.StackTrace,
		CorrelationID:  input.CorrelationID,
		Context:        eventCtx,
		Tags:           input.Tags,
		Extra:          input.Extra,
		User:           input.User,
		Environment:    input.Environment,
		Release:        input.Release,
		Classification: classification,
		Fingerprint:    classify.Fingerprint(message, eventCtx.Service, eventCtx.Module),
	}

	e.tracker.Observe(ctx, event)

	e.detach(func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if e.store != nil {
			if err := e.store.SaveError(persistCtx, event); err != nil {
				e.logger.Warn("error record persist failed", slog.String("id", event.ID), slog.Any("error", err))
			}
		}
		if e.sink != nil {
			if err := e.sink.Forward(persistCtx, event); err != nil {
				e.logger.Warn("export sink forward failed", slog.String("id", event.ID), slog.Any("error", err))
			}
		}
	})

	e.bus.Publish(SignalErrorRecorded, event)
	if classification.Severity == models.SeverityCritical {
		e.bus.Publish(SignalCriticalError, event)
	}

	metrics.ObserveEvent("error", metrics.OutcomeAccepted)
	e.observeLatency(start)
	return event.ID, nil
}

// PerformanceInput is the normalized measurement submission.
type PerformanceInput struct {
	Type          models.PerformanceType
	Metric        string
	Value         float64
	Unit          string
	CorrelationID string
	Context       models.PerformanceContext
	Thresholds    models.Thresholds
}

// RecordPerformance ingests one measurement and returns its identifier.
func (e *Engine) RecordPerformance(ctx context.Context, input PerformanceInput) (string, error) {
	start := time.Now()

	eventCtx := input.Context
	if eventCtx.Service == "" {
		eventCtx.Service = unknownField
	}
	metric := strings.TrimSpace(input.Metric)
	if metric == "" {
		metric = unknownField
	}

	event := models.PerformanceEvent{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		CorrelationID: input.CorrelationID,
		Type:          input.Type,
		Metric:        metric,
		Value:         input.Value,
		Unit:          input.Unit,
		Context:       eventCtx,
		Thresholds:    input.Thresholds,
	}

	if e.opts.AnomalyEnabled && e.anomalies != nil {
		detection := e.anomalies.Evaluate(metric, eventCtx.Service, input.Value)
		event.Anomaly = &detection
		if detection.Detected {
			e.bus.Publish(SignalAnomalyDetected, event)
		}
	}

	e.detach(func() {
		persistCtx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if e.store == nil {
			return
		}
		if err := e.store.SavePerformance(persistCtx, event); err != nil {
			e.logger.Warn("performance record persist failed", slog.String("id", event.ID), slog.Any("error", err))
		}
		sample := models.MetricSample{Timestamp: event.Timestamp, Value: event.Value}
		if err := e.store.AppendMetricSample(persistCtx, metric, sample); err != nil {
			e.logger.Warn("metric sample persist failed", slog.String("metric", metric), slog.Any("error", err))
		}
	})

	// Critical takes priority: an event above both thresholds emits exactly
	// one threshold signal.
	switch {
	case event.Thresholds.Critical > 0 && event.Value > event.Thresholds.Critical:
		e.bus.Publish(SignalPerformanceCritical, event)
	case event.Thresholds.Warning > 0 && event.Value > event.Thresholds.Warning:
		e.bus.Publish(SignalPerformanceWarning, event)
	}
	e.bus.Publish(SignalPerformanceRecorded, event)

	metrics.ObserveEvent("performance", metrics.OutcomeAccepted)
	e.observeLatency(start)
	return event.ID, nil
}

// RecordWebVital records a browser vital using the fixed threshold table.
func (e *Engine) RecordWebVital(ctx context.Context, name string, value float64, eventCtx models.PerformanceContext) (string, error) {
	vital, err := lookupWebVital(name)
	if err != nil {
		metrics.ObserveEvent("web-vital", metrics.OutcomeRejected)
		return "", err
	}
	return e.RecordPerformance(ctx, PerformanceInput{
		Type:       models.PerformanceWebVital,
		Metric:     strings.ToUpper(name),
		Value:      value,
		Unit:       vital.Unit,
		Context:    eventCtx,
		Thresholds: vital.Thresholds,
	})
}

// ListPatterns returns up to limit live patterns ordered by count descending.
func (e *Engine) ListPatterns(limit int) []models.ErrorPattern {
	return e.tracker.List(limit)
}

// Stats summarises live patterns seen within the window.
func (e *Engine) Stats(window time.Duration) models.ErrorStats {
	return e.tracker.Stats(window, time.Now().UTC())
}

// Close waits for in-flight background writes and drains the signal bus.
func (e *Engine) Close() {
	e.background.Wait()
	e.bus.Close()
}

// detach runs fn on its own goroutine, tracked so Close can wait for it.
func (e *Engine) detach(fn func()) {
	e.background.Add(1)
	go func() {
		defer e.background.Done()
		fn()
	}()
}

func (e *Engine) observeLatency(start time.Time) {
	e.latencies.Observe(time.Since(start))
	if count := e.latencies.Count(); count >= latencyLogEvery && count%latencyLogEvery == 0 {
		e.logger.Info("ingest latency",
			slog.Duration("p95", e.latencies.Percentile(95)), slog.Int("samples", count))
	}
}
