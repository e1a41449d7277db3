// Package storage persists events, pattern snapshots and metric time series
// through the key-value collaborator, and retains the in-memory metric
// history that backs trend analysis. The in-memory state is authoritative for
// the process lifetime; the key-value copies are derived snapshots.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/cache"
	"github.com/vigilstack/vigil-telemetry/internal/models"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

const (
	errorTTL       = 7 * 24 * time.Hour
	performanceTTL = 30 * 24 * time.Hour
	metricTTL      = 30 * 24 * time.Hour
	patternTTL     = 30 * 24 * time.Hour

	// historyRetention bounds the in-memory time series per metric.
	historyRetention = 7 * 24 * time.Hour
)

// Store is the typed persistence layer over the key-value provider.
type Store struct {
	provider cache.Provider
	prefix   string
	logger   *slog.Logger

	mu      sync.Mutex
	history map[string][]models.MetricSample
}

// New constructs a Store with the given key prefix.
func New(provider cache.Provider, prefix string, logger *slog.Logger) *Store {
	if provider == nil {
		provider = cache.NoopProvider{}
	}
	if prefix == "" {
		prefix = "vigil"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		provider: provider,
		prefix:   prefix,
		logger:   logger,
		history:  make(map[string][]models.MetricSample),
	}
}

// SaveError persists an error record with the 7-day retention.
func (s *Store) SaveError(ctx context.Context, event models.ErrorEvent) error {
	return s.putJSON(ctx, s.key("errors", event.ID), event, errorTTL, "storage.SaveError")
}

// SavePerformance persists a performance record with the 30-day retention.
func (s *Store) SavePerformance(ctx context.Context, event models.PerformanceEvent) error {
	return s.putJSON(ctx, s.key("performance", event.ID), event, performanceTTL, "storage.SavePerformance")
}

// StorePattern persists a pattern snapshot keyed by fingerprint.
func (s *Store) StorePattern(ctx context.Context, pattern models.ErrorPattern) error {
	return s.putJSON(ctx, s.key("patterns", pattern.Fingerprint), pattern, patternTTL, "storage.StorePattern")
}

// AppendMetricSample retains the sample in the metric's in-memory history and
// writes the minute-bucketed copy to the key-value store.
func (s *Store) AppendMetricSample(ctx context.Context, metric string, sample models.MetricSample) error {
	s.mu.Lock()
	series := append(s.history[metric], sample)
	cutoff := sample.Timestamp.Add(-historyRetention)
	for len(series) > 0 && series[0].Timestamp.Before(cutoff) {
		series = series[1:]
	}
	s.history[metric] = series
	s.mu.Unlock()

	bucket := utils.MinuteBucket(sample.Timestamp)
	key := s.key("metrics", fmt.Sprintf("%s:%d", metric, bucket))
	return s.putJSON(ctx, key, sample, metricTTL, "storage.AppendMetricSample")
}

// MetricHistory returns the retained samples for a metric at or after since,
// oldest first.
func (s *Store) MetricHistory(_ context.Context, metric string, since time.Time) ([]models.MetricSample, error) {
	s.mu.Lock()
	series := s.history[metric]
	out := make([]models.MetricSample, 0, len(series))
	for _, sample := range series {
		if sample.Timestamp.Before(since) {
			continue
		}
		out = append(out, sample)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// LoadError fetches a persisted error record.
func (s *Store) LoadError(ctx context.Context, id string) (models.ErrorEvent, error) {
	var event models.ErrorEvent
	err := s.getJSON(ctx, s.key("errors", id), &event, "storage.LoadError")
	return event, err
}

// LoadPattern fetches a persisted pattern snapshot.
func (s *Store) LoadPattern(ctx context.Context, fingerprint string) (models.ErrorPattern, error) {
	var pattern models.ErrorPattern
	err := s.getJSON(ctx, s.key("patterns", fingerprint), &pattern, "storage.LoadPattern")
	return pattern, err
}

// Close releases the underlying provider.
func (s *Store) Close() error {
	return s.provider.Close()
}

func (s *Store) key(kind, suffix string) string {
	return s.prefix + ":" + kind + ":" + suffix
}

func (s *Store) putJSON(ctx context.Context, key string, value any, ttl time.Duration, op string) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return utils.NewAppError(op, "marshal "+key, err)
	}
	if err := s.provider.Set(ctx, key, payload, ttl); err != nil {
		return utils.NewAppError(op, "write "+key, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, out any, op string) error {
	payload, err := s.provider.Get(ctx, key)
	if err != nil {
		return utils.NewAppError(op, "read "+key, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return utils.NewAppError(op, "decode "+key, err)
	}
	return nil
}
