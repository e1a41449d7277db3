package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/cache"
	"github.com/vigilstack/vigil-telemetry/internal/models"
)

type recordingProvider struct {
	mu   sync.Mutex
	keys map[string]time.Duration
	data map[string][]byte
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{keys: make(map[string]time.Duration), data: make(map[string][]byte)}
}

func (p *recordingProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	value, ok := p.data[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return append([]byte(nil), value...), nil
}

func (p *recordingProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[key] = ttl
	p.data[key] = append([]byte(nil), value...)
	return nil
}

func (p *recordingProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.data, key)
	return nil
}

func (p *recordingProvider) Close() error { return nil }

func (p *recordingProvider) ttlFor(key string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ttl, ok := p.keys[key]
	return ttl, ok
}

func TestSaveErrorKeyAndTTL(t *testing.T) {
	provider := newRecordingProvider()
	store := New(provider, "vigil", nil)
	ctx := context.Background()

	event := models.ErrorEvent{ID: "err-1", Message: "boom", Timestamp: time.Now()}
	if err := store.SaveError(ctx, event); err != nil {
		t.Fatalf("save error: %v", err)
	}

	ttl, ok := provider.ttlFor("vigil:errors:err-1")
	if !ok {
		t.Fatalf("expected key vigil:errors:err-1 to be written")
	}
	if ttl != 7*24*time.Hour {
		t.Fatalf("expected 7-day TTL, got %v", ttl)
	}

	loaded, err := store.LoadError(ctx, "err-1")
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if loaded.Message != "boom" {
		t.Fatalf("round trip lost message: %+v", loaded)
	}
}

func TestSavePerformanceAndPatternTTLs(t *testing.T) {
	provider := newRecordingProvider()
	store := New(provider, "vigil", nil)
	ctx := context.Background()

	perf := models.PerformanceEvent{ID: "perf-1", Metric: "LCP", Value: 1200}
	if err := store.SavePerformance(ctx, perf); err != nil {
		t.Fatalf("save performance: %v", err)
	}
	if ttl, _ := provider.ttlFor("vigil:performance:perf-1"); ttl != 30*24*time.Hour {
		t.Fatalf("expected 30-day performance TTL, got %v", ttl)
	}

	pattern := models.ErrorPattern{ID: "pattern-1", Fingerprint: "fp-1", Count: 3}
	if err := store.StorePattern(ctx, pattern); err != nil {
		t.Fatalf("store pattern: %v", err)
	}
	if ttl, _ := provider.ttlFor("vigil:patterns:fp-1"); ttl != 30*24*time.Hour {
		t.Fatalf("expected 30-day pattern TTL, got %v", ttl)
	}
}

func TestAppendMetricSampleWritesMinuteBucket(t *testing.T) {
	provider := newRecordingProvider()
	store := New(provider, "vigil", nil)
	ctx := context.Background()

	ts := time.Unix(1_700_000_123, 0)
	if err := store.AppendMetricSample(ctx, "api_response_time", models.MetricSample{Timestamp: ts, Value: 250}); err != nil {
		t.Fatalf("append sample: %v", err)
	}

	found := false
	provider.mu.Lock()
	for key := range provider.keys {
		if strings.HasPrefix(key, "vigil:metrics:api_response_time:") {
			found = true
		}
	}
	provider.mu.Unlock()
	if !found {
		t.Fatalf("expected a minute-bucketed metrics key")
	}
}

func TestMetricHistoryPrunesAndFilters(t *testing.T) {
	store := New(cache.NewMemoryProvider(), "vigil", nil)
	ctx := context.Background()
	now := time.Now()

	// A sample older than the retention window, then fresh ones.
	old := models.MetricSample{Timestamp: now.Add(-8 * 24 * time.Hour), Value: 1}
	if err := store.AppendMetricSample(ctx, "lcp", old); err != nil {
		t.Fatalf("append: %v", err)
	}
	for i := 0; i < 5; i++ {
		sample := models.MetricSample{Timestamp: now.Add(time.Duration(i) * time.Minute), Value: float64(i)}
		if err := store.AppendMetricSample(ctx, "lcp", sample); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := store.MetricHistory(ctx, "lcp", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("expected pruned history of 5, got %d", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Fatalf("history not ordered")
		}
	}
}

func TestLoadErrorMiss(t *testing.T) {
	store := New(cache.NewMemoryProvider(), "vigil", nil)
	if _, err := store.LoadError(context.Background(), "nope"); !errors.Is(err, cache.ErrCacheMiss) {
		t.Fatalf("expected wrapped cache miss, got %v", err)
	}
}
