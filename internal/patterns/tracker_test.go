package patterns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

type fakeStore struct {
	mu     sync.Mutex
	stored []models.ErrorPattern
}

func (f *fakeStore) StorePattern(_ context.Context, pattern models.ErrorPattern) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = append(f.stored, pattern)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func event(fingerprint, userID string, ts time.Time) models.ErrorEvent {
	e := models.ErrorEvent{
		ID:          "evt-" + userID + ts.String(),
		Timestamp:   ts,
		Message:     "db connection lost",
		Fingerprint: fingerprint,
	}
	if userID != "" {
		e.User = &models.UserContext{UserID: userID}
	}
	return e
}

func TestObserveAggregatesCountAndUsers(t *testing.T) {
	store := &fakeStore{}
	tracker := NewTracker(store, nil)
	ctx := context.Background()
	now := time.Now()

	users := []string{"u1", "u2", "u1", "u3", "u2"}
	var last models.ErrorPattern
	for i, user := range users {
		last = tracker.Observe(ctx, event("fp-1", user, now.Add(time.Duration(i)*time.Second)))
	}

	if last.Count != 5 {
		t.Fatalf("expected count 5, got %d", last.Count)
	}
	if last.Impact.UserCount != 3 {
		t.Fatalf("expected 3 distinct users, got %d", last.Impact.UserCount)
	}
	if store.count() != 5 {
		t.Fatalf("expected a snapshot persisted per observation, got %d", store.count())
	}
	if last.Trend != models.TrendStable {
		t.Fatalf("ingestion must not move trend, got %s", last.Trend)
	}
	if last.Frequency != 0 {
		t.Fatalf("ingestion must not compute frequency, got %f", last.Frequency)
	}
}

func TestObserveConcurrentSameFingerprint(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	const goroutines = 8
	const perGoroutine = 50
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				tracker.Observe(ctx, event("fp-shared", "", now))
			}
		}()
	}
	wg.Wait()

	got := tracker.List(1)
	if len(got) != 1 || got[0].Count != goroutines*perGoroutine {
		t.Fatalf("lost updates: %+v", got)
	}
}

func TestSweepEvictsIdlePatterns(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	tracker.Observe(ctx, event("fp-stale", "", now.Add(-25*time.Hour)))
	tracker.Observe(ctx, event("fp-live", "", now.Add(-time.Minute)))

	tracker.Sweep(ctx, now)

	if tracker.Len() != 1 {
		t.Fatalf("expected one pattern after eviction, got %d", tracker.Len())
	}
	remaining := tracker.List(0)
	if remaining[0].Fingerprint != "fp-live" {
		t.Fatalf("wrong pattern evicted: %s", remaining[0].Fingerprint)
	}
}

func TestSweepComputesFrequencyAndAlerts(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	// 30 events over one hour: 30/h, above the alert bar.
	firstSeen := now.Add(-time.Hour)
	for i := 0; i < 30; i++ {
		tracker.Observe(ctx, event("fp-hot", "", firstSeen.Add(time.Duration(i)*time.Minute)))
	}

	// First sweep establishes a baseline frequency; no previous frequency
	// exists so trend stays stable and nothing alerts.
	if alerts := tracker.Sweep(ctx, now); len(alerts) != 0 {
		t.Fatalf("first sweep must not alert, got %d", len(alerts))
	}

	// Double the event count, then sweep again: frequency more than doubles
	// relative to elapsed time, trend turns increasing, and an alert fires.
	for i := 0; i < 90; i++ {
		tracker.Observe(ctx, event("fp-hot", "", now))
	}
	alerts := tracker.Sweep(ctx, now.Add(time.Minute))
	if len(alerts) != 1 {
		t.Fatalf("expected one pattern alert, got %d", len(alerts))
	}
	alert := alerts[0]
	if alert.Trend != models.TrendIncreasing {
		t.Fatalf("expected increasing trend, got %s", alert.Trend)
	}
	if alert.Frequency <= 10 {
		t.Fatalf("expected frequency above alert bar, got %f", alert.Frequency)
	}
	if alert.Impact.RequestCount != alert.Count {
		t.Fatalf("request count must equal event count")
	}
	if alert.Impact.SessionCount != int(1.2*float64(alert.Count)) {
		t.Fatalf("unexpected session estimate: %d for count %d", alert.Impact.SessionCount, alert.Count)
	}
}

func TestSweepRevenueEstimateAboveUserFloor(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 150; i++ {
		tracker.Observe(ctx, event("fp-wide", string(rune('a'+i%26))+string(rune('0'+i/26)), now))
	}
	tracker.Sweep(ctx, now.Add(time.Second))

	pattern := tracker.List(1)[0]
	if pattern.Impact.UserCount <= 100 {
		t.Fatalf("test setup expected >100 users, got %d", pattern.Impact.UserCount)
	}
	want := float64(pattern.Impact.UserCount) * 25.0
	if pattern.Impact.RevenueEstimate != want {
		t.Fatalf("expected revenue %f, got %f", want, pattern.Impact.RevenueEstimate)
	}
}

func TestListOrdersByCountDesc(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		tracker.Observe(ctx, event("fp-small", "", now))
	}
	for i := 0; i < 7; i++ {
		tracker.Observe(ctx, event("fp-big", "", now))
	}

	got := tracker.List(10)
	if len(got) != 2 || got[0].Fingerprint != "fp-big" || got[1].Fingerprint != "fp-small" {
		t.Fatalf("unexpected ordering: %+v", got)
	}
	if limited := tracker.List(1); len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestStatsFiltersByWindow(t *testing.T) {
	tracker := NewTracker(nil, nil)
	ctx := context.Background()
	now := time.Now()

	critical := event("fp-crit", "u1", now.Add(-10*time.Minute))
	critical.Classification.Severity = models.SeverityCritical
	tracker.Observe(ctx, critical)
	tracker.Observe(ctx, event("fp-recent", "u2", now.Add(-20*time.Minute)))
	tracker.Observe(ctx, event("fp-old", "u3", now.Add(-3*time.Hour)))

	stats := tracker.Stats(time.Hour, now)
	if stats.PatternCount != 2 {
		t.Fatalf("expected 2 window-live patterns, got %d", stats.PatternCount)
	}
	if stats.TotalErrors != 2 {
		t.Fatalf("expected 2 total errors, got %d", stats.TotalErrors)
	}
	if stats.CriticalErrors != 1 {
		t.Fatalf("expected 1 critical error, got %d", stats.CriticalErrors)
	}
	if stats.AffectedUsers != 2 {
		t.Fatalf("expected 2 affected users, got %d", stats.AffectedUsers)
	}
	if stats.ErrorRate != 2 {
		t.Fatalf("expected rate 2/h, got %f", stats.ErrorRate)
	}
}
