// Package patterns maintains the fingerprint-keyed aggregates for recurring
// faults: live counts, affected users, trend and impact estimates.
package patterns

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vigilstack/vigil-telemetry/internal/models"
	"github.com/vigilstack/vigil-telemetry/internal/utils"
)

const (
	// defaultIdleEviction removes patterns not seen for 24x the one-hour
	// analysis window.
	defaultIdleEviction = 24 * time.Hour
	// defaultAlertFrequency is the events-per-hour bar for pattern alerts.
	defaultAlertFrequency = 10.0
	// revenuePerAffectedUser is the flat per-user rate applied once a pattern
	// touches more than revenueUserFloor users.
	revenuePerAffectedUser = 25.0
	revenueUserFloor       = 100
	// sessionEstimateFactor converts raw event count to estimated sessions.
	sessionEstimateFactor = 1.2
	// maxRelatedErrors bounds the per-pattern related-event list.
	maxRelatedErrors = 100

	trendIncreaseRatio = 1.5
	trendDecreaseRatio = 0.5
)

// Store abstracts snapshot persistence for patterns.
type Store interface {
	StorePattern(ctx context.Context, pattern models.ErrorPattern) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, pattern models.ErrorPattern) error

// StorePattern implements Store.
func (f StoreFunc) StorePattern(ctx context.Context, pattern models.ErrorPattern) error {
	return f(ctx, pattern)
}

// Tracker owns the live pattern table. Observe and Sweep serialize on one
// mutex, so sweeps never read a half-updated aggregate and concurrent
// observations of the same fingerprint never lose counts.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*aggregate

	store          Store
	logger         *slog.Logger
	idleEviction   time.Duration
	alertFrequency float64
}

type aggregate struct {
	id            string
	fingerprint   string
	count         int64
	firstSeen     time.Time
	lastSeen      time.Time
	frequency     float64
	trend         models.Trend
	impact        models.Impact
	affectedUsers map[string]struct{}
	relatedErrors []string
	lastSeverity  models.Severity
}

// NewTracker constructs a Tracker with the default eviction window and alert
// bar; store may be nil when persistence is off.
func NewTracker(store Store, logger *slog.Logger) *Tracker {
	return NewTrackerWithLimits(store, logger, defaultIdleEviction, defaultAlertFrequency)
}

// NewTrackerWithLimits overrides the idle-eviction window and the
// events-per-hour alert bar. Non-positive values fall back to the defaults.
func NewTrackerWithLimits(store Store, logger *slog.Logger, idleEviction time.Duration, alertFrequency float64) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if idleEviction <= 0 {
		idleEviction = defaultIdleEviction
	}
	if alertFrequency <= 0 {
		alertFrequency = defaultAlertFrequency
	}
	return &Tracker{
		entries:        make(map[string]*aggregate),
		store:          store,
		logger:         logger,
		idleEviction:   idleEviction,
		alertFrequency: alertFrequency,
	}
}

// Observe creates or updates the pattern for the event's fingerprint and
// persists the updated snapshot. Frequency and trend are left to the sweep;
// ingestion only advances count, lastSeen and the affected-user set.
func (t *Tracker) Observe(ctx context.Context, event models.ErrorEvent) models.ErrorPattern {
	t.mu.Lock()
	agg, ok := t.entries[event.Fingerprint]
	if !ok {
		agg = &aggregate{
			id:            "pattern-" + shortFingerprint(event.Fingerprint),
			fingerprint:   event.Fingerprint,
			firstSeen:     event.Timestamp,
			lastSeen:      event.Timestamp,
			trend:         models.TrendStable,
			affectedUsers: make(map[string]struct{}),
		}
		t.entries[event.Fingerprint] = agg
	}

	agg.count++
	agg.lastSeen = event.Timestamp
	agg.lastSeverity = event.Classification.Severity
	if event.User != nil && event.User.UserID != "" {
		if _, seen := agg.affectedUsers[event.User.UserID]; !seen {
			agg.affectedUsers[event.User.UserID] = struct{}{}
			agg.impact.UserCount = len(agg.affectedUsers)
		}
	}
	if len(agg.relatedErrors) < maxRelatedErrors {
		agg.relatedErrors = append(agg.relatedErrors, event.ID)
	}

	snapshot := agg.snapshot()
	t.mu.Unlock()

	t.persist(ctx, snapshot)
	return snapshot
}

// Sweep recomputes frequency, trend and impact for every live pattern,
// evicts idle entries, and returns the patterns that crossed the alert bar.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) []models.ErrorPattern {
	var alerts []models.ErrorPattern
	var snapshots []models.ErrorPattern

	t.mu.Lock()
	for fingerprint, agg := range t.entries {
		if now.Sub(agg.lastSeen) > t.idleEviction {
			delete(t.entries, fingerprint)
			continue
		}

		previous := agg.frequency
		agg.frequency = float64(agg.count) / utils.HoursSince(agg.firstSeen, now)

		switch {
		case previous > 0 && agg.frequency > previous*trendIncreaseRatio:
			agg.trend = models.TrendIncreasing
		case previous > 0 && agg.frequency < previous*trendDecreaseRatio:
			agg.trend = models.TrendDecreasing
		default:
			agg.trend = models.TrendStable
		}

		agg.impact.SessionCount = int(sessionEstimateFactor * float64(agg.count))
		agg.impact.RequestCount = agg.count
		if len(agg.affectedUsers) > revenueUserFloor {
			agg.impact.RevenueEstimate = float64(len(agg.affectedUsers)) * revenuePerAffectedUser
		}

		snapshot := agg.snapshot()
		snapshots = append(snapshots, snapshot)
		if agg.trend == models.TrendIncreasing && agg.frequency > t.alertFrequency {
			alerts = append(alerts, snapshot)
		}
	}
	t.mu.Unlock()

	for _, snapshot := range snapshots {
		t.persist(ctx, snapshot)
	}
	return alerts
}

// List returns up to limit live patterns ordered by count descending.
func (t *Tracker) List(limit int) []models.ErrorPattern {
	t.mu.Lock()
	patterns := make([]models.ErrorPattern, 0, len(t.entries))
	for _, agg := range t.entries {
		patterns = append(patterns, agg.snapshot())
	}
	t.mu.Unlock()

	sort.Slice(patterns, func(i, j int) bool {
		return patterns[i].Count > patterns[j].Count
	})
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}

// Stats summarises patterns whose lastSeen falls inside the window ending at now.
func (t *Tracker) Stats(window time.Duration, now time.Time) models.ErrorStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := models.ErrorStats{}
	users := make(map[string]struct{})
	for _, agg := range t.entries {
		if now.Sub(agg.lastSeen) > window {
			continue
		}
		stats.PatternCount++
		stats.TotalErrors += agg.count
		if agg.lastSeverity == models.SeverityCritical {
			stats.CriticalErrors += agg.count
		}
		for user := range agg.affectedUsers {
			users[user] = struct{}{}
		}
	}
	stats.AffectedUsers = len(users)
	if window > 0 {
		stats.ErrorRate = float64(stats.TotalErrors) / window.Hours()
	}
	return stats
}

// Len reports the live pattern count.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) persist(ctx context.Context, snapshot models.ErrorPattern) {
	if t.store == nil {
		return
	}
	if err := t.store.StorePattern(ctx, snapshot); err != nil {
		t.logger.Warn("pattern snapshot persist failed",
			slog.String("fingerprint", snapshot.Fingerprint), slog.Any("error", err))
	}
}

func (agg *aggregate) snapshot() models.ErrorPattern {
	users := make([]string, 0, len(agg.affectedUsers))
	for user := range agg.affectedUsers {
		users = append(users, user)
	}
	sort.Strings(users)

	return models.ErrorPattern{
		ID:            agg.id,
		Fingerprint:   agg.fingerprint,
		Count:         agg.count,
		FirstSeen:     agg.firstSeen,
		LastSeen:      agg.lastSeen,
		Frequency:     agg.frequency,
		Trend:         agg.trend,
		Impact:        agg.impact,
		AffectedUsers: users,
		RelatedErrors: append([]string(nil), agg.relatedErrors...),
		LastSeverity:  agg.lastSeverity,
	}
}

func shortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}
	return fingerprint
}
