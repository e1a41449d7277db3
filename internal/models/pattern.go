package models

import "time"

// Trend describes how a pattern's frequency is moving between sweeps.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Impact estimates the business blast radius of a pattern.
type Impact struct {
	UserCount       int     `json:"userCount"`
	SessionCount    int     `json:"sessionCount"`
	RequestCount    int64   `json:"requestCount"`
	RevenueEstimate float64 `json:"revenueEstimate,omitempty"`
}

// ErrorPattern is the aggregate for all events sharing a fingerprint.
// Frequency and Trend are recomputed only by the periodic sweep; ingestion
// touches Count, LastSeen and the affected-user set.
type ErrorPattern struct {
	ID            string    `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	Count         int64     `json:"count"`
	FirstSeen     time.Time `json:"firstSeen"`
	LastSeen      time.Time `json:"lastSeen"`
	Frequency     float64   `json:"frequency"` // events per hour since first seen
	Trend         Trend     `json:"trend"`
	Impact        Impact    `json:"impact"`
	AffectedUsers []string  `json:"affectedUsers,omitempty"`
	RelatedErrors []string  `json:"relatedErrors,omitempty"`
	LastSeverity  Severity  `json:"lastSeverity,omitempty"`
}

// ErrorStats summarises live patterns within a time window.
type ErrorStats struct {
	TotalErrors    int64   `json:"totalErrors"`
	CriticalErrors int64   `json:"criticalErrors"`
	AffectedUsers  int     `json:"affectedUsers"`
	ErrorRate      float64 `json:"errorRate"` // events per hour over the window
	PatternCount   int     `json:"patternCount"`
}
