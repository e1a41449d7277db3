package models

import "time"

// PerformanceType enumerates measurement sources.
type PerformanceType string

const (
	PerformanceWebVital      PerformanceType = "web-vital"
	PerformanceAPICall       PerformanceType = "api-call"
	PerformanceDatabaseQuery PerformanceType = "database-query"
	PerformanceExternalCall  PerformanceType = "external-call"
)

// PerformanceContext locates a measurement.
type PerformanceContext struct {
	Service   string `json:"service"`
	Endpoint  string `json:"endpoint,omitempty"`
	Method    string `json:"method,omitempty"`
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Browser   string `json:"browser,omitempty"`
	Device    string `json:"device,omitempty"`
	Region    string `json:"region,omitempty"`
}

// Thresholds carries the alerting levels for a measurement. A zero value
// disables the corresponding check.
type Thresholds struct {
	Target   float64 `json:"target,omitempty"`
	Warning  float64 `json:"warning,omitempty"`
	Critical float64 `json:"critical,omitempty"`
}

// AnomalyDetection is the outcome of the rolling baseline test, attached to
// its owning performance event after evaluation.
type AnomalyDetection struct {
	Detected   bool    `json:"detected"`
	Confidence float64 `json:"confidence"`
	Baseline   float64 `json:"baseline"`
	Deviation  float64 `json:"deviation"`
	Reason     string  `json:"reason"`
}

// PerformanceEvent is one measurement. Immutable once created.
type PerformanceEvent struct {
	ID            string             `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	CorrelationID string             `json:"correlationId,omitempty"`
	Type          PerformanceType    `json:"type"`
	Metric        string             `json:"metric"`
	Value         float64            `json:"value"`
	Unit          string             `json:"unit"`
	Context       PerformanceContext `json:"context"`
	Thresholds    Thresholds         `json:"thresholds"`
	Anomaly       *AnomalyDetection  `json:"anomaly,omitempty"`
}

// MetricSample is one point in a metric's retained time series.
type MetricSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}
