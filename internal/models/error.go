package models

import "time"

// Severity captures impact levels for faults and classifications.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category enumerates fault origins.
type Category string

const (
	CategoryApplication Category = "application"
	CategorySystem      Category = "system"
	CategoryNetwork     Category = "network"
	CategoryDatabase    Category = "database"
	CategoryExternal    Category = "external"
	CategoryUser        Category = "user"
)

// Classification is the rule-derived categorisation attached to an error
// event. It is produced once at ingestion and never recomputed.
type Classification struct {
	Category    Category `json:"category"`
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Priority    int      `json:"priority"`
	RuleDerived bool     `json:"ruleDerived"`
	Confidence  float64  `json:"confidence"`
}

// DefaultClassification is returned when no rule matches. The low confidence
// marks the event as unclassified for downstream consumers.
func DefaultClassification() Classification {
	return Classification{
		Category:    CategoryApplication,
		Type:        "unknown",
		Severity:    SeverityMedium,
		Priority:    5,
		RuleDerived: false,
		Confidence:  0.3,
	}
}

// ErrorContext locates a fault in the codebase.
type ErrorContext struct {
	Service   string `json:"service"`
	Module    string `json:"module"`
	Function  string `json:"function,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Component string `json:"component,omitempty"`
}

// UserContext identifies the user and request associated with an event.
type UserContext struct {
	UserID    string `json:"userId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Resolution records the human workflow outcome for an error. It is the only
// part of an ErrorEvent mutated after ingestion.
type Resolution struct {
	Status     string    `json:"status"`
	ResolvedBy string    `json:"resolvedBy,omitempty"`
	ResolvedAt time.Time `json:"resolvedAt,omitempty"`
	Notes      string    `json:"notes,omitempty"`
}

// ErrorEvent is one occurrence of a fault. Immutable after ingestion except
// for Resolution.
type ErrorEvent struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Severity       Severity          `json:"severity"`
	Message        string            `json:"message"`
	StackTrace     string            `json:"stackTrace,omitempty"`
	CorrelationID  string            `json:"correlationId,omitempty"`
	Context        ErrorContext      `json:"context"`
	Tags           map[string]string `json:"tags,omitempty"`
	Extra          map[string]any    `json:"extra,omitempty"`
	User           *UserContext      `json:"user,omitempty"`
	Environment    string            `json:"environment,omitempty"`
	Release        string            `json:"release,omitempty"`
	Classification Classification    `json:"classification"`
	Resolution     *Resolution       `json:"resolution,omitempty"`
	Fingerprint    string            `json:"fingerprint"`
}
