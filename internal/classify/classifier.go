// Package classify maps raw fault messages to durable classifications and
// grouping fingerprints.
package classify

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

// matchedConfidence is the fixed confidence attached when any rule matches.
// Match strength is deliberately not scored; the rules are coarse.
const matchedConfidence = 0.8

// Rule maps a set of case-insensitive message patterns to a fixed
// classification. Rules are evaluated in declaration order and the first rule
// with any matching pattern wins, so ordering is part of the configuration.
type Rule struct {
	Name     string          `yaml:"name"`
	Patterns []string        `yaml:"patterns"`
	Category models.Category `yaml:"category"`
	Type     string          `yaml:"type"`
	Severity models.Severity `yaml:"severity"`
	Priority int             `yaml:"priority"`
}

// RulePackFile is the YAML root structure for an external rule pack.
type RulePackFile struct {
	Rules []Rule `yaml:"rules"`
}

// Classifier is a stateless first-match rule evaluator over a fixed ordered
// rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier loads rules from the provided path, falling back to the
// built-in table when the path is empty or the file does not exist.
func NewClassifier(path string, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return &Classifier{rules: DefaultRules()}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Debug("rule pack not found, using built-in rules", slog.String("path", path))
			return &Classifier{rules: DefaultRules()}, nil
		}
		return nil, err
	}

	var pack RulePackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	if len(pack.Rules) == 0 {
		return &Classifier{rules: DefaultRules()}, nil
	}
	return &Classifier{rules: pack.Rules}, nil
}

// NewClassifierWithRules builds a classifier over an explicit ordered table.
func NewClassifierWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: append([]Rule(nil), rules...)}
}

// Classify evaluates the rule table against the message. First match wins;
// no match returns the default low-confidence classification.
func (c *Classifier) Classify(message string) models.Classification {
	if c == nil {
		return models.DefaultClassification()
	}

	normalized := strings.ToLower(message)
	for _, rule := range c.rules {
		for _, pattern := range rule.Patterns {
			if pattern == "" {
				continue
			}
			if strings.Contains(normalized, strings.ToLower(pattern)) {
				return models.Classification{
					Category:    rule.Category,
					Type:        rule.Type,
					Severity:    rule.Severity,
					Priority:    rule.Priority,
					RuleDerived: true,
					Confidence:  matchedConfidence,
				}
			}
		}
	}
	return models.DefaultClassification()
}

// DefaultRules returns the built-in ordered rule table. Database precedes
// network so a message like "database timeout" classifies as a database
// fault.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "database",
			Patterns: []string{"database", "sql", "deadlock", "connection pool", "query failed", "transaction"},
			Category: models.CategoryDatabase,
			Type:     "database_error",
			Severity: models.SeverityHigh,
			Priority: 2,
		},
		{
			Name:     "network",
			Patterns: []string{"timeout", "connection refused", "dns", "socket", "unreachable", "network"},
			Category: models.CategoryNetwork,
			Type:     "network_error",
			Severity: models.SeverityHigh,
			Priority: 3,
		},
		{
			Name:     "auth",
			Patterns: []string{"unauthorized", "forbidden", "token expired", "authentication", "permission denied"},
			Category: models.CategoryUser,
			Type:     "auth_error",
			Severity: models.SeverityMedium,
			Priority: 4,
		},
		{
			Name:     "validation",
			Patterns: []string{"validation", "invalid input", "missing required", "malformed", "bad request"},
			Category: models.CategoryUser,
			Type:     "validation_error",
			Severity: models.SeverityLow,
			Priority: 6,
		},
	}
}
