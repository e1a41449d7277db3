package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vigilstack/vigil-telemetry/internal/models"
)

func TestClassifyDefaultWhenNoRuleMatches(t *testing.T) {
	classifier := NewClassifierWithRules(DefaultRules())

	got := classifier.Classify("something entirely benign happened")
	if got.Category != models.CategoryApplication {
		t.Fatalf("expected application category, got %s", got.Category)
	}
	if got.Type != "unknown" {
		t.Fatalf("expected unknown type, got %s", got.Type)
	}
	if got.Severity != models.SeverityMedium || got.Priority != 5 {
		t.Fatalf("unexpected default severity/priority: %s/%d", got.Severity, got.Priority)
	}
	if got.RuleDerived {
		t.Fatalf("default classification must not be rule-derived")
	}
	if got.Confidence != 0.3 {
		t.Fatalf("expected confidence 0.3, got %f", got.Confidence)
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	classifier := NewClassifierWithRules(DefaultRules())

	// "database timeout" matches both the database and network rules; the
	// database rule is ordered first and must win every time.
	for i := 0; i < 50; i++ {
		got := classifier.Classify("Database TIMEOUT while acquiring connection")
		if got.Category != models.CategoryDatabase {
			t.Fatalf("run %d: expected database category, got %s", i, got.Category)
		}
	}

	reversed := []Rule{
		{Name: "network", Patterns: []string{"timeout"}, Category: models.CategoryNetwork, Type: "network_error", Severity: models.SeverityHigh, Priority: 3},
		{Name: "database", Patterns: []string{"database"}, Category: models.CategoryDatabase, Type: "database_error", Severity: models.SeverityHigh, Priority: 2},
	}
	got := NewClassifierWithRules(reversed).Classify("database timeout")
	if got.Category != models.CategoryNetwork {
		t.Fatalf("expected reversed order to resolve network first, got %s", got.Category)
	}
}

func TestClassifyMatchedConfidence(t *testing.T) {
	classifier := NewClassifierWithRules(DefaultRules())

	got := classifier.Classify("connection refused by upstream")
	if !got.RuleDerived {
		t.Fatalf("expected rule-derived classification")
	}
	if got.Confidence != 0.8 {
		t.Fatalf("expected fixed confidence 0.8, got %f", got.Confidence)
	}
}

func TestNewClassifierLoadsRulePack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	pack := `rules:
  - name: payments
    patterns: ["card declined"]
    category: external
    type: payment_error
    severity: high
    priority: 1
`
	if err := os.WriteFile(path, []byte(pack), 0o600); err != nil {
		t.Fatalf("write pack: %v", err)
	}

	classifier, err := NewClassifier(path, nil)
	if err != nil {
		t.Fatalf("load classifier: %v", err)
	}
	got := classifier.Classify("Card Declined for order 42")
	if got.Category != models.CategoryExternal || got.Type != "payment_error" {
		t.Fatalf("expected rule-pack classification, got %+v", got)
	}
}

func TestNewClassifierMissingPackFallsBack(t *testing.T) {
	classifier, err := NewClassifier("does/not/exist.yaml", nil)
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if got := classifier.Classify("sql deadlock"); got.Category != models.CategoryDatabase {
		t.Fatalf("expected built-in rules after fallback, got %s", got.Category)
	}
}
