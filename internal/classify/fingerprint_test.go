package classify

import "testing"

func TestFingerprintDeterminism(t *testing.T) {
	a := Fingerprint("connection reset", "checkout", "payments")
	b := Fingerprint("connection reset", "checkout", "payments")
	if a != b {
		t.Fatalf("identical triples must collide: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %d chars", len(a))
	}
}

func TestFingerprintFieldSensitivity(t *testing.T) {
	base := Fingerprint("connection reset", "checkout", "payments")

	variants := []string{
		Fingerprint("connection refused", "checkout", "payments"),
		Fingerprint("connection reset", "billing", "payments"),
		Fingerprint("connection reset", "checkout", "cards"),
	}
	for i, v := range variants {
		if v == base {
			t.Fatalf("variant %d unexpectedly collided with base", i)
		}
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	// Concatenation must not let field contents bleed across boundaries.
	a := Fingerprint("ab", "c", "d")
	b := Fingerprint("a", "bc", "d")
	if a == b {
		t.Fatalf("shifted field contents must not collide")
	}
}
