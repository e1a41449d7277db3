package classify

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintDelimiter separates the fields hashed into a fingerprint. Fixed
// so the same (message, service, module) triple always produces the same key.
const fingerprintDelimiter = "\x1f"

// Fingerprint derives the deterministic grouping key for a fault. It hashes
// only message, service and module; stack traces and line numbers are
// deliberately excluded so refactors do not split an existing group.
func Fingerprint(message, service, module string) string {
	joined := strings.Join([]string{message, service, module}, fingerprintDelimiter)
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
