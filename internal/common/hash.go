package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests the input with SHA-256 and returns lowercase hex. Used
// for idempotency keys and webhook replay fingerprints.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
