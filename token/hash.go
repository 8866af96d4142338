package token

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// StructuralHash hashes the structural portion of a signed credential: the
// bytes preceding the signature segment. Verifying a presented credential
// against a stored hash therefore never requires the signing secret.
func StructuralHash(signed string) string {
	structural := signed
	if idx := strings.LastIndex(signed, "."); idx != -1 {
		structural = signed[:idx]
	}
	sum := sha256.Sum256([]byte(structural))
	return hex.EncodeToString(sum[:])
}

// HashEquals compares two hashes in constant time.
func HashEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
