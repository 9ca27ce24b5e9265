// Package authtoken implements the §6 domain bearer-token scheme: opaque
// random tokens, never stored raw, looked up by the SHA-256 hex digest of
// the value a caller presents.
package authtoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Generate returns a new random token. Only its Hash is ever persisted;
// the raw value is returned to the caller exactly once (domain creation,
// token rotation).
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Hash returns the hex-encoded SHA-256 digest of a raw token, the form
// stored as Domain.TokenHash and compared against on every request.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
