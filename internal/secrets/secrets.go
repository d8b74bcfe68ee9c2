// Package secrets handles client secret material: generation of plaintext
// secrets, one-way hashing for storage, and constant-time verification.
//
// Hashes are unsalted SHA-256 hex digests for compatibility with rows
// already in the store.
package secrets

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Generate returns a fresh plaintext secret. The value is returned to the
// caller exactly once at creation time; only its hash is ever persisted.
func Generate() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Hash returns the hex SHA-256 digest of the plaintext.
func Hash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the plaintext hashes to storedHash. The comparison
// is constant-time.
func Verify(plaintext, storedHash string) bool {
	computed := Hash(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
