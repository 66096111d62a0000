package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const tokenBytes = 32 // 256 bits of entropy, 64 hex chars on the wire

// GenerateToken returns a fresh opaque credential from the CSPRNG. The raw
// value is handed to the client exactly once; only its hash is persisted.
func GenerateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the one-way form stored server-side for sessions, password
// resets, and email verification alike.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
