package auth

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes passwords with bcrypt after appending a server-wide
// secret pepper. The pepper is process configuration, never stored per user.
type PasswordHasher struct {
	pepper string
	cost   int
}

func NewPasswordHasher(pepper string, cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{pepper: pepper, cost: cost}
}

// prehash folds the peppered password to a fixed 44-byte digest. bcrypt
// rejects inputs over 72 bytes, which would otherwise break long passwords
// and long peppers.
func (h *PasswordHasher) prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password + h.pepper))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", NewValidationError("password must be a non-empty string")
	}
	bytes, err := bcrypt.GenerateFromPassword(h.prehash(password), h.cost)
	return string(bytes), err
}

// Verify never returns an error: any failure, including empty inputs or a
// malformed hash, reads as a mismatch.
func (h *PasswordHasher) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), h.prehash(password)) == nil
}
