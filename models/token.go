package models

import "time"

type TokenKind string

const (
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailVerification TokenKind = "email_verification"
)

// AuthToken is a single-use password-reset or email-verification token row.
// Once UsedAt is set, redemption fails permanently.
type AuthToken struct {
	ID        string     `bson:"_id,omitempty"`
	UserID    string     `bson:"userId"`
	Kind      TokenKind  `bson:"kind"`
	TokenHash string     `bson:"tokenHash"`
	CreatedAt time.Time  `bson:"createdAt"`
	ExpiresAt time.Time  `bson:"expiresAt"`
	UsedAt    *time.Time `bson:"usedAt,omitempty"`
}

// Redeemable reports whether the token can still be consumed.
func (t *AuthToken) Redeemable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
