package models

import "time"

// Session is a server-side session row. Only the sha256 hash of the opaque
// token is stored; the raw token lives in the client's cookie.
type Session struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	UserID     string     `bson:"userId" json:"-"`
	TokenHash  string     `bson:"tokenHash" json:"-"`
	CreatedAt  time.Time  `bson:"createdAt" json:"created_at"`
	ExpiresAt  time.Time  `bson:"expiresAt" json:"expires_at"`
	LastSeenAt time.Time  `bson:"lastSeenAt" json:"last_seen_at"`
	RevokedAt  *time.Time `bson:"revokedAt,omitempty" json:"revoked_at"`
	UserAgent  string     `bson:"userAgent" json:"user_agent"`
	IP         string     `bson:"ip" json:"ip"`
}

// Active reports whether the session is usable at the given instant:
// not revoked, not past its expiry, and last seen within the idle window.
func (s *Session) Active(now time.Time, idleTimeout time.Duration) bool {
	if s.RevokedAt != nil {
		return false
	}
	if !now.Before(s.ExpiresAt) {
		return false
	}
	return now.Sub(s.LastSeenAt) < idleTimeout
}
