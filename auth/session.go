package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
)

type SessionStatus int

const (
	SessionValid SessionStatus = iota
	SessionNotFound
	SessionRevoked
	SessionExpired
	SessionIdleTimedOut
)

func (s SessionStatus) String() string {
	switch s {
	case SessionValid:
		return "valid"
	case SessionNotFound:
		return "not_found"
	case SessionRevoked:
		return "revoked"
	case SessionExpired:
		return "expired"
	case SessionIdleTimedOut:
		return "idle_timed_out"
	}
	return "unknown"
}

// SessionConfig carries the time-based invalidation knobs. RollingRenewal of
// zero means fixed-TTL sessions; a positive value extends the expiry to
// now+TTL whenever a validated session was last seen at least that long ago.
type SessionConfig struct {
	TTL            time.Duration
	IdleTimeout    time.Duration
	RollingRenewal time.Duration
	MaxPerUser     int
}

// Metadata is the client context recorded with each issued session.
type Metadata struct {
	UserAgent string
	IP        string
}

// Validation is the outcome of resolving a raw session token. Identity and
// Session are set only when Status is SessionValid.
type Validation struct {
	Status   SessionStatus
	Identity *models.Identity
	Session  *models.Session
}

type SessionManager struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	cfg      SessionConfig

	now func() time.Time
}

func NewSessionManager(sessions repository.SessionRepository, users repository.UserRepository, cfg SessionConfig) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a session for the user and returns the raw token exactly
// once; only its hash is stored. A duplicate-hash collision is retried a
// single time before giving up.
func (m *SessionManager) Issue(ctx context.Context, userID string, meta Metadata) (string, *models.Session, error) {
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := GenerateToken()
		if err != nil {
			return "", nil, fmt.Errorf("generate session token: %w", err)
		}

		now := m.now()
		session := &models.Session{
			ID:         models.NewID(),
			UserID:     userID,
			TokenHash:  HashToken(raw),
			CreatedAt:  now,
			ExpiresAt:  now.Add(m.cfg.TTL),
			LastSeenAt: now,
			UserAgent:  meta.UserAgent,
			IP:         meta.IP,
		}

		err = m.sessions.Create(ctx, session)
		if err == nil {
			return raw, session, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return "", nil, fmt.Errorf("store session: %w", err)
		}
	}
	return "", nil, errors.New("session token collision persisted after retry")
}

// Validate resolves a raw token to an identity. Detecting an idle timeout
// revokes the session in place so it cannot be resurrected; a valid session
// gets its last_seen_at bumped and, under rolling renewal, its expiry
// extended in the same update.
func (m *SessionManager) Validate(ctx context.Context, rawToken string) (*Validation, error) {
	hash := HashToken(rawToken)
	session, err := m.sessions.FindByTokenHash(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return &Validation{Status: SessionNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	now := m.now()
	if session.RevokedAt != nil {
		return &Validation{Status: SessionRevoked}, nil
	}
	if !now.Before(session.ExpiresAt) {
		return &Validation{Status: SessionExpired}, nil
	}
	if now.Sub(session.LastSeenAt) >= m.cfg.IdleTimeout {
		if err := m.sessions.RevokeByTokenHash(ctx, hash, now); err != nil {
			return nil, fmt.Errorf("revoke idle session: %w", err)
		}
		return &Validation{Status: SessionIdleTimedOut}, nil
	}

	var newExpiry *time.Time
	if m.cfg.RollingRenewal > 0 && now.Sub(session.LastSeenAt) >= m.cfg.RollingRenewal {
		e := now.Add(m.cfg.TTL)
		newExpiry = &e
	}
	if err := m.sessions.Touch(ctx, session.ID, now, newExpiry); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	session.LastSeenAt = now
	if newExpiry != nil {
		session.ExpiresAt = *newExpiry
	}

	user, err := m.users.FindByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		// User deleted out from under the session.
		return &Validation{Status: SessionNotFound}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}

	return &Validation{Status: SessionValid, Identity: user.Identity(), Session: session}, nil
}

// Revoke marks the session carrying the raw token revoked. Revoking an
// unknown or already-revoked session is not an error.
func (m *SessionManager) Revoke(ctx context.Context, rawToken string) error {
	return m.sessions.RevokeByTokenHash(ctx, HashToken(rawToken), m.now())
}

// RevokeAll revokes every active session of a user; used by password change,
// password-reset completion, and account deletion.
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) error {
	return m.sessions.RevokeAllForUser(ctx, userID, m.now())
}

// RevokeOthers revokes every active session of a user except the one the
// raw token identifies.
func (m *SessionManager) RevokeOthers(ctx context.Context, userID, rawToken string) error {
	return m.sessions.RevokeOthersForUser(ctx, userID, HashToken(rawToken), m.now())
}

// EvictOverLimit revokes the least-recently-active sessions past the
// configured maximum. Run after issuing a new session so the fresh login is
// never evicted by its own creation. Returns the number revoked.
func (m *SessionManager) EvictOverLimit(ctx context.Context, userID string) (int, error) {
	if m.cfg.MaxPerUser <= 0 {
		return 0, nil
	}
	now := m.now()
	listed, err := m.sessions.ListActiveByUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	// Idle sessions are already unusable and get revoked lazily on their
	// next use; they do not count against the cap.
	active := listed[:0]
	for _, s := range listed {
		if s.Active(now, m.cfg.IdleTimeout) {
			active = append(active, s)
		}
	}
	evicted := 0
	for _, s := range active[minInt(m.cfg.MaxPerUser, len(active)):] {
		if err := m.sessions.RevokeByID(ctx, s.ID, m.now()); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}

// DeleteAllForUser removes the user's session rows outright; used by
// account deletion where revocation is not enough.
func (m *SessionManager) DeleteAllForUser(ctx context.Context, userID string) error {
	return m.sessions.DeleteByUser(ctx, userID)
}

// ListSessions returns all of the user's sessions, most recently seen first.
func (m *SessionManager) ListSessions(ctx context.Context, userID string) ([]*models.Session, error) {
	return m.sessions.ListByUser(ctx, userID)
}

// CurrentSession returns the still-active session behind the raw token, or
// repository.ErrNotFound.
func (m *SessionManager) CurrentSession(ctx context.Context, userID, rawToken string) (*models.Session, error) {
	s, err := m.sessions.FindByTokenHash(ctx, HashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if s.UserID != userID || !s.Active(m.now(), m.cfg.IdleTimeout) {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
