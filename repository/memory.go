package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/princinho/authcore/models"
)

// In-memory repositories backing tests and single-process dev runs. They
// enforce the same uniqueness rules the Mongo indexes do, so the same suite
// runs against either implementation.

type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *MemoryUserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) FindByUsername(_ context.Context, username string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Username == username })
}

func (r *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	return r.findBy(func(u *models.User) bool { return u.Email == email })
}

func (r *MemoryUserRepository) findBy(match func(*models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) UpdatePasswordHash(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepository) UpdateRoles(_ context.Context, id string, roles []string, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Roles = append([]string(nil), roles...)
	u.IsAdmin = isAdmin
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryUserRepository) SetEmailVerified(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EmailVerifiedAt = &at
	u.UpdatedAt = at
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]*models.Session)}
}

func (r *MemorySessionRepository) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == session.TokenHash {
			return ErrDuplicateToken
		}
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *MemorySessionRepository) FindByTokenHash(_ context.Context, hash string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == hash {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemorySessionRepository) Touch(_ context.Context, id string, lastSeen time.Time, newExpiry *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return nil
	}
	s.LastSeenAt = lastSeen
	if newExpiry != nil {
		s.ExpiresAt = *newExpiry
	}
	return nil
}

func (r *MemorySessionRepository) RevokeByID(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
	}
	return nil
}

func (r *MemorySessionRepository) RevokeByTokenHash(_ context.Context, hash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.TokenHash == hash && s.RevokedAt == nil {
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *MemorySessionRepository) RevokeAllForUser(_ context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *MemorySessionRepository) RevokeOthersForUser(_ context.Context, userID, keepHash string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID && s.TokenHash != keepHash && s.RevokedAt == nil {
			s.RevokedAt = &at
		}
	}
	return nil
}

func (r *MemorySessionRepository) ListByUser(_ context.Context, userID string) ([]*models.Session, error) {
	return r.list(func(s *models.Session) bool { return s.UserID == userID }), nil
}

func (r *MemorySessionRepository) ListActiveByUser(_ context.Context, userID string, now time.Time) ([]*models.Session, error) {
	return r.list(func(s *models.Session) bool {
		return s.UserID == userID && s.RevokedAt == nil && now.Before(s.ExpiresAt)
	}), nil
}

func (r *MemorySessionRepository) list(match func(*models.Session) bool) []*models.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Session{}
	for _, s := range r.sessions {
		if match(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	return out
}

func (r *MemorySessionRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

type MemoryTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.AuthToken
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]*models.AuthToken)}
}

func (r *MemoryTokenRepository) Create(_ context.Context, token *models.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.TokenHash == token.TokenHash {
			return ErrDuplicateToken
		}
	}
	cp := *token
	r.tokens[token.ID] = &cp
	return nil
}

func (r *MemoryTokenRepository) FindByHash(_ context.Context, kind models.TokenKind, hash string) (*models.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.Kind == kind && t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryTokenRepository) MarkUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[id]
	if !ok || t.UsedAt != nil {
		return ErrNotFound
	}
	t.UsedAt = &at
	return nil
}

func (r *MemoryTokenRepository) DeletePendingForUser(_ context.Context, kind models.TokenKind, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.Kind == kind && t.UserID == userID && t.UsedAt == nil {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *MemoryTokenRepository) DeleteByUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tokens {
		if t.UserID == userID {
			delete(r.tokens, id)
		}
	}
	return nil
}

type MemoryAuditRepository struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Insert(_ context.Context, event *models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

// Events returns a snapshot of everything recorded so far.
func (r *MemoryAuditRepository) Events() []*models.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}
