package repository

import (
	"context"
	"errors"
	"time"

	"github.com/princinho/authcore/models"
)

// Not-found and uniqueness sentinels shared by every implementation.
// Duplicate errors attribute the violated field so handlers can report
// which side of a 409 conflict applies.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateUsername = errors.New("username already in use")
	ErrDuplicateEmail    = errors.New("email already in use")
	ErrDuplicateToken    = errors.New("token hash already in use")
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	// UpdateRoles replaces the role set and admin flag in one write.
	UpdateRoles(ctx context.Context, id string, roles []string, isAdmin bool) error
	SetEmailVerified(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	FindByTokenHash(ctx context.Context, hash string) (*models.Session, error)
	// Touch bumps last_seen_at and, when newExpiry is non-nil, extends the
	// expiry in the same update. It only touches non-revoked rows.
	Touch(ctx context.Context, id string, lastSeen time.Time, newExpiry *time.Time) error
	RevokeByID(ctx context.Context, id string, at time.Time) error
	RevokeByTokenHash(ctx context.Context, hash string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
	RevokeOthersForUser(ctx context.Context, userID, keepHash string, at time.Time) error
	// ListByUser returns all sessions for the user, most recently seen first.
	ListByUser(ctx context.Context, userID string) ([]*models.Session, error)
	ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.Session, error)
	DeleteByUser(ctx context.Context, userID string) error
}

type TokenRepository interface {
	Create(ctx context.Context, token *models.AuthToken) error
	FindByHash(ctx context.Context, kind models.TokenKind, hash string) (*models.AuthToken, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
	// DeletePendingForUser removes the user's unused tokens of the given kind.
	DeletePendingForUser(ctx context.Context, kind models.TokenKind, userID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type AuditRepository interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}
