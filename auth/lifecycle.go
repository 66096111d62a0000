package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
	"github.com/princinho/authcore/utils"
)

// IssuedToken is the transient result of issuing a reset or verification
// token. Raw is returned to the caller exactly once (emailed, or echoed on
// the dev channel) and never persisted.
type IssuedToken struct {
	Raw       string
	ExpiresAt time.Time
}

// Lifecycle manages single-use password-reset and email-verification tokens.
type Lifecycle struct {
	users    repository.UserRepository
	tokens   repository.TokenRepository
	sessions *SessionManager
	hasher   *PasswordHasher

	resetTTL  time.Duration
	verifyTTL time.Duration

	now func() time.Time
}

func NewLifecycle(users repository.UserRepository, tokens repository.TokenRepository, sessions *SessionManager, hasher *PasswordHasher, resetTTL, verifyTTL time.Duration) *Lifecycle {
	return &Lifecycle{
		users:     users,
		tokens:    tokens,
		sessions:  sessions,
		hasher:    hasher,
		resetTTL:  resetTTL,
		verifyTTL: verifyTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestPasswordReset issues a reset token for the account behind the
// identifier. A nil, nil return means no account matched; callers must not
// surface that distinction to the requester.
func (l *Lifecycle) RequestPasswordReset(ctx context.Context, identifier string) (*IssuedToken, error) {
	user, err := findUserByIdentifier(ctx, l.users, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.issue(ctx, user.ID, models.TokenPasswordReset, l.resetTTL)
}

// CompletePasswordReset redeems a reset token, sets the new password, and
// revokes every session of the user. Missing, used, and expired tokens fail
// uniformly with ErrInvalidToken.
func (l *Lifecycle) CompletePasswordReset(ctx context.Context, rawToken, newPassword string) (*models.User, error) {
	token, err := l.redeemable(ctx, models.TokenPasswordReset, rawToken)
	if err != nil {
		return nil, err
	}

	user, err := l.users.FindByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if msg := utils.ValidatePassword(newPassword, user.Username, user.Email); msg != "" {
		return nil, NewValidationError(msg)
	}

	hash, err := l.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("hash new password: %w", err)
	}
	// Consume the token before touching the account so a concurrent
	// redemption of the same token loses cleanly.
	if err := l.tokens.MarkUsed(ctx, token.ID, l.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if err := l.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return nil, err
	}
	return user, l.sessions.RevokeAll(ctx, user.ID)
}

// RequestEmailVerification issues a verification token, invalidating any
// pending ones first so at most one unused token exists per user. Returns
// nil, nil when the email is already verified.
func (l *Lifecycle) RequestEmailVerification(ctx context.Context, userID string) (*IssuedToken, error) {
	user, err := l.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.EmailVerifiedAt != nil {
		return nil, nil
	}

	if err := l.tokens.DeletePendingForUser(ctx, models.TokenEmailVerification, userID); err != nil {
		return nil, err
	}
	return l.issue(ctx, userID, models.TokenEmailVerification, l.verifyTTL)
}

// CompleteEmailVerification redeems a verification token and stamps
// email_verified_at. Same uniform-failure contract as password reset.
func (l *Lifecycle) CompleteEmailVerification(ctx context.Context, rawToken string) (*models.User, error) {
	token, err := l.redeemable(ctx, models.TokenEmailVerification, rawToken)
	if err != nil {
		return nil, err
	}

	now := l.now()
	if err := l.tokens.MarkUsed(ctx, token.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if err := l.tokens.DeletePendingForUser(ctx, models.TokenEmailVerification, token.UserID); err != nil {
		return nil, err
	}
	if err := l.users.SetEmailVerified(ctx, token.UserID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return l.users.FindByID(ctx, token.UserID)
}

func (l *Lifecycle) issue(ctx context.Context, userID string, kind models.TokenKind, ttl time.Duration) (*IssuedToken, error) {
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := GenerateToken()
		if err != nil {
			return nil, fmt.Errorf("generate %s token: %w", kind, err)
		}
		now := l.now()
		token := &models.AuthToken{
			ID:        models.NewID(),
			UserID:    userID,
			Kind:      kind,
			TokenHash: HashToken(raw),
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		err = l.tokens.Create(ctx, token)
		if err == nil {
			return &IssuedToken{Raw: raw, ExpiresAt: token.ExpiresAt}, nil
		}
		if !errors.Is(err, repository.ErrDuplicateToken) {
			return nil, fmt.Errorf("store %s token: %w", kind, err)
		}
	}
	return nil, fmt.Errorf("%s token collision persisted after retry", kind)
}

func (l *Lifecycle) redeemable(ctx context.Context, kind models.TokenKind, rawToken string) (*models.AuthToken, error) {
	token, err := l.tokens.FindByHash(ctx, kind, HashToken(rawToken))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if !token.Redeemable(l.now()) {
		return nil, ErrInvalidToken
	}
	return token, nil
}
