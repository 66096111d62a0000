package auth

import (
	"context"
	"errors"

	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
	"github.com/princinho/authcore/utils"
)

// Authenticator resolves a login identifier plus password to a user.
type Authenticator struct {
	users  repository.UserRepository
	hasher *PasswordHasher

	// dummyHash is compared against when the identifier matches no account,
	// keeping unknown-identifier and wrong-password timings comparable.
	dummyHash string
}

func NewAuthenticator(users repository.UserRepository, hasher *PasswordHasher) (*Authenticator, error) {
	raw, err := GenerateToken()
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(raw)
	if err != nil {
		return nil, err
	}
	return &Authenticator{users: users, hasher: hasher, dummyHash: dummy}, nil
}

// Authenticate returns the matching user or ErrInvalidCredentials. The error
// never reveals whether the identifier exists.
func (a *Authenticator) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := findUserByIdentifier(ctx, a.users, identifier)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if user == nil {
		a.hasher.Verify(password, a.dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !a.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// findUserByIdentifier resolves a canonical identifier, treating it as an
// email when it looks like one and as a username otherwise. Shared by login
// and the password-reset request flow.
func findUserByIdentifier(ctx context.Context, users repository.UserRepository, identifier string) (*models.User, error) {
	if utils.IsLikelyEmail(identifier) {
		return users.FindByEmail(ctx, identifier)
	}
	return users.FindByUsername(ctx, identifier)
}
