// Package bootstrap holds the startup and operator tasks that run outside
// the request path: seeding the initial admin account and promoting an
// existing account to admin.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
	"github.com/princinho/authcore/utils"
)

// SeedAdminUser creates the bootstrap admin account if it does not exist
// yet. Credentials come from ADMIN_USERNAME / ADMIN_EMAIL / ADMIN_PASSWORD;
// an already-existing admin is left untouched.
func SeedAdminUser(ctx context.Context, users repository.UserRepository, hasher *auth.PasswordHasher, username, email, password string) error {
	if username == "" || email == "" || password == "" {
		return errors.New("missing ADMIN_USERNAME, ADMIN_EMAIL or ADMIN_PASSWORD env vars")
	}

	clean, display := utils.NormalizeUsername(username)
	cleanEmail := utils.NormalizeEmail(email)

	if _, err := users.FindByUsername(ctx, clean); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("seed admin lookup: %w", err)
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	now := time.Now().UTC()
	admin := &models.User{
		ID:              models.NewID(),
		Username:        clean,
		UsernameDisplay: display,
		Email:           cleanEmail,
		PasswordHash:    hash,
		IsAdmin:         true,
		Roles:           []string{models.RoleUser, models.RoleAdmin},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = users.Create(ctx, admin)
	if errors.Is(err, repository.ErrDuplicateUsername) || errors.Is(err, repository.ErrDuplicateEmail) {
		// Raced another instance; the admin exists.
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed admin insert: %w", err)
	}
	return nil
}
