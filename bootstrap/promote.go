package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
	"github.com/princinho/authcore/utils"
)

// PromoteAdmin grants the admin flag and role to the existing account behind
// the identifier (username or email). Promoting an account that is already
// admin is a no-op.
func PromoteAdmin(ctx context.Context, users repository.UserRepository, identifier string) (*models.User, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	if identifier == "" {
		return nil, fmt.Errorf("promote admin: empty identifier")
	}

	var user *models.User
	var err error
	if utils.IsLikelyEmail(identifier) {
		user, err = users.FindByEmail(ctx, identifier)
	} else {
		user, err = users.FindByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("promote admin lookup %q: %w", identifier, err)
	}
	if user.IsAdmin {
		return user, nil
	}

	roles := user.Roles
	if !containsRole(roles, models.RoleAdmin) {
		roles = append(roles, models.RoleAdmin)
	}
	if err := users.UpdateRoles(ctx, user.ID, roles, true); err != nil {
		return nil, fmt.Errorf("promote admin update: %w", err)
	}
	user.Roles = roles
	user.IsAdmin = true
	return user, nil
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
