package models

import (
	"time"

	"github.com/google/uuid"
)

const RoleUser = "user"
const RoleAdmin = "admin"

// User holds the canonical (lowercased, trimmed) username and email; the
// display username keeps the casing the account was registered with.
type User struct {
	ID              string     `bson:"_id,omitempty" json:"id"`
	Username        string     `bson:"username" json:"username"`
	UsernameDisplay string     `bson:"usernameDisplay" json:"username_display"`
	Email           string     `bson:"email" json:"email"`
	PasswordHash    string     `bson:"passwordHash" json:"-"` // never expose
	IsAdmin         bool       `bson:"isAdmin" json:"is_admin"`
	Roles           []string   `bson:"roles" json:"roles"`
	EmailVerifiedAt *time.Time `bson:"emailVerifiedAt,omitempty" json:"email_verified_at"`
	CreatedAt       time.Time  `bson:"createdAt" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updated_at"`
}

// Identity is the resolved view of a user attached to an authenticated
// request: the user row minus secrets.
type Identity struct {
	UserID          string     `json:"id"`
	Username        string     `json:"username"`
	UsernameDisplay string     `json:"username_display"`
	Email           string     `json:"email"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
	IsAdmin         bool       `json:"is_admin"`
	Roles           []string   `json:"roles"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (u *User) Identity() *Identity {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return &Identity{
		UserID:          u.ID,
		Username:        u.Username,
		UsernameDisplay: u.UsernameDisplay,
		Email:           u.Email,
		EmailVerifiedAt: u.EmailVerifiedAt,
		IsAdmin:         u.IsAdmin,
		Roles:           roles,
		CreatedAt:       u.CreatedAt,
	}
}

// NewID generates a store-agnostic document id.
func NewID() string {
	return uuid.NewString()
}
