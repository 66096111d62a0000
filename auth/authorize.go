package auth

import (
	"fmt"

	"github.com/princinho/authcore/models"
)

// HasRole reports whether the identity may act in the required role. The
// admin flag is a universal bypass.
func HasRole(identity *models.Identity, role string) bool {
	if identity == nil {
		return false
	}
	if identity.IsAdmin {
		return true
	}
	for _, r := range identity.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PolicyInput is the request context handed to the extensible policy hook.
type PolicyInput struct {
	Identity *models.Identity
	Method   string
	Path     string
}

type PolicyResult struct {
	Allow  bool
	Reason string
}

// PolicyFunc is the single extensible predicate hook; arbitrary policy
// languages are out of scope.
type PolicyFunc func(*PolicyInput) PolicyResult

// EvaluatePolicy runs the hook, converting a panic into an error so a broken
// policy surfaces as a generic 500 instead of leaking internals.
func EvaluatePolicy(policy PolicyFunc, in *PolicyInput) (result PolicyResult, err error) {
	if policy == nil {
		return PolicyResult{Allow: true}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy evaluation panicked: %v", r)
		}
	}()
	return policy(in), nil
}
