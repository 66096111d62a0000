package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	UsernameMin = 3
	UsernameMax = 32
	EmailMax    = 254 // practical max for emails
	PasswordMin = 8
	PasswordMax = 128
)

// lowercase letters, digits, underscore, dot, dash
var usernameRe = regexp.MustCompile(`^[a-z0-9_.-]+$`)

// "good enough" email check; full RFC 5322 validation is a non-goal
var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeUsername returns the canonical form (accent-stripped, lowercased,
// trimmed) used for identity and uniqueness, plus the trimmed display form.
func NormalizeUsername(input string) (clean, display string) {
	display = strings.TrimSpace(input)

	// Strip accent marks the same way slugs do: NFD decompose, drop marks.
	t := norm.NFD.String(display)
	var b strings.Builder
	for _, r := range t {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	clean = strings.ToLower(b.String())
	return clean, display
}

func NormalizeEmail(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// ExtractIdentifier picks the login identifier out of the request body
// fields, preferring an explicit identifier, then email, then username.
func ExtractIdentifier(identifier, email, username string) string {
	raw := identifier
	if raw == "" {
		raw = email
	}
	if raw == "" {
		raw = username
	}
	return strings.ToLower(strings.TrimSpace(raw))
}

func IsLikelyEmail(identifier string) bool {
	return emailRe.MatchString(identifier)
}

func ValidateUsername(clean string) string {
	if len(clean) < UsernameMin || len(clean) > UsernameMax {
		return fmt.Sprintf("username must be %d-%d characters", UsernameMin, UsernameMax)
	}
	if !usernameRe.MatchString(clean) {
		return "username may contain only letters, numbers, underscore, dot, and dash"
	}
	return ""
}

func ValidateEmail(clean string) string {
	if len(clean) > EmailMax {
		return fmt.Sprintf("email must be <= %d characters", EmailMax)
	}
	if !emailRe.MatchString(clean) {
		return "email must be a valid email address"
	}
	return ""
}

// ValidatePassword enforces length and keeps the password clear of the
// account's own identifiers. Returns an empty string when the password is
// acceptable.
func ValidatePassword(pwd, cleanUsername, cleanEmail string) string {
	if len(pwd) < PasswordMin || len(pwd) > PasswordMax {
		return fmt.Sprintf("password must be %d-%d characters", PasswordMin, PasswordMax)
	}

	pwdNorm := strings.ToLower(pwd)
	if cleanUsername != "" && cleanUsername == pwdNorm {
		return "username and password cannot be the same"
	}
	if cleanEmail != "" && cleanEmail == pwdNorm {
		return "email and password cannot be the same"
	}
	if cleanUsername != "" && len(cleanUsername) >= 4 && strings.Contains(pwdNorm, cleanUsername) {
		return "password must not contain your username"
	}
	if cleanEmail != "" && strings.Contains(pwdNorm, cleanEmail) {
		return "password must not contain your email"
	}
	return ""
}
