package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/models"
)

const SessionCookieName = "sid"

const (
	identityKey     = "identity"
	sessionTokenKey = "sessionToken"
)

// RequireAuth resolves the session cookie to an identity. Every failure mode
// (missing cookie, unknown, revoked, expired, idle-timed-out) collapses to
// the same generic 401.
func RequireAuth(sessions *auth.SessionManager, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		validation, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			log.WithError(err).Error("session validation failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		if validation.Status != auth.SessionValid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}

		c.Set(identityKey, validation.Identity)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// IdentityFrom returns the identity RequireAuth stored, or nil.
func IdentityFrom(c *gin.Context) *models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*models.Identity)
	return identity
}

// SessionTokenFrom returns the raw session token of the current request.
func SessionTokenFrom(c *gin.Context) string {
	v, ok := c.Get(sessionTokenKey)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}
