package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/repository"
)

// GET /auth/sessions
func (ctl *Controller) ListSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)

		sessions, err := ctl.sessions.ListSessions(c.Request.Context(), identity.UserID)
		if err != nil {
			ctl.internalError(c, "sessions.list", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sessions": sessions})
	}
}

// GET /auth/session
func (ctl *Controller) CurrentSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)
		token := middleware.SessionTokenFrom(c)

		session, err := ctl.sessions.CurrentSession(c.Request.Context(), identity.UserID, token)
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if err != nil {
			ctl.internalError(c, "sessions.current", err)
			return
		}
		c.JSON(http.StatusOK, session)
	}
}

// POST /auth/sessions/revoke-others
func (ctl *Controller) RevokeOtherSessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)
		token := middleware.SessionTokenFrom(c)

		if err := ctl.sessions.RevokeOthers(c.Request.Context(), identity.UserID, token); err != nil {
			ctl.internalError(c, "sessions.revoke_others", err)
			return
		}

		ctl.trail.RecordAndWait(c.Request.Context(), "auth.sessions.revoke_others", map[string]any{
			"user_id": identity.UserID, "ip": clientIP(c),
		})
		c.Status(http.StatusNoContent)
	}
}
