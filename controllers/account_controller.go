package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/dto"
	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/utils"
)

// POST /auth/password/change (session + CSRF)
func (ctl *Controller) ChangePassword() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)

		var body dto.ChangePasswordDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "current_password and new_password required"})
			return
		}

		user, err := ctl.users.FindByID(c.Request.Context(), identity.UserID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if !ctl.hasher.Verify(body.CurrentPassword, user.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid current password"})
			return
		}

		if msg := utils.ValidatePassword(body.NewPassword, user.Username, user.Email); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}
		if body.NewPassword == body.CurrentPassword {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new password must differ from current"})
			return
		}

		hash, err := ctl.hasher.Hash(body.NewPassword)
		if err != nil {
			ctl.internalError(c, "password.change.hash", err)
			return
		}
		if err := ctl.users.UpdatePasswordHash(c.Request.Context(), user.ID, hash); err != nil {
			ctl.internalError(c, "password.change.update", err)
			return
		}
		if err := ctl.sessions.RevokeAll(c.Request.Context(), user.ID); err != nil {
			ctl.internalError(c, "password.change.revoke", err)
			return
		}

		ctl.trail.RecordAndWait(c.Request.Context(), "auth.password.change", map[string]any{
			"user_id": user.ID, "ip": clientIP(c),
		})
		c.Status(http.StatusNoContent)
	}
}

// DELETE /auth/account (session + CSRF): hard delete with cascading rows.
func (ctl *Controller) DeleteAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)
		ctx := c.Request.Context()

		if err := ctl.sessions.DeleteAllForUser(ctx, identity.UserID); err != nil {
			ctl.internalError(c, "account.delete.sessions", err)
			return
		}
		if err := ctl.tokens.DeleteByUser(ctx, identity.UserID); err != nil {
			ctl.internalError(c, "account.delete.tokens", err)
			return
		}
		if err := ctl.users.Delete(ctx, identity.UserID); err != nil {
			ctl.internalError(c, "account.delete.user", err)
			return
		}

		ctl.trail.RecordAndWait(ctx, "auth.account.delete", map[string]any{
			"user_id": identity.UserID, "ip": clientIP(c),
		})
		ctl.clearSessionCookie(c)
		c.Status(http.StatusNoContent)
	}
}
