package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/dto"
	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/repository"
	"github.com/princinho/authcore/utils"
)

// POST /auth/register
func (ctl *Controller) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.RegisterDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		cleanUsername, displayUsername := utils.NormalizeUsername(body.Username)
		cleanEmail := utils.NormalizeEmail(body.Email)
		pwd := body.Password

		if cleanUsername == "" || cleanEmail == "" || pwd == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username, email, and password required"})
			return
		}

		msg := utils.ValidateUsername(cleanUsername)
		if msg == "" {
			msg = utils.ValidateEmail(cleanEmail)
		}
		if msg == "" {
			msg = utils.ValidatePassword(pwd, cleanUsername, cleanEmail)
		}
		if msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": msg})
			return
		}

		hash, err := ctl.hasher.Hash(pwd)
		if err != nil {
			ctl.internalError(c, "register.hash", err)
			return
		}

		now := time.Now().UTC()
		user := &models.User{
			ID:              models.NewID(),
			Username:        cleanUsername,
			UsernameDisplay: displayUsername,
			Email:           cleanEmail,
			PasswordHash:    hash,
			Roles:           []string{models.RoleUser},
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		err = ctl.users.Create(c.Request.Context(), user)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			ctl.trail.Record("auth.register.conflict", map[string]any{
				"reason": "email", "email": cleanEmail, "ip": clientIP(c),
			})
			c.JSON(http.StatusConflict, gin.H{"error": "email already in use"})
			return
		}
		if errors.Is(err, repository.ErrDuplicateUsername) {
			ctl.trail.Record("auth.register.conflict", map[string]any{
				"reason": "username", "username": cleanUsername, "ip": clientIP(c),
			})
			c.JSON(http.StatusConflict, gin.H{"error": "username already in use"})
			return
		}
		if err != nil {
			ctl.internalError(c, "register.create", err)
			return
		}

		ctl.trail.Record("auth.register.success", map[string]any{
			"user_id": user.ID, "username": user.Username, "email": user.Email, "ip": clientIP(c),
		})

		c.Header("Location", fmt.Sprintf("/api/users/%s", user.ID))
		c.JSON(http.StatusCreated, user.Identity())
	}
}

// POST /auth/login
func (ctl *Controller) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.LoginDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identifier := utils.ExtractIdentifier(body.Identifier, body.Email, body.Username)
		if identifier == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and password required"})
			return
		}

		if ok, retryAfter := ctl.loginIdentifierLimiter.Allow(identifier); !ok {
			middleware.TooManyRequests(c, "login-identifier", retryAfter.Seconds())
			return
		}

		user, err := ctl.authn.Authenticate(c.Request.Context(), identifier, body.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			ctl.trail.Record("auth.login.failed", map[string]any{
				"reason": "invalid_credentials", "identifier": identifier, "ip": clientIP(c),
			})
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err != nil {
			ctl.internalError(c, "login.authenticate", err)
			return
		}

		token, _, err := ctl.sessions.Issue(c.Request.Context(), user.ID, auth.Metadata{
			UserAgent: c.Request.UserAgent(),
			IP:        clientIP(c),
		})
		if err != nil {
			ctl.internalError(c, "login.issue", err)
			return
		}

		ctl.setSessionCookie(c, token)
		if _, err := middleware.IssueCsrfToken(c, ctl.cfg.IsProduction()); err != nil {
			ctl.internalError(c, "login.csrf", err)
			return
		}

		// Runs after issuance so the new session never evicts itself.
		if _, err := ctl.sessions.EvictOverLimit(c.Request.Context(), user.ID); err != nil {
			ctl.log.WithError(err).Warn("session eviction failed")
		}

		ctl.trail.Record("auth.login.success", map[string]any{
			"user_id": user.ID, "username": user.Username, "ip": clientIP(c),
		})
		c.JSON(http.StatusOK, user.Identity())
	}
}

// POST /auth/logout is idempotent; fine to call while logged out.
func (ctl *Controller) Logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(middleware.SessionCookieName)
		if token != "" {
			if err := ctl.sessions.Revoke(c.Request.Context(), token); err != nil {
				ctl.log.WithError(err).Error("logout revoke failed")
			}
		}
		ctl.clearSessionCookie(c)
		ctl.trail.Record("auth.logout", map[string]any{"ip": clientIP(c)})
		c.Status(http.StatusNoContent)
	}
}

// GET /auth/me
func (ctl *Controller) Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, middleware.IdentityFrom(c))
	}
}

// POST /auth/password-reset/request
func (ctl *Controller) PasswordResetRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.PasswordResetRequestDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		identifier := utils.ExtractIdentifier(body.Identifier, body.Email, body.Username)
		if identifier == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "identifier required"})
			return
		}

		if ok, retryAfter := ctl.resetLimiter.Allow(identifier); !ok {
			middleware.TooManyRequests(c, "password-reset", retryAfter.Seconds())
			return
		}

		issued, err := ctl.lifecycle.RequestPasswordReset(c.Request.Context(), identifier)
		if err != nil {
			ctl.internalError(c, "password_reset.request", err)
			return
		}

		ctl.trail.Record("auth.password_reset.request", map[string]any{
			"identifier": identifier, "user_found": issued != nil, "ip": clientIP(c),
		})

		// The raw token only leaves through the dev channel; the production
		// contract never discloses whether the account exists.
		if issued != nil && !ctl.cfg.IsProduction() {
			c.JSON(http.StatusOK, gin.H{
				"reset_token":        issued.Raw,
				"expires_in_minutes": int(ctl.cfg.PasswordResetTTL / time.Minute),
			})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /auth/password-reset/complete
func (ctl *Controller) PasswordResetComplete() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.PasswordResetCompleteDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if body.Token == "" || body.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and password required"})
			return
		}

		user, err := ctl.lifecycle.CompletePasswordReset(c.Request.Context(), body.Token, body.Password)
		if err != nil {
			ctl.respondLifecycleError(c, "password_reset.complete", err)
			return
		}

		ctl.trail.RecordAndWait(c.Request.Context(), "auth.password_reset.complete", map[string]any{
			"user_id": user.ID, "ip": clientIP(c),
		})
		c.Status(http.StatusNoContent)
	}
}

// POST /auth/email/verify/request (session required)
func (ctl *Controller) EmailVerifyRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)

		issued, err := ctl.lifecycle.RequestEmailVerification(c.Request.Context(), identity.UserID)
		if err != nil {
			ctl.internalError(c, "verify_email.request", err)
			return
		}
		if issued == nil {
			// Already verified.
			c.Status(http.StatusNoContent)
			return
		}

		ctl.trail.Record("auth.verify_email.request", map[string]any{
			"user_id": identity.UserID, "email": identity.Email, "ip": clientIP(c),
		})

		if !ctl.cfg.IsProduction() {
			c.JSON(http.StatusOK, gin.H{
				"verify_token":       issued.Raw,
				"expires_in_minutes": int(ctl.cfg.EmailVerificationTTL / time.Minute),
			})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /auth/email/verify/complete
func (ctl *Controller) EmailVerifyComplete() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body dto.EmailVerifyCompleteDTO
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token required"})
			return
		}

		user, err := ctl.lifecycle.CompleteEmailVerification(c.Request.Context(), body.Token)
		if err != nil {
			ctl.respondLifecycleError(c, "verify_email.complete", err)
			return
		}

		ctl.trail.RecordAndWait(c.Request.Context(), "auth.verify_email.complete", map[string]any{
			"user_id": user.ID, "email": user.Email, "ip": clientIP(c),
		})
		c.Status(http.StatusNoContent)
	}
}

// respondLifecycleError maps token-lifecycle failures onto the wire without
// distinguishing missing, used, and expired tokens.
func (ctl *Controller) respondLifecycleError(c *gin.Context, where string, err error) {
	var validation *auth.ValidationError
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message})
	default:
		ctl.internalError(c, where, err)
	}
}
