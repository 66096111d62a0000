package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/princinho/authcore/audit"
	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/config"
	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/ratelimit"
	"github.com/princinho/authcore/repository"
)

// Controller bundles the injected collaborators behind the /auth routes.
// No package-level state: every handler runs off the server instance that
// built it.
type Controller struct {
	cfg   *config.Config
	log   *logrus.Logger
	users repository.UserRepository

	authn     *auth.Authenticator
	sessions  *auth.SessionManager
	lifecycle *auth.Lifecycle
	hasher    *auth.PasswordHasher
	tokens    repository.TokenRepository
	trail     *audit.Trail

	// in-handler limiters keyed by values only known after body parsing
	loginIdentifierLimiter *ratelimit.Limiter
	resetLimiter           *ratelimit.Limiter
}

func New(
	cfg *config.Config,
	log *logrus.Logger,
	users repository.UserRepository,
	tokens repository.TokenRepository,
	authn *auth.Authenticator,
	sessions *auth.SessionManager,
	lifecycle *auth.Lifecycle,
	hasher *auth.PasswordHasher,
	trail *audit.Trail,
) *Controller {
	return &Controller{
		cfg:       cfg,
		log:       log,
		users:     users,
		tokens:    tokens,
		authn:     authn,
		sessions:  sessions,
		lifecycle: lifecycle,
		hasher:    hasher,
		trail:     trail,

		loginIdentifierLimiter: ratelimit.New(cfg.LoginLimitWindow, cfg.LoginLimitIdentifierMax, cfg.LoginLimitBlock),
		resetLimiter:           ratelimit.New(cfg.ResetLimitWindow, cfg.ResetLimitMax, cfg.ResetLimitBlock),
	}
}

// internalError answers a generic 500 carrying a correlation id; the full
// error only ever reaches the server log.
func (ctl *Controller) internalError(c *gin.Context, where string, err error) {
	correlation := uuid.NewString()
	ctl.log.WithError(err).WithFields(logrus.Fields{
		"where":          where,
		"correlation_id": correlation,
	}).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":          "internal server error",
		"correlation_id": correlation,
	})
}

func (ctl *Controller) setSessionCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ctl.cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   ctl.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (ctl *Controller) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   ctl.cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
}

func clientIP(c *gin.Context) string {
	return middleware.ClientIP(c)
}
