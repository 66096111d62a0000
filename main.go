package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/princinho/authcore/audit"
	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/bootstrap"
	"github.com/princinho/authcore/config"
	"github.com/princinho/authcore/controllers"
	"github.com/princinho/authcore/database"
	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/ratelimit"
	"github.com/princinho/authcore/repository"
)

func main() {
	promoteTarget := flag.String("promote-admin", "", "grant the admin role to the account with this username or email, then exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if !cfg.IsProduction() {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal(err)
	}
	db := client.Database(cfg.DatabaseName)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		log.Fatal(err)
	}

	users := repository.NewMongoUserRepository(db)
	sessions := repository.NewMongoSessionRepository(db)
	tokens := repository.NewMongoTokenRepository(db)
	auditRepo := repository.NewMongoAuditRepository(db)

	hasher := auth.NewPasswordHasher(cfg.Pepper, cfg.BcryptCost)

	if *promoteTarget != "" {
		user, err := bootstrap.PromoteAdmin(ctx, users, *promoteTarget)
		if err != nil {
			log.Fatal(err)
		}
		log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("admin role granted")
		return
	}

	if err := bootstrap.SeedAdminUser(ctx, users, hasher, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal(err)
	}

	sinks := []audit.Sink{audit.NewStoreSink(auditRepo)}
	if cfg.AuditLogConsole {
		sinks = append(sinks, audit.NewLogSink(log))
	}
	if cfg.AuditGCSBucket != "" {
		gcs, err := audit.NewGCSSink(ctx, cfg.AuditGCSBucket, cfg.CredentialsFile)
		if err != nil {
			log.Fatal(err)
		}
		defer gcs.Close()
		sinks = append(sinks, gcs)
	}
	trail := audit.NewTrail(log, sinks...)

	authn, err := auth.NewAuthenticator(users, hasher)
	if err != nil {
		log.Fatal(err)
	}
	sessionMgr := auth.NewSessionManager(sessions, users, auth.SessionConfig{
		TTL:            cfg.SessionTTL,
		IdleTimeout:    cfg.IdleTimeout,
		RollingRenewal: cfg.RollingRenewal,
		MaxPerUser:     cfg.MaxSessionsPerUser,
	})
	lifecycle := auth.NewLifecycle(users, tokens, sessionMgr, hasher, cfg.PasswordResetTTL, cfg.EmailVerificationTTL)

	ctl := controllers.New(cfg, log, users, tokens, authn, sessionMgr, lifecycle, hasher, trail)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	if len(cfg.AllowedOrigins) > 0 {
		allowed := map[string]bool{}
		for _, origin := range cfg.AllowedOrigins {
			allowed[origin] = true
		}
		r.Use(cors.New(cors.Config{
			AllowOriginFunc: func(origin string) bool {
				return allowed[origin]
			},
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", middleware.CsrfHeaderName},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "authcore", "status": "ok"})
	})

	requireAuth := middleware.RequireAuth(sessionMgr, log)
	loginLimiter := ratelimit.New(cfg.LoginLimitWindow, cfg.LoginLimitIPMax, cfg.LoginLimitBlock)

	authGroup := r.Group("/auth")
	authGroup.Use(middleware.CsrfProtection([]string{
		"/auth/login",
		"/auth/register",
		"/auth/password-reset/request",
		"/auth/password-reset/complete",
		"/auth/email/verify/complete",
	}))
	{
		authGroup.POST("/register", ctl.Register())
		authGroup.POST("/login", middleware.RateLimitByIP(loginLimiter, "login-ip"), ctl.Login())
		authGroup.POST("/logout", ctl.Logout())

		authGroup.POST("/password-reset/request", ctl.PasswordResetRequest())
		authGroup.POST("/password-reset/complete", ctl.PasswordResetComplete())
		authGroup.POST("/email/verify/complete", ctl.EmailVerifyComplete())

		authGroup.GET("/me", requireAuth, ctl.Me())
		authGroup.GET("/sessions", requireAuth, ctl.ListSessions())
		authGroup.GET("/session", requireAuth, ctl.CurrentSession())
		authGroup.POST("/sessions/revoke-others", requireAuth, ctl.RevokeOtherSessions())
		authGroup.POST("/email/verify/request", requireAuth, ctl.EmailVerifyRequest())
		authGroup.POST("/password/change", requireAuth, ctl.ChangePassword())
		authGroup.DELETE("/account", requireAuth, ctl.DeleteAccount())
	}

	adminGroup := r.Group("/admin", requireAuth, middleware.Guards(log, middleware.RoleStage(models.RoleAdmin)))
	adminGroup.GET("/ping", ctl.AdminPing())

	if err := r.Run(); err != nil {
		log.Fatal(err)
	}
}
