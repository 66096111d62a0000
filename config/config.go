package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment-backed configuration surface, loaded once
// at startup and injected. Handlers never read env vars directly.
type Config struct {
	Env          string
	MongoURI     string
	DatabaseName string

	Pepper     string
	BcryptCost int

	SessionTTL         time.Duration
	IdleTimeout        time.Duration
	RollingRenewal     time.Duration
	MaxSessionsPerUser int

	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration

	LoginLimitWindow        time.Duration
	LoginLimitIPMax         int
	LoginLimitIdentifierMax int
	LoginLimitBlock         time.Duration

	ResetLimitWindow time.Duration
	ResetLimitMax    int
	ResetLimitBlock  time.Duration

	AllowedOrigins []string

	AuditLogConsole bool
	AuditGCSBucket  string
	CredentialsFile string

	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func Load() *Config {
	return &Config{
		Env:          getEnv("APP_ENV", "development"),
		MongoURI:     os.Getenv("MONGODB_URI"),
		DatabaseName: getEnv("DATABASE_NAME", "authcore"),

		Pepper:     os.Getenv("PASSWORD_PEPPER"),
		BcryptCost: getInt("BCRYPT_COST", 12),

		SessionTTL:         time.Duration(getInt("SESSION_TTL_DAYS", 7)) * 24 * time.Hour,
		IdleTimeout:        time.Duration(getInt("SESSION_IDLE_TIMEOUT_MINUTES", 30)) * time.Minute,
		RollingRenewal:     time.Duration(getInt("SESSION_ROLLING_RENEWAL_MINUTES", 0)) * time.Minute,
		MaxSessionsPerUser: getInt("SESSION_MAX_PER_USER", 5),

		PasswordResetTTL:     time.Duration(getInt("PASSWORD_RESET_TTL_MINUTES", 30)) * time.Minute,
		EmailVerificationTTL: time.Duration(getInt("EMAIL_VERIFY_TTL_MINUTES", 60*24)) * time.Minute,

		LoginLimitWindow:        time.Duration(getInt("LOGIN_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
		LoginLimitIPMax:         getInt("LOGIN_LIMIT_IP_MAX", 10),
		LoginLimitIdentifierMax: getInt("LOGIN_LIMIT_ID_MAX", 7),
		LoginLimitBlock:         time.Duration(getInt("LOGIN_LIMIT_BLOCK_MINUTES", 15)) * time.Minute,

		ResetLimitWindow: time.Duration(getInt("RESET_LIMIT_WINDOW_MINUTES", 60)) * time.Minute,
		ResetLimitMax:    getInt("RESET_LIMIT_MAX", 5),
		ResetLimitBlock:  time.Duration(getInt("RESET_LIMIT_BLOCK_MINUTES", 60)) * time.Minute,

		AllowedOrigins: getList("ALLOWED_ORIGINS"),

		AuditLogConsole: os.Getenv("AUDIT_LOG_CONSOLE") == "true",
		AuditGCSBucket:  os.Getenv("AUDIT_GCS_BUCKET"),
		CredentialsFile: os.Getenv("CREDENTIALS_FILE_LOCATION"),

		AdminUsername: strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_USERNAME"))),
		AdminEmail:    strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getList(key string) []string {
	out := []string{}
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
