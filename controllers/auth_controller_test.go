package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/princinho/authcore/audit"
	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/bootstrap"
	"github.com/princinho/authcore/config"
	"github.com/princinho/authcore/middleware"
	"github.com/princinho/authcore/models"
	"github.com/princinho/authcore/ratelimit"
	"github.com/princinho/authcore/repository"
)

type testServer struct {
	router *gin.Engine
	users  *repository.MemoryUserRepository
	audits *repository.MemoryAuditRepository
	cfg    *config.Config
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Env:                     "test",
		Pepper:                  "test-pepper",
		BcryptCost:              bcrypt.MinCost,
		SessionTTL:              7 * 24 * time.Hour,
		IdleTimeout:             30 * time.Minute,
		MaxSessionsPerUser:      5,
		PasswordResetTTL:        30 * time.Minute,
		EmailVerificationTTL:    24 * time.Hour,
		LoginLimitWindow:        15 * time.Minute,
		LoginLimitIPMax:         100,
		LoginLimitIdentifierMax: 3,
		LoginLimitBlock:         15 * time.Minute,
		ResetLimitWindow:        time.Hour,
		ResetLimitMax:           5,
		ResetLimitBlock:         time.Hour,
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	users := repository.NewMemoryUserRepository()
	sessions := repository.NewMemorySessionRepository()
	tokens := repository.NewMemoryTokenRepository()
	audits := repository.NewMemoryAuditRepository()

	hasher := auth.NewPasswordHasher(cfg.Pepper, cfg.BcryptCost)
	trail := audit.NewTrail(log, audit.NewStoreSink(audits))

	authn, err := auth.NewAuthenticator(users, hasher)
	require.NoError(t, err)
	sessionMgr := auth.NewSessionManager(sessions, users, auth.SessionConfig{
		TTL:         cfg.SessionTTL,
		IdleTimeout: cfg.IdleTimeout,
		MaxPerUser:  cfg.MaxSessionsPerUser,
	})
	lifecycle := auth.NewLifecycle(users, tokens, sessionMgr, hasher, cfg.PasswordResetTTL, cfg.EmailVerificationTTL)

	ctl := New(cfg, log, users, tokens, authn, sessionMgr, lifecycle, hasher, trail)

	r := gin.New()
	requireAuth := middleware.RequireAuth(sessionMgr, log)
	loginLimiter := ratelimit.New(cfg.LoginLimitWindow, cfg.LoginLimitIPMax, cfg.LoginLimitBlock)

	g := r.Group("/auth")
	g.Use(middleware.CsrfProtection([]string{
		"/auth/login",
		"/auth/register",
		"/auth/password-reset/request",
		"/auth/password-reset/complete",
		"/auth/email/verify/complete",
	}))
	g.POST("/register", ctl.Register())
	g.POST("/login", middleware.RateLimitByIP(loginLimiter, "login-ip"), ctl.Login())
	g.POST("/logout", ctl.Logout())
	g.POST("/password-reset/request", ctl.PasswordResetRequest())
	g.POST("/password-reset/complete", ctl.PasswordResetComplete())
	g.POST("/email/verify/complete", ctl.EmailVerifyComplete())
	g.GET("/me", requireAuth, ctl.Me())
	g.GET("/sessions", requireAuth, ctl.ListSessions())
	g.GET("/session", requireAuth, ctl.CurrentSession())
	g.POST("/sessions/revoke-others", requireAuth, ctl.RevokeOtherSessions())
	g.POST("/email/verify/request", requireAuth, ctl.EmailVerifyRequest())
	g.POST("/password/change", requireAuth, ctl.ChangePassword())
	g.DELETE("/account", requireAuth, ctl.DeleteAccount())

	admin := r.Group("/admin", requireAuth, middleware.Guards(log, middleware.RoleStage(models.RoleAdmin)))
	admin.GET("/ping", ctl.AdminPing())

	return &testServer{router: r, users: users, audits: audits, cfg: cfg}
}

type request struct {
	method  string
	path    string
	body    string
	cookies []*http.Cookie
	headers map[string]string
}

func (s *testServer) do(req request) *httptest.ResponseRecorder {
	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range req.cookies {
		r.AddCookie(cookie)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

func (s *testServer) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"` + username + `","email":"` + email + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

// login returns the session cookie and the CSRF cookie.
func (s *testServer) login(t *testing.T, identifier, password string) (*http.Cookie, *http.Cookie) {
	t.Helper()
	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"` + identifier + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var sid, csrf *http.Cookie
	for _, cookie := range w.Result().Cookies() {
		switch cookie.Name {
		case middleware.SessionCookieName:
			sid = cookie
		case middleware.CsrfCookieName:
			csrf = cookie
		}
	}
	require.NotNil(t, sid)
	require.NotNil(t, csrf)
	return sid, csrf
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"Carol","email":"Carol@Example.com","password":"correct-horse-7"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	out := decodeJSON(t, w)
	assert.Equal(t, "carol", out["username"])
	assert.Equal(t, "carol@example.com", out["email"])
	assert.NotEmpty(t, out["id"])
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, "/api/users/"+out["id"].(string), w.Header().Get("Location"))
}

func TestRegister_DuplicatesAreCaseInsensitive(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")

	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"CAROL","email":"other@example.com","password":"correct-horse-7"}`,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"username already in use"}`, w.Body.String())

	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/register",
		body:   `{"username":"someone-else","email":"CAROL@example.com","password":"correct-horse-7"}`,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"email already in use"}`, w.Body.String())
}

func TestRegister_Validation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"short username", `{"username":"ab","email":"a@b.com","password":"correct-horse-7"}`},
		{"bad email", `{"username":"carol","email":"nope","password":"correct-horse-7"}`},
		{"short password", `{"username":"carol","email":"a@b.com","password":"short"}`},
		{"password contains username", `{"username":"carolina","email":"a@b.com","password":"xcarolina1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(request{method: http.MethodPost, path: "/auth/register", body: tt.body})
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestLogin_SetsCookiesAndMeWorks(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")

	sid, csrf := s.login(t, "carol", "correct-horse-7")
	assert.True(t, sid.HttpOnly, "session cookie must be invisible to scripts")
	assert.False(t, csrf.HttpOnly, "CSRF cookie must be readable by scripts")
	assert.Len(t, sid.Value, 64)

	w := s.do(request{method: http.MethodGet, path: "/auth/me", cookies: []*http.Cookie{sid}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	assert.Equal(t, "carol", out["username"])
	assert.Equal(t, false, out["is_admin"])
}

func TestLogin_ByEmailIdentifier(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")

	sid, _ := s.login(t, "Carol@Example.com", "correct-horse-7")
	assert.NotEmpty(t, sid.Value)
}

func TestLogin_FailuresAreUniform(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")

	wrongPassword := s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"carol","password":"not-the-password"}`,
	})
	unknownUser := s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"nobody","password":"not-the-password"}`,
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String(),
		"wrong password and unknown identifier must be indistinguishable")
}

func TestLogin_IdentifierRateLimit(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")

	body := `{"identifier":"carol","password":"not-the-password"}`
	for i := 0; i < s.cfg.LoginLimitIdentifierMax; i++ {
		w := s.do(request{method: http.MethodPost, path: "/auth/login", body: body})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := s.do(request{method: http.MethodPost, path: "/auth/login", body: body})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// The block holds even with the correct password.
	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"carol","password":"correct-horse-7"}`,
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogout_IsIdempotent(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")

	w := s.do(request{
		method:  http.MethodPost,
		path:    "/auth/logout",
		cookies: []*http.Cookie{sid, csrf},
		headers: map[string]string{middleware.CsrfHeaderName: csrf.Value},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	// The session is gone.
	w = s.do(request{method: http.MethodGet, path: "/auth/me", cookies: []*http.Cookie{sid}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Logging out again, or with no cookie at all, still succeeds.
	w = s.do(request{
		method:  http.MethodPost,
		path:    "/auth/logout",
		cookies: []*http.Cookie{sid, csrf},
		headers: map[string]string{middleware.CsrfHeaderName: csrf.Value},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"not authenticated"}`, w.Body.String())

	bogus := &http.Cookie{Name: middleware.SessionCookieName, Value: strings.Repeat("ab", 32)}
	w = s.do(request{method: http.MethodGet, path: "/auth/me", cookies: []*http.Cookie{bogus}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUnsafeRoutesRequireCsrf(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")

	// Valid session but no CSRF header.
	w := s.do(request{
		method:  http.MethodPost,
		path:    "/auth/sessions/revoke-others",
		cookies: []*http.Cookie{sid, csrf},
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(request{
		method:  http.MethodPost,
		path:    "/auth/sessions/revoke-others",
		cookies: []*http.Cookie{sid, csrf},
		headers: map[string]string{middleware.CsrfHeaderName: csrf.Value},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestSessionList_AndRevokeOthers(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	_, _ = s.login(t, "carol", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")

	w := s.do(request{method: http.MethodGet, path: "/auth/sessions", cookies: []*http.Cookie{sid}})
	require.Equal(t, http.StatusOK, w.Code)
	out := decodeJSON(t, w)
	require.Len(t, out["sessions"], 2)
	assert.NotContains(t, w.Body.String(), "tokenHash", "session listing must not expose token hashes")

	w = s.do(request{
		method:  http.MethodPost,
		path:    "/auth/sessions/revoke-others",
		cookies: []*http.Cookie{sid, csrf},
		headers: map[string]string{middleware.CsrfHeaderName: csrf.Value},
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	// The listing keeps showing revoked rows; exactly one got revoked.
	w = s.do(request{method: http.MethodGet, path: "/auth/sessions", cookies: []*http.Cookie{sid}})
	require.Equal(t, http.StatusOK, w.Code)
	out = decodeJSON(t, w)
	listed, ok := out["sessions"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 2)
	revoked := 0
	for _, raw := range listed {
		if raw.(map[string]any)["revoked_at"] != nil {
			revoked++
		}
	}
	assert.Equal(t, 1, revoked, "only the other session gets revoked")
}

func TestPasswordResetFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, _ := s.login(t, "carol", "correct-horse-7")

	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/password-reset/request",
		body:   `{"email":"carol@example.com"}`,
	})
	require.Equal(t, http.StatusOK, w.Code, "outside production the token comes back on the dev channel")
	token := decodeJSON(t, w)["reset_token"].(string)
	require.NotEmpty(t, token)

	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/password-reset/complete",
		body:   `{"token":"` + token + `","password":"brand-new-secret-9"}`,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// All prior sessions are revoked.
	w = s.do(request{method: http.MethodGet, path: "/auth/me", cookies: []*http.Cookie{sid}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Old password is dead, new one works.
	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"carol","password":"correct-horse-7"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	s.login(t, "carol", "brand-new-secret-9")

	// The token was consumed.
	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/password-reset/complete",
		body:   `{"token":"` + token + `","password":"yet-another-secret"}`,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid or expired token"}`, w.Body.String())
}

func TestPasswordResetRequest_UnknownIdentifierGives204(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{
		method: http.MethodPost,
		path:   "/auth/password-reset/request",
		body:   `{"email":"nobody@example.com"}`,
	})
	assert.Equal(t, http.StatusNoContent, w.Code, "must not reveal whether the account exists")
	assert.Empty(t, w.Body.String())
}

func TestEmailVerificationFlow(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")
	authed := []*http.Cookie{sid, csrf}
	csrfHeader := map[string]string{middleware.CsrfHeaderName: csrf.Value}

	w := s.do(request{
		method:  http.MethodPost,
		path:    "/auth/email/verify/request",
		cookies: authed,
		headers: csrfHeader,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	token := decodeJSON(t, w)["verify_token"].(string)

	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/email/verify/complete",
		body:   `{"token":"` + token + `"}`,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// Requesting again after verification is a quiet no-op.
	w = s.do(request{
		method:  http.MethodPost,
		path:    "/auth/email/verify/request",
		cookies: authed,
		headers: csrfHeader,
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")
	authed := []*http.Cookie{sid, csrf}
	csrfHeader := map[string]string{middleware.CsrfHeaderName: csrf.Value}

	w := s.do(request{
		method:  http.MethodPost,
		path:    "/auth/password/change",
		body:    `{"current_password":"wrong-wrong-wrong","new_password":"brand-new-secret-9"}`,
		cookies: authed,
		headers: csrfHeader,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(request{
		method:  http.MethodPost,
		path:    "/auth/password/change",
		body:    `{"current_password":"correct-horse-7","new_password":"brand-new-secret-9"}`,
		cookies: authed,
		headers: csrfHeader,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// The change revokes every session including this one.
	w = s.do(request{method: http.MethodGet, path: "/auth/me", cookies: []*http.Cookie{sid}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s.login(t, "carol", "brand-new-secret-9")
}

func TestDeleteAccount(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, csrf := s.login(t, "carol", "correct-horse-7")

	w := s.do(request{
		method:  http.MethodDelete,
		path:    "/auth/account",
		cookies: []*http.Cookie{sid, csrf},
		headers: map[string]string{middleware.CsrfHeaderName: csrf.Value},
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   `{"identifier":"carol","password":"correct-horse-7"}`,
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a deleted account cannot log in")

	// The slot is free for re-registration.
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
}

func TestAdminPing(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "carol", "carol@example.com", "correct-horse-7")
	sid, _ := s.login(t, "carol", "correct-horse-7")

	w := s.do(request{method: http.MethodGet, path: "/admin/ping", cookies: []*http.Cookie{sid}})
	assert.Equal(t, http.StatusForbidden, w.Code, "a plain user must not reach the admin surface")

	_, err := bootstrap.PromoteAdmin(context.Background(), s.users, "carol")
	require.NoError(t, err)

	w = s.do(request{method: http.MethodGet, path: "/admin/ping", cookies: []*http.Cookie{sid}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	out := decodeJSON(t, w)
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "carol", out["admin"])
}
