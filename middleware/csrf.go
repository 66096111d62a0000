package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/auth"
)

const (
	CsrfCookieName = "csrf_token"
	CsrfHeaderName = "X-CSRF-Token"
)

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// IssueCsrfToken sets the double-submit cookie. It is intentionally not
// HttpOnly: the browser must read it back into the custom header.
func IssueCsrfToken(c *gin.Context, secure bool) (string, error) {
	token, err := auth.GenerateToken()
	if err != nil {
		return "", err
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CsrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// CsrfProtection enforces double-submit verification on unsafe methods.
// skipPrefixes exempts routes that precede authentication (no CSRF cookie
// exists yet for an anonymous client). Rejections are a generic 403 with no
// detail about which check failed.
func CsrfProtection(skipPrefixes []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if safeMethods[c.Request.Method] {
			c.Next()
			return
		}
		for _, prefix := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		cookieToken, err := c.Cookie(CsrfCookieName)
		headerToken := c.GetHeader(CsrfHeaderName)
		if err != nil || cookieToken == "" || headerToken == "" || cookieToken != headerToken {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid CSRF token"})
			return
		}
		c.Next()
	}
}
