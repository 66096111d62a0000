package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/ratelimit"
)

// ClientIP is the limiter key for per-IP throttles.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

// RateLimitByIP throttles a route per client IP, answering 429 with a
// Retry-After hint while a key is blocked.
func RateLimitByIP(limiter *ratelimit.Limiter, name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := limiter.Allow(ClientIP(c))
		if !ok {
			TooManyRequests(c, name, retryAfter.Seconds())
			return
		}
		c.Next()
	}
}

// TooManyRequests writes the standard 429 response and aborts.
func TooManyRequests(c *gin.Context, name string, retryAfterSeconds float64) {
	c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfterSeconds))))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": name + " temporarily blocked"})
}
