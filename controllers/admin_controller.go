package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/princinho/authcore/middleware"
)

// GET /admin/ping (session + admin role): liveness check for the admin
// surface; reaching it at all proves the role gate.
func (ctl *Controller) AdminPing() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "admin": identity.Username})
	}
}
