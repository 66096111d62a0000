package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/princinho/authcore/auth"
	"github.com/princinho/authcore/models"
)

// GuardStage is one step of the authorization pipeline. Stages run in order
// until one denies; Err marks an evaluation failure (answered as 500).
type GuardStage func(c *gin.Context, identity *models.Identity) Decision

type Decision struct {
	Allow  bool
	Reason string
	Err    error
}

func Allow() Decision { return Decision{Allow: true} }

func Deny(reason string) Decision { return Decision{Reason: reason} }

// Guards evaluates the stages against the resolved identity. Denials answer
// 403 with the stage's reason (or a generic "forbidden"); evaluation errors
// answer a generic 500 with a correlation id, detail logged server-side.
func Guards(log *logrus.Logger, stages ...GuardStage) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFrom(c)
		if identity == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, stage := range stages {
			decision := stage(c, identity)
			if decision.Err != nil {
				correlation := uuid.NewString()
				log.WithError(decision.Err).WithField("correlation_id", correlation).Error("guard evaluation failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":          "internal server error",
					"correlation_id": correlation,
				})
				return
			}
			if !decision.Allow {
				reason := decision.Reason
				if reason == "" {
					reason = "forbidden"
				}
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": reason})
				return
			}
		}
		c.Next()
	}
}

// RoleStage requires the identity to hold the role (admin bypasses).
func RoleStage(role string) GuardStage {
	return func(_ *gin.Context, identity *models.Identity) Decision {
		if auth.HasRole(identity, role) {
			return Allow()
		}
		return Deny("forbidden")
	}
}

// PolicyStage runs the extensible policy hook.
func PolicyStage(policy auth.PolicyFunc) GuardStage {
	return func(c *gin.Context, identity *models.Identity) Decision {
		result, err := auth.EvaluatePolicy(policy, &auth.PolicyInput{
			Identity: identity,
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
		})
		if err != nil {
			return Decision{Err: err}
		}
		return Decision{Allow: result.Allow, Reason: result.Reason}
	}
}
