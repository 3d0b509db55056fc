package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gmpportal/internal/access"
	"gmpportal/internal/metrics"
	"gmpportal/internal/models"
)

// Require rejects callers whose role lacks the capability op needs. It must
// run after Authenticate.
func Require(op models.Operation, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			m.GuardDecision("unauthorized")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		if err := access.Check(p, op.Requires); err != nil {
			m.GuardDecision("forbidden")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		m.GuardDecision("pass")
		c.Next()
	}
}
