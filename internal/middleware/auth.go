package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gmpportal/internal/access"
	"gmpportal/internal/metrics"
)

const (
	principalKey   = "principal"
	roleHeader     = "X-User-Role"
	authorizationH = "Authorization"
)

// Authenticate verifies the bearer token and stores the caller on the gin
// context and on the request context. X-User-Role is logged when it disagrees
// with the token and is otherwise ignored.
func Authenticate(guard *access.Guard, m *metrics.Metrics, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := guard.Authenticate(c.Request.Context(), c.GetHeader(authorizationH))
		if err != nil {
			switch {
			case errors.Is(err, access.ErrMissingToken):
				m.GuardDecision("unauthorized")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			case errors.Is(err, access.ErrUnauthenticated):
				m.GuardDecision("unauthorized")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			default:
				m.GuardDecision("error")
				log.Error().Err(err).Str("request_id", RequestIDFrom(c)).Msg("token verification failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			}
			return
		}

		if claimed := c.GetHeader(roleHeader); claimed != "" && claimed != string(p.Role) {
			log.Info().
				Str("user_id", p.UserID).
				Str("token_role", string(p.Role)).
				Str("header_role", claimed).
				Str("request_id", RequestIDFrom(c)).
				Msg("role header ignored")
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(access.ContextWithPrincipal(c.Request.Context(), p))

		c.Next()
	}
}

// CurrentPrincipal returns the caller stored by Authenticate.
func CurrentPrincipal(c *gin.Context) (access.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return access.Principal{}, false
	}
	p, ok := v.(access.Principal)
	return p, ok
}
