package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gmpportal/internal/access"
	"gmpportal/internal/middleware"
	"gmpportal/internal/repository"
	"gmpportal/internal/security"
	"gmpportal/internal/service"
)

// fail writes the response for err. Unknown errors are logged and reported
// as internal_error.
func (h HandlerSet) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrDuplicateEmail):
		status, msg = http.StatusConflict, "email already registered"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, repository.ErrUserReferenced):
		status, msg = http.StatusConflict, "user has dependent records"
	case errors.Is(err, repository.ErrUserNotFound):
		status, msg = http.StatusNotFound, "user not found"
	case errors.Is(err, access.ErrMissingToken):
		status, msg = http.StatusUnauthorized, "missing_token"
	case errors.Is(err, access.ErrUnauthenticated), errors.Is(err, security.ErrInvalidToken):
		status, msg = http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, access.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	default:
		h.log.Error().
			Err(err).
			Str("route", c.FullPath()).
			Str("request_id", middleware.RequestIDFrom(c)).
			Msg("request failed")
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

func principal(c *gin.Context) access.Principal {
	p, _ := middleware.CurrentPrincipal(c)
	return p
}
