package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gmpportal/internal/middleware"
	"gmpportal/internal/models"
)

func (h HandlerSet) Dashboard(c *gin.Context) {
	d, err := h.userService.Dashboard(c.Request.Context(), principal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type validateResponse struct {
	Valid        bool                `json:"valid"`
	UserID       string              `json:"userId"`
	Role         models.Role         `json:"role"`
	Email        string              `json:"email,omitempty"`
	Name         string              `json:"name,omitempty"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	Capabilities []models.Capability `json:"capabilities"`
}

// ValidateSession lets a client confirm its cached token is still accepted.
func (h HandlerSet) ValidateSession(c *gin.Context) {
	p := principal(c)
	c.JSON(http.StatusOK, validateResponse{
		Valid:        true,
		UserID:       p.UserID,
		Role:         p.Role,
		Email:        p.Email,
		Name:         p.Name,
		ExpiresAt:    p.ExpiresAt,
		Capabilities: p.Role.Grants(),
	})
}

type auditRequest struct {
	Action string `json:"action"`
}

func (h HandlerSet) RecordAudit(c *gin.Context) {
	var req auditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	entry, err := h.userService.RecordAudit(c.Request.Context(), principal(c), req.Action, middleware.RequestIDFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":        entry.ID,
		"action":    entry.Action,
		"createdAt": entry.CreatedAt,
	})
}
