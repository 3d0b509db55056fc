package handlers

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gmpportal/internal/middleware"
	"gmpportal/internal/models"
	"gmpportal/internal/repository"
)

// maxListPage keeps (page-1)*limit within int32 for every accepted limit.
const maxListPage = math.MaxInt32 / repository.MaxListLimit

func (h HandlerSet) AdminListUsers(c *gin.Context) {
	filter := repository.ListFilter{
		Limit:  repository.DefaultListLimit,
		Search: c.Query("search"),
	}

	if perPage := c.Query("limit"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 {
			filter.Limit = v
		}
	}
	if offset := c.Query("offset"); offset != "" {
		if v, err := strconv.Atoi(offset); err == nil && v > 0 {
			filter.Offset = v
		}
	}
	if page := c.Query("page"); page != "" && c.Query("offset") == "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			v = min(v, maxListPage)
			filter.Offset = (v - 1) * filter.Normalize().Limit
		}
	}
	if role := c.Query("role"); role != "" {
		parsed, err := models.ParseRole(role)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		filter.Role = parsed
	}

	page, err := h.userService.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h HandlerSet) AdminUserStats(c *gin.Context) {
	stats, err := h.userService.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h HandlerSet) AdminGetUser(c *gin.Context) {
	user, err := h.userService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type roleRequest struct {
	Role string `json:"role"`
}

func (h HandlerSet) AdminChangeRole(c *gin.Context) {
	var req roleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := h.userService.ChangeRole(c.Request.Context(), principal(c), c.Param("id"), req.Role, middleware.RequestIDFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h HandlerSet) AdminChangeStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := h.userService.ChangeStatus(c.Request.Context(), principal(c), c.Param("id"), req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (h HandlerSet) AdminDeleteUser(c *gin.Context) {
	if err := h.userService.Delete(c.Request.Context(), principal(c), c.Param("id"), middleware.RequestIDFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
