package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gmpportal/internal/access"
	"gmpportal/internal/metrics"
	"gmpportal/internal/middleware"
	"gmpportal/internal/models"
	"gmpportal/internal/service"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

type Deps struct {
	Log          zerolog.Logger
	Environment  string
	Auth         *service.AuthService
	Users        *service.UserService
	Guard        *access.Guard
	Metrics      *metrics.Metrics
	LoginLimiter *middleware.RateLimiter
	Checks       map[string]Check
}

type HandlerSet struct {
	log          zerolog.Logger
	environment  string
	authService  *service.AuthService
	userService  *service.UserService
	guard        *access.Guard
	metrics      *metrics.Metrics
	loginLimiter *middleware.RateLimiter
	checks       map[string]Check
}

func NewHandlerSet(deps Deps) HandlerSet {
	return HandlerSet{
		log:          deps.Log,
		environment:  deps.Environment,
		authService:  deps.Auth,
		userService:  deps.Users,
		guard:        deps.Guard,
		metrics:      deps.Metrics,
		loginLimiter: deps.LoginLimiter,
		checks:       deps.Checks,
	}
}

// Mount attaches every route to the engine.
func (h HandlerSet) Mount(router gin.IRouter) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := router.Group("/api")

	authed := middleware.Authenticate(h.guard, h.metrics, h.log)
	require := func(op models.Operation) gin.HandlerFunc { return middleware.Require(op, h.metrics) }

	auth := api.Group("/auth")
	{
		public := auth.Group("")
		if h.loginLimiter != nil {
			public.Use(h.loginLimiter.Handler())
		}
		public.POST("/login", h.Login)
		public.POST("/register", h.Register)
		public.POST("/signup", h.Register)

		auth.POST("/logout", authed, h.Logout)
		auth.GET("/me", authed, h.Me)
	}

	api.GET("/dashboard", authed, require(models.OpViewDashboard), h.Dashboard)
	api.GET("/security/validate", authed, require(models.OpValidateSession), h.ValidateSession)
	api.POST("/security/audit", authed, require(models.OpRecordAudit), h.RecordAudit)
	api.PATCH("/profile", authed, require(models.OpUpdateProfile), h.UpdateProfile)

	admin := api.Group("/admin/users", authed)
	{
		admin.GET("", require(models.OpListUsers), h.AdminListUsers)
		admin.GET("/stats", require(models.OpUserStats), h.AdminUserStats)
		admin.GET("/:id", require(models.OpGetUser), h.AdminGetUser)
		admin.PUT("/:id/role", require(models.OpChangeRole), h.AdminChangeRole)
		admin.PUT("/:id/status", require(models.OpChangeStatus), h.AdminChangeStatus)
		admin.DELETE("/:id", require(models.OpDeleteUser), h.AdminDeleteUser)
	}
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		RequestID:  middleware.RequestIDFrom(c),
		ClientIP:   c.ClientIP(),
		UserAgent:  c.GetHeader("User-Agent"),
		RoleHeader: c.GetHeader("X-User-Role"),
	}
}
