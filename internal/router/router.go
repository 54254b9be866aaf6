// Package router registers the HTTP API on an echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/venture-platform/internal/config"
	"github.com/iliyamo/venture-platform/internal/handler"
	"github.com/iliyamo/venture-platform/internal/middleware"
	"github.com/iliyamo/venture-platform/internal/store"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Roles         *handler.RoleHandler
	Platform      *handler.PlatformHandler
	Records       *handler.RecordHandler
	Notifications *handler.NotificationHandler
}

// Deps are the shared services middleware needs.
type Deps struct {
	JWTSecret string
	Docs      store.DocumentStore
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
	Log       *zap.Logger
}

// Register mounts every route. Public auth routes live under /v1/auth;
// everything else under /v1 requires a valid access token and is rate
// limited per caller.
func Register(e *echo.Echo, h Handlers, d Deps) {
	e.GET("/healthz", h.Health.Health)

	pub := e.Group("/v1/auth")
	pub.POST("/register", h.Auth.Register)
	pub.POST("/login", h.Auth.Login)
	pub.POST("/refresh", h.Auth.Refresh)

	v1 := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), middleware.RateLimit(d.RateLimit, d.Redis, d.Log))
	v1.POST("/auth/logout", h.Auth.Logout)
	v1.GET("/me", h.Roles.Me)

	v1.POST("/roles/change", h.Roles.Change)
	v1.GET("/roles/available", h.Roles.Available)
	v1.POST("/roles/reconcile", h.Roles.Reconcile)

	v1.POST("/proposals/:id/risk-assessments", h.Platform.CreateRiskAssessment)
	v1.GET("/proposals/:id/risk-assessments/latest", h.Platform.LatestRiskAssessment)
	v1.PATCH("/proposals/:id/status", h.Records.UpdateProposalStatus)
	v1.POST("/portfolios/:investorId/metrics", h.Platform.UpdatePortfolioMetrics)
	v1.POST("/records/:kind", h.Records.Create)

	v1.GET("/notifications", h.Notifications.List)
	v1.POST("/notifications/:id/read", h.Notifications.MarkRead)

	// The stored-role check runs before the cache so only admins can be
	// served a cached body.
	admin := v1.Group("/admin", middleware.RequireStoredRole(d.Docs, "admin"))
	admin.POST("/roles/grant", h.Roles.Grant)
	admin.GET("/analytics", h.Platform.Analytics, middleware.ResponseCache(d.Cache, d.Redis))
}
