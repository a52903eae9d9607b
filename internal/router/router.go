package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework used for routing
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/form-builder/internal/auth"
	"github.com/iliyamo/form-builder/internal/config"
	"github.com/iliyamo/form-builder/internal/handler"
	"github.com/iliyamo/form-builder/internal/middleware"
	"github.com/iliyamo/form-builder/internal/model"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, protected
// endpoints under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, resolver *auth.Resolver) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; refresh-access issues a new
	// access token while reusing the existing refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout accepts either a refresh_token in the body (revokes that
	// session) or a valid access token (revokes all sessions), so the
	// identity is resolved optionally rather than required.
	g.POST("/logout", a.Logout, middleware.OptionalAuth(resolver))

	e.GET("/v1/me", a.Me, middleware.RequireAuth(resolver))
}

// RegisterTemplates registers the template lifecycle, sharing and
// response endpoints.  Reads that serve anonymous callers resolve the
// identity optionally; writes require it.  The public listing is
// served through the Redis response cache and submissions go through
// the token-bucket rate limiter.
func RegisterTemplates(
	e *echo.Echo,
	t *handler.TemplateHandler,
	r *handler.ResponseHandler,
	resolver *auth.Resolver,
	rdb *redis.Client,
	cacheCfg config.CacheConfig,
	rateCfg config.RateLimitConfig,
) {
	requireAuth := middleware.RequireAuth(resolver)
	optionalAuth := middleware.OptionalAuth(resolver)

	// Anonymous-friendly reads.
	e.GET("/v1/templates/public", t.ListPublic, optionalAuth, middleware.NewRedisCache(cacheCfg, rdb))
	e.GET("/v1/templates/shared/:token", t.GetByLink, optionalAuth)
	e.GET("/v1/templates/:id", t.Get, optionalAuth)

	// Owner and grantee operations.
	e.POST("/v1/templates", t.Create, requireAuth)
	e.GET("/v1/templates/my", t.ListMine, requireAuth)
	e.PUT("/v1/templates/:id", t.Update, requireAuth)
	e.DELETE("/v1/templates/:id", t.Delete, requireAuth)
	e.POST("/v1/templates/:id/publish", t.Publish, requireAuth)
	e.POST("/v1/templates/:id/unpublish", t.Unpublish, requireAuth)
	e.POST("/v1/templates/:id/share", t.Share, requireAuth)
	e.POST("/v1/templates/:id/link", t.MintLink, requireAuth)

	// Responses.  Submission is open to anonymous callers on public
	// templates, so authorization happens in the service; the rate
	// limiter keys on ip/user/route to blunt anonymous floods.
	e.POST("/v1/templates/:id/responses", r.Submit, optionalAuth, middleware.NewTokenBucket(rateCfg, rdb))
	e.GET("/v1/templates/:id/responses", r.List, requireAuth)
}

// RegisterAdmin registers account moderation endpoints, restricted to
// the admin role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, resolver *auth.Resolver) {
	g := e.Group("/v1/admin", middleware.RequireAuth(resolver), middleware.RequireRole(model.RoleAdmin))
	g.POST("/users/:id/block", a.BlockUser)
	g.POST("/users/:id/unblock", a.UnblockUser)
}
