package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strconv"  // numeric formatting for context values
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/iliyamo/form-builder/internal/auth"  // identity resolver
	"github.com/iliyamo/form-builder/internal/model" // user model stored in context
)

// bearerToken extracts the raw token from the Authorization header.
// It returns "" when the header is absent or not a Bearer scheme.
func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
}

// setIdentity stores the resolved user under well-known context keys.
// Handlers read the full user via CurrentUser; the rate limiter and
// role middleware read the string "user_id" and "role" keys.
func setIdentity(c echo.Context, u *model.User) {
	c.Set("user", u)
	c.Set("user_id", strconv.FormatUint(u.ID, 10))
	c.Set("role", u.Role)
}

// RequireAuth returns middleware that resolves the Bearer token into
// a user and rejects the request with 401 when resolution fails.
// Wrap every endpoint that needs an authenticated caller.
func RequireAuth(r *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := r.Resolve(c.Request().Context(), bearerToken(c))
			if err != nil {
				if err == auth.ErrUnauthenticated {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "identity lookup failed"})
			}
			setIdentity(c, u)
			return next(c)
		}
	}
}

// OptionalAuth returns middleware for endpoints that accept both
// authenticated and anonymous callers (public template reads,
// response submission).  Any resolution failure downgrades the
// caller to anonymous instead of rejecting the request.
func OptionalAuth(r *auth.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if u, err := r.Resolve(c.Request().Context(), bearerToken(c)); err == nil {
				setIdentity(c, u)
			}
			return next(c)
		}
	}
}

// CurrentUser returns the authenticated user stored by RequireAuth
// or OptionalAuth, or nil for anonymous callers.
func CurrentUser(c echo.Context) *model.User {
	if u, ok := c.Get("user").(*model.User); ok {
		return u
	}
	return nil
}
