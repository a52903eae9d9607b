package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/form-builder/internal/repository"
)

// AdminHandler exposes account moderation. Routes are guarded by
// RequireRole("admin") in the router.
type AdminHandler struct {
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAdminHandler(u *repository.UserRepo, t *repository.TokenRepo) *AdminHandler {
	return &AdminHandler{Users: u, Tokens: t}
}

// BlockUser: POST /v1/admin/users/:id/block. Blocked users fail
// identity resolution on their next request; their refresh tokens are
// revoked here so new access tokens cannot be minted either.
func (h *AdminHandler) BlockUser(c echo.Context) error {
	return h.setBlocked(c, true)
}

// UnblockUser: POST /v1/admin/users/:id/unblock
func (h *AdminHandler) UnblockUser(c echo.Context) error {
	return h.setBlocked(c, false)
}

func (h *AdminHandler) setBlocked(c echo.Context, blocked bool) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Users.SetBlocked(ctx, id, blocked); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	if blocked {
		if err := h.Tokens.RevokeAllForUser(ctx, id); err != nil {
			c.Logger().Warnf("revoke sessions for blocked user %d failed: %v", id, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}
