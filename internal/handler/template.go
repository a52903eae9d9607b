package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/form-builder/internal/middleware"
	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/service"
)

// TemplateHandler exposes the template lifecycle over HTTP.
type TemplateHandler struct {
	Templates *service.TemplateService
}

func NewTemplateHandler(t *service.TemplateService) *TemplateHandler {
	return &TemplateHandler{Templates: t}
}

// serviceError maps the service error taxonomy onto HTTP status
// codes. Shared by the template and response handlers.
func serviceError(c echo.Context, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error()})
	case errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		c.Logger().Errorf("template handler: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

// ----- DTOs -----

type templateReq struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Questions   []model.Question `json:"questions"`
}

type templatePatchReq struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Questions   *[]model.Question `json:"questions"`
}

type shareReq struct {
	Email string           `json:"email"`
	Level model.ShareLevel `json:"level"`
}

type shareView struct {
	Email  string           `json:"email"`
	UserID uint64           `json:"user_id,omitempty"`
	Level  model.ShareLevel `json:"level"`
}

type templateView struct {
	ID          uint64           `json:"id"`
	OwnerID     uint64           `json:"owner_id"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Questions   []model.Question `json:"questions"`
	Visibility  model.Visibility `json:"visibility"`
	Archived    bool             `json:"archived"`
	ShareLink   string           `json:"share_link,omitempty"`
	Shares      []shareView      `json:"shares,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// toTemplateView renders a template for the given caller. Share
// grants and the link token are owner-only detail; everyone else gets
// the public shape.
func toTemplateView(t *model.Template, caller *model.User) templateView {
	v := templateView{
		ID:          t.ID,
		OwnerID:     t.OwnerID,
		Title:       t.Title,
		Description: t.Description,
		Questions:   t.Questions,
		Visibility:  t.Visibility,
		Archived:    t.Archived,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if caller != nil && caller.ID == t.OwnerID {
		v.ShareLink = t.ShareLink
		for _, s := range t.Shares {
			v.Shares = append(v.Shares, shareView{Email: s.GranteeEmail, UserID: s.GranteeUserID, Level: s.Level})
		}
	}
	return v
}

func toTemplateViews(ts []*model.Template, caller *model.User) []templateView {
	out := make([]templateView, 0, len(ts))
	for _, t := range ts {
		out = append(out, toTemplateView(t, caller))
	}
	return out
}

// ----- Handlers -----

// Create: POST /v1/templates
func (h *TemplateHandler) Create(c echo.Context) error {
	var req templateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := h.Templates.Create(ctx, caller, service.TemplateInput{
		Title:       req.Title,
		Description: req.Description,
		Questions:   req.Questions,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, toTemplateView(t, caller))
}

// Get: GET /v1/templates/:id (optional auth)
func (h *TemplateHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := h.Templates.Get(ctx, caller, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateView(t, caller))
}

// ListMine: GET /v1/templates/my?archived=true
func (h *TemplateHandler) ListMine(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	includeArchived := c.QueryParam("archived") == "true"
	ts, err := h.Templates.ListMine(ctx, caller, includeArchived)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateViews(ts, caller))
}

// ListPublic: GET /v1/templates/public?q=term (anonymous, cached).
// Rendered with the anonymous shape regardless of caller: the
// response cache serves the same body to everyone, so owner-only
// detail must never end up in it.
func (h *TemplateHandler) ListPublic(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ts, err := h.Templates.ListPublic(ctx, c.QueryParam("q"))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateViews(ts, nil))
}

// Update: PUT /v1/templates/:id
func (h *TemplateHandler) Update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	var req templatePatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := h.Templates.Update(ctx, caller, id, service.TemplatePatch{
		Title:       req.Title,
		Description: req.Description,
		Questions:   req.Questions,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateView(t, caller))
}

// Delete: DELETE /v1/templates/:id (archives, never hard-deletes)
func (h *TemplateHandler) Delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Templates.Delete(ctx, middleware.CurrentUser(c), id); err != nil {
		return serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Publish: POST /v1/templates/:id/publish
func (h *TemplateHandler) Publish(c echo.Context) error {
	return h.setVisibility(c, h.Templates.Publish)
}

// Unpublish: POST /v1/templates/:id/unpublish
func (h *TemplateHandler) Unpublish(c echo.Context) error {
	return h.setVisibility(c, h.Templates.Unpublish)
}

func (h *TemplateHandler) setVisibility(c echo.Context, op func(context.Context, *model.User, uint64) (*model.Template, error)) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := op(ctx, caller, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateView(t, caller))
}

// Share: POST /v1/templates/:id/share
func (h *TemplateHandler) Share(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	var req shareReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := h.Templates.Share(ctx, caller, id, req.Email, req.Level)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateView(t, caller))
}

// MintLink: POST /v1/templates/:id/link
func (h *TemplateHandler) MintLink(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, err := h.Templates.MintShareLink(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"token": token})
}

// GetByLink: GET /v1/templates/shared/:token (optional auth)
func (h *TemplateHandler) GetByLink(c echo.Context) error {
	token := c.Param("token")
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	caller := middleware.CurrentUser(c)
	t, err := h.Templates.GetByShareLink(ctx, caller, token)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toTemplateView(t, caller))
}
