package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/form-builder/internal/middleware"
	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/service"
)

// ResponseHandler exposes response submission and listing.
type ResponseHandler struct {
	Responses *service.ResponseService
}

func NewResponseHandler(r *service.ResponseService) *ResponseHandler {
	return &ResponseHandler{Responses: r}
}

type submitReq struct {
	Answers map[string]any `json:"answers"`
}

type responseView struct {
	ID           uint64         `json:"id"`
	TemplateID   uint64         `json:"template_id"`
	RespondentID *uint64        `json:"respondent_id,omitempty"`
	Answers      map[string]any `json:"answers"`
	CreatedAt    time.Time      `json:"created_at"`
}

func toResponseView(r *model.Response) responseView {
	return responseView{
		ID:           r.ID,
		TemplateID:   r.TemplateID,
		RespondentID: r.RespondentID,
		Answers:      r.Answers,
		CreatedAt:    r.CreatedAt,
	}
}

// Submit: POST /v1/templates/:id/responses (optional auth, rate limited)
func (h *ResponseHandler) Submit(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp, err := h.Responses.Submit(ctx, middleware.CurrentUser(c), id, req.Answers)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, toResponseView(resp))
}

// List: GET /v1/templates/:id/responses (owner only, newest first)
func (h *ResponseHandler) List(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid template id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rs, err := h.Responses.List(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return serviceError(c, err)
	}
	out := make([]responseView, 0, len(rs))
	for _, r := range rs {
		out = append(out, toResponseView(r))
	}
	return c.JSON(http.StatusOK, out)
}
