package draft

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/platform/auth"
	"github.com/upo/upo/internal/platform/workspace"
	"github.com/upo/upo/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole("physician", "nurse", "resident")

	forms := api.Group("/forms", role)
	forms.GET("/:form", h.GetForm)
	forms.PATCH("/:form/fields/:field", h.EditField)
	forms.PUT("/:form/toggles/:toggle", h.SetToggle)
	forms.POST("/:form/hide", h.Hide)
	forms.POST("/:form/teardown", h.Teardown)
	forms.POST("/:form/resume", h.Resume)
	forms.POST("/:form/reset", h.Reset)

	drafts := api.Group("/drafts", role)
	drafts.GET("", h.ListDrafts)
	drafts.GET("/:group", h.GetDraft)
	drafts.DELETE("/:group", h.DeleteDraft)
}

// FieldEdit is the body of a field edit. Scalar fields take Value, multi
// selects take Values.
type FieldEdit struct {
	Value  *string  `json:"value"`
	Values []string `json:"values"`
}

type ToggleEdit struct {
	On bool `json:"on"`
}

func (h *Handler) GetForm(c echo.Context) error {
	ctx := c.Request().Context()
	snap, err := h.svc.Snapshot(ctx, workspace.FromContext(ctx), c.Param("form"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) EditField(c echo.Context) error {
	var body FieldEdit
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	values := body.Values
	if body.Value != nil {
		values = []string{*body.Value}
	}
	ctx := c.Request().Context()
	snap, err := h.svc.Edit(ctx, workspace.FromContext(ctx), c.Param("form"), c.Param("field"), values...)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) SetToggle(c echo.Context) error {
	var body ToggleEdit
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	snap, err := h.svc.Toggle(ctx, workspace.FromContext(ctx), c.Param("form"), c.Param("toggle"), body.On)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (h *Handler) Hide(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Hide(ctx, workspace.FromContext(ctx), c.Param("form")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Teardown(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.Teardown(ctx, workspace.FromContext(ctx), c.Param("form")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Resume(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Resume(ctx, workspace.FromContext(ctx), c.Param("form"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Reset(c echo.Context) error {
	ctx := c.Request().Context()
	out, err := h.svc.Reset(ctx, workspace.FromContext(ctx), c.Param("form"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) ListDrafts(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	items, total, err := h.svc.Drafts(ctx, workspace.FromContext(ctx), pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*Entry{}
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, resp.WithLinks(c.Request().URL.Path, c.QueryParams()))
}

// GetDraft returns the stored draft object exactly as persisted.
func (h *Handler) GetDraft(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.svc.StoredDraft(ctx, workspace.FromContext(ctx), c.Param("group"))
	if err != nil {
		return httpError(err)
	}
	return c.JSONBlob(http.StatusOK, e.Payload)
}

func (h *Handler) DeleteDraft(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.svc.DiscardDraft(ctx, workspace.FromContext(ctx), c.Param("group")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, form.ErrUnknownForm), errors.Is(err, form.ErrUnknownGroup):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNoDraft):
		return echo.NewHTTPError(http.StatusNotFound, "no saved draft")
	case errors.Is(err, form.ErrUnknownField),
		errors.Is(err, form.ErrUnknownToggle),
		errors.Is(err, form.ErrInvalidOption),
		errors.Is(err, form.ErrFieldDisabled):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
