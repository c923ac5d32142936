package summary

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/upo/upo/internal/domain/draft"
	"github.com/upo/upo/internal/domain/form"
	"github.com/upo/upo/internal/platform/auth"
	"github.com/upo/upo/internal/platform/calendar"
	"github.com/upo/upo/internal/platform/workspace"
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
	forms.POST("/:form/summary", h.Summarize)
	forms.POST("/:form/reminder", h.CreateReminder)

	api.POST("/summaries/:form", h.SummarizeDraft, role)
	api.GET("/reminders/:id", h.GetReminder, role)
}

type ReminderRequest struct {
	Minutes int `json:"minutes"`
}

// MissingFieldsResponse is the body of a composition rejected for unanswered
// questions.
type MissingFieldsResponse struct {
	Message   string         `json:"message"`
	Missing   []MissingField `json:"missing"`
	Flag      []string       `json:"flag"`
	FlagForMS int64          `json:"flag_for_ms"`
}

func (h *Handler) Summarize(c echo.Context) error {
	ctx := c.Request().Context()
	sum, err := h.svc.Summarize(ctx, workspace.FromContext(ctx), c.Param("form"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) SummarizeDraft(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sum, err := h.svc.SummarizeDraft(c.Param("form"), body)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) CreateReminder(c echo.Context) error {
	var req ReminderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	rem, meta, err := h.svc.Remind(ctx, workspace.FromContext(ctx), c.Param("form"), req.Minutes)
	if err != nil {
		return h.fail(c, err)
	}
	res := c.Response().Header()
	res.Set(echo.HeaderContentDisposition, `attachment; filename="`+calendar.FileName+`"`)
	res.Set(echo.HeaderLocation, "/api/v1/reminders/"+meta.ID)
	res.Set("X-Reminder-ID", meta.ID)
	return c.Blob(http.StatusCreated, calendar.ContentType, []byte(rem.ICS()))
}

func (h *Handler) GetReminder(c echo.Context) error {
	ctx := c.Request().Context()
	data, meta, err := h.svc.ReminderFile(ctx, workspace.FromContext(ctx), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+meta.FileName+`"`)
	c.Response().Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	return c.Blob(http.StatusOK, meta.ContentType, data)
}

func (h *Handler) fail(c echo.Context, err error) error {
	var missing *MissingFieldsError
	if errors.As(err, &missing) {
		return c.JSON(http.StatusUnprocessableEntity, MissingFieldsResponse{
			Message:   missing.Error(),
			Missing:   missing.Missing,
			Flag:      missing.Fields(),
			FlagForMS: missing.Highlight.Milliseconds(),
		})
	}
	switch {
	case errors.Is(err, form.ErrUnknownForm), errors.Is(err, ErrUnknownVariant):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrReminderNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, draft.ErrMalformedDraft), errors.Is(err, calendar.ErrInvalidOffset):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
