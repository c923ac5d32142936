package workspace

import (
	"context"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/upo/upo/internal/platform/auth"
)

type contextKey string

const (
	IDKey contextKey = "workspace_id"

	HeaderWorkspaceID = "X-Workspace-ID"
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Middleware resolves the workspace a request operates in and stores it on
// the request context. Drafts and live forms are partitioned by workspace.
func Middleware(defaultWorkspace string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := extractID(c, defaultWorkspace)
			if !idPattern.MatchString(id) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid workspace identifier")
			}

			ctx := WithID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(string(IDKey), id)
			return next(c)
		}
	}
}

func extractID(c echo.Context, defaultWorkspace string) string {
	// 1. JWT claim (set by auth middleware)
	if id, ok := c.Get(auth.WorkspaceClaimKey).(string); ok && id != "" {
		return id
	}
	// 2. header
	if id := c.Request().Header.Get(HeaderWorkspaceID); id != "" {
		return id
	}
	// 3. query parameter
	if id := c.QueryParam("workspace_id"); id != "" {
		return id
	}
	return defaultWorkspace
}

func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, IDKey, id)
}

// FromContext returns the workspace resolved for the request, or "" when the
// middleware did not run.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(IDKey).(string)
	return id
}
