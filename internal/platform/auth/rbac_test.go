package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requireRoleWith(roles []string, required ...string) error {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(context.Background(), "u", roles))
	c := e.NewContext(req, httptest.NewRecorder())
	return RequireRole(required...)(ok)(c)
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		allow bool
	}{
		{"matching role", []string{"nurse"}, true},
		{"one of several", []string{"billing", "resident"}, true},
		{"admin", []string{"admin"}, true},
		{"wrong role", []string{"billing"}, false},
		{"no roles", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireRoleWith(tt.roles, "physician", "nurse", "resident")
			if tt.allow && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tt.allow {
				expectStatus(t, err, http.StatusForbidden)
			}
		})
	}
}
