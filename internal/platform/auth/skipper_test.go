package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSkipper(t *testing.T) {
	e := echo.New()
	for path, want := range map[string]bool{
		"/health":                true,
		"/health/store":          true,
		"/metrics":               true,
		"/api/v1/forms/:form":    false,
		"/api/v1/reminders/:id":  false,
	} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetPath(path)
		if got := Skipper(c); got != want {
			t.Errorf("Skipper(%s) = %v, want %v", path, got, want)
		}
	}
}
