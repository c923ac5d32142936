package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are reachable without a token.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/store": true,
	"/metrics":      true,
}

// Skipper reports whether the matched route is public.
func Skipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
