// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package csrf guards cookie-authenticated API requests with a double
// submit token.
package csrf

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	// CookieName carries the token to the client.
	CookieName = "_csrf"
	// HeaderName is where the client echoes it back on unsafe requests.
	HeaderName = "X-CSRF-Token"
)

// Middleware checks the token on unsafe requests authenticated by the
// session cookie named sessionCookie. Bearer requests and anonymous
// requests are not checked; the token cookie is readable by scripts so the
// client can copy it into HeaderName.
func Middleware(sessionCookie string, secure bool) echo.MiddlewareFunc {
	return middleware.CSRFWithConfig(middleware.CSRFConfig{
		Skipper: func(c echo.Context) bool {
			return !cookieAuthenticated(c.Request(), sessionCookie)
		},
		TokenLookup:    "header:" + HeaderName,
		CookieName:     CookieName,
		CookiePath:     "/",
		CookieSecure:   secure,
		CookieHTTPOnly: false,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			r := c.Request()
			slog.WarnContext(r.Context(), "csrf_failure",
				"path", r.URL.Path,
				"method", r.Method,
				"ip", c.RealIP(),
				"error", err,
			)
			return echo.NewHTTPError(http.StatusForbidden, "invalid csrf token")
		},
	})
}

func cookieAuthenticated(r *http.Request, sessionCookie string) bool {
	if strings.HasPrefix(strings.ToLower(r.Header.Get(echo.HeaderAuthorization)), "bearer ") {
		return false
	}
	_, err := r.Cookie(sessionCookie)
	return err == nil
}
