// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/csrf"
	"codeberg.org/oliverandrich/foodmaps/internal/metrics"
	appmw "codeberg.org/oliverandrich/foodmaps/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// setupMiddleware installs the stack shared by every route. Metrics sit
// innermost so they observe the status written by the error handler.
func setupMiddleware(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	e.Pre(middleware.RemoveTrailingSlashWithConfig(middleware.TrailingSlashConfig{
		RedirectCode: http.StatusPermanentRedirect,
	}))

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmw.RequestID)
	e.Use(appmw.RequestLogger(logger))
	e.Use(middleware.Secure())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{Skipper: isEventStream}))
	e.Use(middleware.BodyLimit(bodyLimit(cfg.Server.MaxBodySize)))
	e.Use(csrf.Middleware(cfg.Session.CookieName, secureCookies(cfg)))
	e.Use(m.Middleware())
}

// isEventStream skips compression for the SSE endpoint, which must flush
// every event as it is written.
func isEventStream(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/events")
}

func bodyLimit(mb int) string {
	if mb <= 0 {
		mb = 1
	}
	return fmt.Sprintf("%dM", mb)
}
