// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"codeberg.org/oliverandrich/foodmaps/internal/auth"
	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"github.com/labstack/echo/v4"
)

// Locale sets the request language from the caller's stored locale, falling
// back to the Accept-Language header. It must run after Identity.
func Locale(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		if user := auth.GetUser(ctx); user != nil && user.Locale != "" {
			ctx = i18n.WithUserLocale(ctx, user.Locale)
		} else {
			ctx = i18n.WithLocale(ctx, i18n.MatchLanguage(c.Request().Header.Get("Accept-Language")))
		}
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
