// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strconv"

	"codeberg.org/oliverandrich/foodmaps/internal/auth"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"github.com/labstack/echo/v4"
)

// pathID parses the :id route parameter.
func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// caller returns the authenticated user. Routes using it sit behind
// RequireUser; the check here keeps handlers safe when mounted elsewhere.
func caller(c echo.Context) (*models.User, error) {
	user := auth.GetUser(c.Request().Context())
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return user, nil
}
