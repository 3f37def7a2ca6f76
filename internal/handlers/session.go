// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/services/sms"
	"github.com/labstack/echo/v4"
)

// Me returns the authenticated user.
func (h *Handlers) Me(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// UpdatePhoneRequest is the body of PUT /api/me/phone.
type UpdatePhoneRequest struct {
	Phone string `json:"phone"`
}

// UpdatePhone stores the number confirmation codes are sent to.
func (h *Handlers) UpdatePhone(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}

	var req UpdatePhoneRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phone is required")
	}
	phone = sms.Normalize(phone)
	if !sms.Valid(phone) {
		return echo.NewHTTPError(http.StatusBadRequest, "phone must be an international number like +15550102000")
	}

	ctx := c.Request().Context()
	if err := h.repo.UpdateUserPhone(ctx, user.ID, phone); err != nil {
		return err
	}
	updated, err := h.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

// CreateSession exchanges the caller's bearer token for a session cookie, so
// that browsers can open the event stream.
func (h *Handlers) CreateSession(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	if h.sessions == nil {
		return echo.NewHTTPError(http.StatusNotFound, "sessions are disabled")
	}

	cookie, err := h.sessions.Create(user.ID)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	slog.Info("session_created", "user_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

// DeleteSession clears the session cookie.
func (h *Handlers) DeleteSession(c echo.Context) error {
	if h.sessions == nil {
		return c.NoContent(http.StatusNoContent)
	}
	c.SetCookie(h.sessions.Clear())
	return c.NoContent(http.StatusNoContent)
}
