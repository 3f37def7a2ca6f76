// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"github.com/labstack/echo/v4"
)

// ClaimResponse is returned by a successful claim.
type ClaimResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	Message   string    `json:"message"`
	Success   bool      `json:"success"`
}

// Claim holds the listing for the caller and texts them a confirmation code.
func (h *Handlers) Claim(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	claim, err := h.claims.InitiateClaim(ctx, id, user.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ClaimResponse{
		Success:   true,
		Message:   i18n.T(ctx, "claim_started"),
		ExpiresAt: claim.ExpiresAt,
	})
}

// ConfirmRequest is the body of POST /api/listings/confirm/:id.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// ConfirmResponse is returned by a successful confirmation.
type ConfirmResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

// Confirm finalizes the caller's hold with the code they received.
func (h *Handlers) Confirm(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "code is required")
	}

	ctx := c.Request().Context()
	if err := h.claims.ConfirmClaim(ctx, id, user.ID, req.Code); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ConfirmResponse{
		Success: true,
		Message: i18n.T(ctx, "claim_confirmed"),
	})
}
