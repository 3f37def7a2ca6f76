// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/claims"
	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type errorKind struct {
	err    error
	code   string
	status int
}

var errorKinds = []errorKind{
	{claims.ErrNotFound, "not_found", http.StatusNotFound},
	{repository.ErrNotFound, "not_found", http.StatusNotFound},
	{claims.ErrInvalidState, "invalid_state", http.StatusConflict},
	{claims.ErrPreconditionFailed, "precondition_failed", http.StatusPreconditionFailed},
	{claims.ErrExpired, "expired", http.StatusGone},
	{claims.ErrCodeMismatch, "code_mismatch", http.StatusUnprocessableEntity},
	{claims.ErrTooManyAttempts, "too_many_attempts", http.StatusTooManyRequests},
	{claims.ErrForbidden, "forbidden", http.StatusForbidden},
}

// classify maps err to a status and machine code.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, statusCode(he.Code)
	}
	return http.StatusInternalServerError, "internal"
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// ErrorHandler is the echo HTTPErrorHandler. It writes every error as an
// ErrorResponse with a localized detail.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code := classify(err)
	ctx := c.Request().Context()

	detail := i18n.T(ctx, "error_"+code)
	if detail == "error_"+code {
		// no translation; fall back to echo's message
		detail = http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if msg, ok := he.Message.(string); ok {
				detail = msg
			}
		}
	}

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request_failed", "path", c.Path(), "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, ErrorResponse{Detail: detail, Code: code})
	}
	if writeErr != nil {
		slog.ErrorContext(ctx, "error_response_failed", "error", writeErr)
	}
}
