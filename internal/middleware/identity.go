// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware contains the echo middleware that resolves the caller.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/auth"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"codeberg.org/oliverandrich/foodmaps/internal/services/session"
	"github.com/labstack/echo/v4"
)

// UserLoader loads the user a credential refers to.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(raw string) (int64, error)
}

// SessionParser resolves a session cookie.
type SessionParser interface {
	Parse(r *http.Request) (*session.Data, error)
}

// Identity puts the caller into the request context. A bearer token takes
// precedence over the session cookie. An invalid bearer token is rejected;
// a bad cookie leaves the request anonymous. Either verifier may be nil.
func Identity(tokens TokenVerifier, sessions SessionParser, users UserLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			userID, err := callerID(req, tokens, sessions)
			if err != nil {
				return err
			}
			if userID == 0 {
				return next(c)
			}

			user, err := users.GetUserByID(req.Context(), userID)
			if errors.Is(err, repository.ErrNotFound) {
				slog.Warn("identity_unknown_user", "user_id", userID)
				return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
			}
			if err != nil {
				return err
			}

			c.SetRequest(req.WithContext(auth.WithUser(req.Context(), user)))
			return next(c)
		}
	}
}

func callerID(r *http.Request, tokens TokenVerifier, sessions SessionParser) (int64, error) {
	if raw, ok := bearer(r); ok && tokens != nil {
		userID, err := tokens.Verify(raw)
		if err != nil {
			return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token").SetInternal(err)
		}
		return userID, nil
	}

	if sessions == nil {
		return 0, nil
	}
	data, err := sessions.Parse(r)
	if err != nil || data == nil {
		return 0, nil //nolint:nilerr // unreadable cookies are anonymous
	}
	return data.UserID, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, raw, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		return next(c)
	}
}
