// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers contains the JSON API of the claim service.
package handlers

import (
	"net/http"

	"codeberg.org/oliverandrich/foodmaps/internal/claims"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"codeberg.org/oliverandrich/foodmaps/internal/services/session"
	"codeberg.org/oliverandrich/foodmaps/internal/sse"
	"github.com/labstack/echo/v4"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo     *repository.Repository
	claims   *claims.Coordinator
	sessions *session.Manager
	hub      *sse.Hub
}

// New creates a new Handlers instance. sessions and hub may be nil, which
// disables cookie sessions and the event stream.
func New(repo *repository.Repository, coordinator *claims.Coordinator, sessions *session.Manager, hub *sse.Hub) *Handlers {
	return &Handlers{
		repo:     repo,
		claims:   coordinator,
		sessions: sessions,
		hub:      hub,
	}
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	if h.repo != nil {
		if err := h.repo.DB().PingContext(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
