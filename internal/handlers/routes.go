// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"codeberg.org/oliverandrich/foodmaps/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Register mounts the API under /api. identity resolves the caller for
// every API route.
func (h *Handlers) Register(e *echo.Echo, identity echo.MiddlewareFunc) {
	e.GET("/health", h.Health)

	api := e.Group("/api", identity, middleware.Locale)

	api.GET("/listings/get", h.ListListings)
	api.GET("/listings/:id", h.GetListing)

	requireUser := middleware.RequireUser
	api.POST("/listings", h.CreateListing, requireUser)
	api.POST("/listings/claim/:id", h.Claim, requireUser)
	api.POST("/listings/confirm/:id", h.Confirm, requireUser)
	api.GET("/listings/user-details/:id", h.UserDetails, requireUser)
	api.GET("/me", h.Me, requireUser)
	api.PUT("/me/phone", h.UpdatePhone, requireUser)
	api.POST("/session", h.CreateSession, requireUser)
	api.GET("/events", h.Events, requireUser)

	api.DELETE("/session", h.DeleteSession)
}
