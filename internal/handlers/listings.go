// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/claims"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"github.com/labstack/echo/v4"
)

// CreateListingRequest is the body of POST /api/listings.
type CreateListingRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Address     string `json:"address"`
}

// CreateListing posts a new available listing owned by the caller.
func (h *Handlers) CreateListing(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}

	var req CreateListingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Address = strings.TrimSpace(req.Address)
	if req.Title == "" || req.Address == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title and address are required")
	}

	listing := &models.Listing{
		DonorID:     user.ID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Address:     req.Address,
	}
	if err := h.repo.CreateListing(c.Request().Context(), listing); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, listing)
}

// ListListings returns all listings, optionally filtered by ?status=.
func (h *Handlers) ListListings(c echo.Context) error {
	status := models.ListingStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
	}

	listings, err := h.repo.ListListings(c.Request().Context(), status)
	if err != nil {
		return err
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	return c.JSON(http.StatusOK, listings)
}

// GetListing returns one listing.
func (h *Handlers) GetListing(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	listing, err := h.repo.GetListing(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, listing)
}

// UserDetailsResponse carries the contacts exchanged after a confirmed claim.
type UserDetailsResponse struct {
	Donor     models.Contact `json:"donor"`
	Recipient models.Contact `json:"recipient"`
}

// UserDetails returns donor and recipient contacts of a claimed listing to
// either of the two parties.
func (h *Handlers) UserDetails(c echo.Context) error {
	user, err := caller(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	listing, err := h.repo.GetListing(ctx, id)
	if err != nil {
		return err
	}
	if listing.Status != models.StatusClaimed || listing.RecipientID == nil {
		return claims.ErrForbidden
	}
	if listing.DonorID != user.ID && !listing.HeldBy(user.ID) {
		return claims.ErrForbidden
	}

	donor, err := h.repo.GetUserByID(ctx, listing.DonorID)
	if err != nil {
		return err
	}
	recipient, err := h.repo.GetUserByID(ctx, *listing.RecipientID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UserDetailsResponse{
		Donor:     donor.Contact(),
		Recipient: recipient.Contact(),
	})
}
