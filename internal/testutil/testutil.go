// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"

	"codeberg.org/oliverandrich/foodmaps/internal/database"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestUser creates a test user with a phone number on file.
func NewTestUser(t *testing.T, repo *repository.Repository, name string) *models.User {
	t.Helper()
	user := &models.User{
		Email:  name + "@example.org",
		Name:   name,
		Phone:  "+1555" + name,
		Locale: "en",
	}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestUserWithoutPhone creates a test user that cannot receive codes.
func NewTestUserWithoutPhone(t *testing.T, repo *repository.Repository, name string) *models.User {
	t.Helper()
	user := &models.User{Email: name + "@example.org", Name: name}
	require.NoError(t, repo.CreateUser(context.Background(), user))
	return user
}

// NewTestListing creates an available listing owned by donorID.
func NewTestListing(t *testing.T, repo *repository.Repository, donorID int64, title string) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		DonorID: donorID,
		Title:   title,
		Address: "1 Market Street",
	}
	require.NoError(t, repo.CreateListing(context.Background(), listing))
	return listing
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewEchoContextWithHeaders creates an Echo context with custom headers.
func NewEchoContextWithHeaders(e *echo.Echo, method, path string, body io.Reader, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
