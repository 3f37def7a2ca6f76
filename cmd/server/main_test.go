// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/database"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &buf
	cmd.ErrWriter = &buf
	err := cmd.Run(context.Background(), append([]string{"foodmaps"}, args...))
	return buf.String(), err
}

func dsn(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "foodmaps.db")
}

func TestUserAndListingAdd(t *testing.T) {
	db := dsn(t)

	output, err := run(t, "user", "add", "--database-dsn", db,
		"--email", "donor@example.org", "--phone", "(555) 010-2030", "--locale", "es")
	require.NoError(t, err)
	assert.Contains(t, output, "created user 1 (donor@example.org)")

	_, err = run(t, "user", "add", "--database-dsn", db, "--email", "donor@example.org")
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "user", "add", "--database-dsn", db, "--email", "r1@example.org", "--phone", "abc")
	assert.ErrorContains(t, err, "invalid phone number")

	output, err = run(t, "listing", "add", "--database-dsn", db,
		"--donor", "1", "--title", "Bread", "--address", "1 Market Street")
	require.NoError(t, err)
	assert.Contains(t, output, "created listing 1 (Bread)")

	_, err = run(t, "listing", "add", "--database-dsn", db,
		"--donor", "99", "--title", "Rice", "--address", "2 Market Street")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	conn, err := database.Open(db)
	require.NoError(t, err)
	defer conn.Close()
	repo := repository.New(conn)

	user, err := repo.GetUserByEmail(context.Background(), "donor@example.org")
	require.NoError(t, err)
	assert.Equal(t, "+15550102030", user.Phone)
	assert.Equal(t, "donor", user.Name)
	assert.Equal(t, "es", user.Locale)

	listing, err := repo.GetListing(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAvailable, listing.Status)
}

func TestTokenIssue(t *testing.T) {
	db := dsn(t)
	_, err := run(t, "user", "add", "--database-dsn", db, "--email", "r42@example.org")
	require.NoError(t, err)

	output, err := run(t, "token", "issue", "--database-dsn", db, "--token-secret", testSecret, "--user", "1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 2, strings.Count(lines[0], "."))
	assert.True(t, strings.HasPrefix(lines[1], "expires "))

	_, err = run(t, "token", "issue", "--database-dsn", db, "--user", "1")
	assert.ErrorContains(t, err, "token secret")

	_, err = run(t, "token", "issue", "--database-dsn", db, "--token-secret", testSecret, "--user", "7")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMigrate(t *testing.T) {
	db := dsn(t)

	_, err := run(t, "migrate", "up", "--database-dsn", db)
	require.NoError(t, err)
	output, err := run(t, "migrate", "status", "--database-dsn", db)
	require.NoError(t, err)
	assert.Contains(t, output, "schema version 2")

	_, err = run(t, "migrate", "down", "--database-dsn", db)
	require.NoError(t, err)
	output, err = run(t, "migrate", "status", "--database-dsn", db)
	require.NoError(t, err)
	assert.Contains(t, output, "schema version 1")

	_, err = run(t, "migrate", "reset", "--database-dsn", db)
	require.NoError(t, err)
	output, err = run(t, "migrate", "status", "--database-dsn", db)
	require.NoError(t, err)
	assert.Contains(t, output, "schema version 0")
}

func TestSweep(t *testing.T) {
	db := dsn(t)
	conn, err := database.Open(db)
	require.NoError(t, err)
	repo := repository.New(conn)
	ctx := context.Background()

	donor := &models.User{Email: "donor@example.org", Name: "donor"}
	require.NoError(t, repo.CreateUser(ctx, donor))
	recipient := &models.User{Email: "r9@example.org", Name: "r9", Phone: "+15550000009"}
	require.NoError(t, repo.CreateUser(ctx, recipient))
	listing := &models.Listing{DonorID: donor.ID, Title: "Soup", Address: "1 Market Street"}
	require.NoError(t, repo.CreateListing(ctx, listing))

	claimedAt := time.Now().UTC().Add(-time.Hour)
	ok, err := repo.CompareAndSetStatus(ctx, listing.ID, models.StatusAvailable, models.StatusPendingConfirmation,
		repository.ListingFields{UpdatedAt: claimedAt, RecipientID: &recipient.ID, ClaimedAt: &claimedAt})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, conn.Close())

	output, err := run(t, "sweep", "--database-dsn", db, "--token-secret", testSecret)
	require.NoError(t, err)
	assert.Contains(t, output, "released 1 holds")

	output, err = run(t, "sweep", "--database-dsn", db, "--token-secret", testSecret)
	require.NoError(t, err)
	assert.Contains(t, output, "released 0 holds")
}
