// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"strings"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/models"
)

// ListingFields are the columns written alongside a conditional status change.
type ListingFields struct {
	// UpdatedAt defaults to the current time.
	UpdatedAt time.Time
	// HeldBy restricts the update to rows whose recipient_id equals it.
	HeldBy *int64
	// RecipientID and ClaimedAt are written when RecipientID is set.
	RecipientID *int64
	ClaimedAt   *time.Time
	// ClearClaim nulls recipient_id and claimed_at.
	ClearClaim bool
}

// CreateListing inserts listing as available and fills in ID and timestamps.
func (r *Repository) CreateListing(ctx context.Context, listing *models.Listing) error {
	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = listing.CreatedAt
	if listing.Status == "" {
		listing.Status = models.StatusAvailable
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO listings (donor_id, title, description, address, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		listing.DonorID, listing.Title, listing.Description, listing.Address,
		string(listing.Status), listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	listing.ID = id
	return nil
}

// GetListing retrieves a listing by ID.
func (r *Repository) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, `SELECT * FROM listings WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &listing, nil
}

// ListListings returns listings newest first. An empty status returns all of them.
func (r *Repository) ListListings(ctx context.Context, status models.ListingStatus) ([]models.Listing, error) {
	listings := []models.Listing{}
	var err error
	if status == "" {
		err = r.db.SelectContext(ctx, &listings, `SELECT * FROM listings ORDER BY created_at DESC, id DESC`)
	} else {
		err = r.db.SelectContext(ctx, &listings,
			`SELECT * FROM listings WHERE status = ? ORDER BY created_at DESC, id DESC`, string(status))
	}
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// CompareAndSetStatus moves a listing from expected to next in a single
// conditional UPDATE. It reports false when the row was not in the expected
// state (or not held by fields.HeldBy), in which case nothing was written.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id int64, expected, next models.ListingStatus, fields ListingFields) (bool, error) {
	updatedAt := fields.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(next), updatedAt}
	switch {
	case fields.ClearClaim:
		set = append(set, "recipient_id = NULL", "claimed_at = NULL")
	case fields.RecipientID != nil:
		set = append(set, "recipient_id = ?", "claimed_at = ?")
		args = append(args, *fields.RecipientID, fields.ClaimedAt)
	}

	where := "id = ? AND status = ?"
	args = append(args, id, string(expected))
	if fields.HeldBy != nil {
		where += " AND recipient_id = ?"
		args = append(args, *fields.HeldBy)
	}

	res, err := r.db.ExecContext(ctx, "UPDATE listings SET "+strings.Join(set, ", ")+" WHERE "+where, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
