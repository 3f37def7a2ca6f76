// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// ListingStatus is the claim state of a listing.
type ListingStatus string

const (
	StatusAvailable           ListingStatus = "available"
	StatusPendingConfirmation ListingStatus = "pending_confirmation"
	StatusClaimed             ListingStatus = "claimed"
)

// Valid reports whether s is one of the known statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusPendingConfirmation, StatusClaimed:
		return true
	}
	return false
}

// Listing is a donor-posted unit of food available for pickup.
type Listing struct {
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
	ClaimedAt   *time.Time    `db:"claimed_at" json:"claimed_at"`
	RecipientID *int64        `db:"recipient_id" json:"recipient_id"`
	Title       string        `db:"title" json:"title"`
	Description string        `db:"description" json:"description"`
	Address     string        `db:"address" json:"address"`
	Status      ListingStatus `db:"status" json:"status"`
	ID          int64         `db:"id" json:"id"`
	DonorID     int64         `db:"donor_id" json:"donor_id"`
}

// HeldBy reports whether userID is the listing's current recipient.
func (l *Listing) HeldBy(userID int64) bool {
	return l.RecipientID != nil && *l.RecipientID == userID
}
