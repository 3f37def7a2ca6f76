// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// User is a donor or recipient. Phone is the contact channel a claim needs.
type User struct {
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Phone     string    `db:"phone" json:"phone,omitempty"`
	Locale    string    `db:"locale" json:"locale"`
	ID        int64     `db:"id" json:"id"`
}

// HasPhone reports whether the user can receive a confirmation code.
func (u *User) HasPhone() bool {
	return u.Phone != ""
}

// Contact is the subset of a user shared with the other party of a claim.
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	ID    int64  `json:"id"`
}

// Contact returns the details exchanged after a confirmed claim.
func (u *User) Contact() Contact {
	return Contact{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}
