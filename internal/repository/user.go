// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/models"
)

// CreateUser inserts user and fills in its ID and CreatedAt.
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.Locale == "" {
		user.Locale = "en"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (email, name, phone, locale, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.Phone, user.Locale, user.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email address.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

// UpdateUserPhone sets the contact phone of a user.
func (r *Repository) UpdateUserPhone(ctx context.Context, id int64, phone string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET phone = ? WHERE id = ?`, phone, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
