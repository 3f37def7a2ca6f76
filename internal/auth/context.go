// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth carries the authenticated caller through request contexts.
package auth

import (
	"context"

	"codeberg.org/oliverandrich/foodmaps/internal/ctxkeys"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
)

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, ctxkeys.User{}, user)
}

// GetUser returns the authenticated user from the context, or nil if not authenticated.
func GetUser(ctx context.Context) *models.User {
	if user, ok := ctx.Value(ctxkeys.User{}).(*models.User); ok {
		return user
	}
	return nil
}

// UserID returns the authenticated user's id and whether there is one.
func UserID(ctx context.Context) (int64, bool) {
	if user := GetUser(ctx); user != nil {
		return user.ID, true
	}
	return 0, false
}

// IsAuthenticated returns true if the context has an authenticated user.
func IsAuthenticated(ctx context.Context) bool {
	return GetUser(ctx) != nil
}

// WithRequestID returns a copy of ctx carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkeys.RequestID{}, id)
}

// RequestID returns the request id, or an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkeys.RequestID{}).(string)
	return id
}
