// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package token issues and verifies bearer tokens that identify a user.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/clock"
	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTL = 24 * time.Hour

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Service signs HS256 tokens whose subject is the user id.
type Service struct {
	clock  clock.Clock
	key    []byte
	issuer string
	ttl    time.Duration
}

// NewService creates a token service. A secret is required.
func NewService(cfg *config.IdentityConfig, clk clock.Clock) (*Service, error) {
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	if len(cfg.TokenSecret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes, got %d", len(cfg.TokenSecret))
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Service{
		clock:  clk,
		key:    []byte(cfg.TokenSecret),
		issuer: cfg.TokenIssuer,
		ttl:    ttl,
	}, nil
}

// Issue returns a signed token for userID and its expiry.
func (s *Service) Issue(userID int64) (string, time.Time, error) {
	now := s.clock.Now()
	expires := now.Add(s.ttl)

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	})

	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks signature, issuer and expiry and returns the user id.
func (s *Service) Verify(raw string) (int64, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return 0, ErrExpiredToken
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return userID, nil
}
