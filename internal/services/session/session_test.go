// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/services/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	hashKey  = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	blockKey = "fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210"
)

func newManager(t *testing.T, mutate func(*config.SessionConfig), secure bool) *session.Manager {
	t.Helper()
	cfg := &config.SessionConfig{CookieName: "_foodmaps", MaxAge: 3600, HashKey: hashKey}
	if mutate != nil {
		mutate(cfg)
	}
	mgr, err := session.NewManager(cfg, secure)
	require.NoError(t, err)
	return mgr
}

func requestWith(c *http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/listings/get", nil)
	if c != nil {
		req.AddCookie(c)
	}
	return req
}

func TestNewManager_KeyValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SessionConfig
		wantErr string
	}{
		{name: "hash key only", cfg: config.SessionConfig{HashKey: hashKey}},
		{name: "hash and block key", cfg: config.SessionConfig{HashKey: hashKey, BlockKey: blockKey}},
		{name: "generated hash key", cfg: config.SessionConfig{}},
		{name: "hash key not hex", cfg: config.SessionConfig{HashKey: "zz"}, wantErr: "invalid session hash key"},
		{name: "hash key short", cfg: config.SessionConfig{HashKey: "0123456789abcdef"}, wantErr: "must be 32 bytes"},
		{name: "block key not hex", cfg: config.SessionConfig{HashKey: hashKey, BlockKey: "zz"}, wantErr: "invalid session block key"},
		{name: "block key short", cfg: config.SessionConfig{HashKey: hashKey, BlockKey: "abcd"}, wantErr: "must be 32 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.CookieName = "_foodmaps"
			tt.cfg.MaxAge = 60

			_, err := session.NewManager(&tt.cfg, false)

			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateAndParse(t *testing.T) {
	mgr := newManager(t, func(c *config.SessionConfig) { c.BlockKey = blockKey }, false)

	cookie, err := mgr.Create(42)
	require.NoError(t, err)
	assert.Equal(t, "_foodmaps", cookie.Name)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	data, err := mgr.Parse(requestWith(cookie))

	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, int64(42), data.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), data.ExpiresAt, 5*time.Second)
}

func TestParse_Anonymous(t *testing.T) {
	mgr := newManager(t, nil, false)
	valid, err := mgr.Create(42)
	require.NoError(t, err)

	tampered := *valid
	tampered.Value = valid.Value[:len(valid.Value)-5] + "XXXXX"

	other := newManager(t, func(c *config.SessionConfig) { c.HashKey = blockKey }, false)
	foreign, err := other.Create(42)
	require.NoError(t, err)

	tests := []struct {
		cookie *http.Cookie
		name   string
	}{
		{name: "no cookie"},
		{name: "garbage", cookie: &http.Cookie{Name: "_foodmaps", Value: "not-a-session"}},
		{name: "tampered", cookie: &tampered},
		{name: "signed with another key", cookie: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := mgr.Parse(requestWith(tt.cookie))

			require.NoError(t, err)
			assert.Nil(t, data)
		})
	}
}

func TestParse_Expired(t *testing.T) {
	mgr := newManager(t, func(c *config.SessionConfig) { c.MaxAge = 1 }, false)
	cookie, err := mgr.Create(42)
	require.NoError(t, err)

	time.Sleep(2100 * time.Millisecond)
	data, err := mgr.Parse(requestWith(cookie))

	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSecureFlag(t *testing.T) {
	mgr := newManager(t, nil, true)

	cookie, err := mgr.Create(42)
	require.NoError(t, err)

	assert.True(t, cookie.Secure)
	assert.True(t, mgr.Clear().Secure)
}

func TestClear(t *testing.T) {
	mgr := newManager(t, nil, false)

	cookie := mgr.Clear()

	assert.Equal(t, "_foodmaps", cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
	assert.True(t, cookie.HttpOnly)
}
