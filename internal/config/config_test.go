// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestShouldUseTLS(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		host     string
		expected bool
	}{
		{"off mode", "off", "example.com", false},
		{"acme mode", "acme", "localhost", true},
		{"manual mode", "manual", "localhost", true},
		{"selfsigned mode", "selfsigned", "localhost", true},
		{"auto mode with localhost", "auto", "localhost", false},
		{"auto mode with remote host", "auto", "example.com", true},
		{"empty mode with localhost", "", "localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldUseTLS(tt.mode, tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *Config
		expected string
	}{
		{
			name: "localhost HTTP default port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 80},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost",
		},
		{
			name: "localhost HTTP custom port",
			cfg: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080},
				TLS:    TLSConfig{Mode: "off"},
			},
			expected: "http://localhost:8080",
		},
		{
			name: "remote host with auto TLS",
			cfg: &Config{
				Server: ServerConfig{Host: "foodmaps.example.org", Port: 443},
				TLS:    TLSConfig{Mode: "auto"},
			},
			expected: "https://foodmaps.example.org",
		},
		{
			name: "ACME mode forces port 443",
			cfg: &Config{
				Server: ServerConfig{Host: "foodmaps.example.org", Port: 8080},
				TLS:    TLSConfig{Mode: "acme"},
			},
			expected: "https://foodmaps.example.org",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildBaseURL(tt.cfg))
		})
	}
}

func TestFlags(t *testing.T) {
	flagNames := make(map[string]bool)
	for _, f := range Flags() {
		for _, name := range f.Names() {
			assert.False(t, flagNames[name], "duplicate flag %s", name)
			flagNames[name] = true
		}
	}

	for _, name := range []string{
		"host", "port", "database-dsn", "log-level", "tls-mode",
		"session-cookie-name", "token-secret", "claims-hold-duration",
		"claims-code-length", "redis-url", "smtp-host", "twilio-account-sid",
	} {
		assert.True(t, flagNames[name], "should have %s flag", name)
	}
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Equal(t, "_session", cfg.Session.CookieName)

			assert.Equal(t, 5*time.Minute, cfg.Claims.HoldDuration)
			assert.Equal(t, 4, cfg.Claims.CodeLength)
			assert.Equal(t, 5, cfg.Claims.MaxAttempts)
			assert.Equal(t, time.Minute, cfg.Claims.SweepInterval)
			assert.Equal(t, "foodmaps", cfg.Identity.TokenIssuer)
			assert.Empty(t, cfg.Redis.URL)

			assert.False(t, cfg.SMTPEnabled())
			assert.False(t, cfg.SMSEnabled())
			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, "https://foodmaps.example.org", cfg.Server.BaseURL)
			assert.Equal(t, 90*time.Second, cfg.Claims.HoldDuration)
			assert.Equal(t, 6, cfg.Claims.CodeLength)
			assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
			assert.True(t, cfg.SMTPEnabled())
			assert.True(t, cfg.SMSEnabled())
			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--base-url", "https://foodmaps.example.org",
		"--claims-hold-duration", "90s",
		"--claims-code-length", "6",
		"--redis-url", "redis://localhost:6379/0",
		"--smtp-host", "smtp.example.org",
		"--twilio-account-sid", "AC123",
		"--twilio-auth-token", "secret",
		"--twilio-from", "+15550100",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
