// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func portsFree(int) bool  { return true }
func portsTaken(int) bool { return false }

func TestResolveTLSMode(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		tls      config.TLSConfig
		portFree portProbe
		want     TLSMode
	}{
		{"explicit off", "food.example.org", config.TLSConfig{Mode: "off"}, portsFree, TLSModeOff},
		{"explicit acme", "localhost", config.TLSConfig{Mode: "ACME"}, portsTaken, TLSModeACME},
		{"explicit selfsigned", "localhost", config.TLSConfig{Mode: "selfsigned"}, portsFree, TLSModeSelfSigned},
		{"explicit manual", "localhost", config.TLSConfig{Mode: "manual"}, portsFree, TLSModeManual},
		{"auto localhost", "localhost", config.TLSConfig{Mode: "auto"}, portsFree, TLSModeOff},
		{"auto subdomain of localhost", "app.localhost", config.TLSConfig{}, portsFree, TLSModeOff},
		{"auto with cert files", "food.example.org", config.TLSConfig{Mode: "auto", CertFile: "c.pem", KeyFile: "k.pem"}, portsFree, TLSModeManual},
		{"auto acme", "food.example.org", config.TLSConfig{Mode: "auto", Email: "ops@example.org"}, portsFree, TLSModeACME},
		{"auto acme ports taken", "food.example.org", config.TLSConfig{Mode: "auto", Email: "ops@example.org"}, portsTaken, TLSModeSelfSigned},
		{"auto acme without email", "food.example.org", config.TLSConfig{Mode: "auto"}, portsFree, TLSModeSelfSigned},
		{"auto ip address", "203.0.113.7", config.TLSConfig{Mode: "auto", Email: "ops@example.org"}, portsFree, TLSModeSelfSigned},
		{"unknown falls back to auto", "localhost", config.TLSConfig{Mode: "bogus"}, portsFree, TLSModeOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Server: config.ServerConfig{Host: tt.host}, TLS: tt.tls}
			assert.Equal(t, tt.want, resolveTLSMode(cfg, tt.portFree))
		})
	}
}

func TestSetupTLS_ExplicitACMEValidates(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Host: "food.example.org", Port: 443},
		TLS:    config.TLSConfig{Mode: "acme", CertDir: t.TempDir()},
	}

	_, err := setupTLS(cfg, portsFree)
	require.ErrorContains(t, err, "TLS_EMAIL")

	cfg.TLS.Email = "ops@example.org"
	_, err = setupTLS(cfg, portsTaken)
	require.ErrorContains(t, err, "port 80")

	setup, err := setupTLS(cfg, portsFree)
	require.NoError(t, err)
	assert.Equal(t, TLSModeACME, setup.mode)
	assert.NotNil(t, setup.config)
	assert.NotNil(t, setup.challenge)
	assert.DirExists(t, filepath.Join(cfg.TLS.CertDir, "acme"))
}

func TestSetupTLS_Off(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{Host: "localhost"}}

	setup, err := setupTLS(cfg, portsFree)
	require.NoError(t, err)
	assert.Equal(t, TLSModeOff, setup.mode)
	assert.Nil(t, setup.config)
}

func TestSetupTLS_Manual(t *testing.T) {
	dir := t.TempDir()
	certPEM, keyPEM, err := issueSelfSigned("food.example.org", time.Now())
	require.NoError(t, err)
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))

	cfg := &config.Config{
		Server: config.ServerConfig{Host: "food.example.org"},
		TLS:    config.TLSConfig{Mode: "manual", CertFile: certFile, KeyFile: keyFile},
	}
	setup, err := setupTLS(cfg, portsFree)
	require.NoError(t, err)
	assert.Equal(t, TLSModeManual, setup.mode)
	require.Len(t, setup.config.Certificates, 1)

	cfg.TLS.KeyFile = ""
	_, err = setupTLS(cfg, portsFree)
	assert.ErrorContains(t, err, "cert-file and key-file")

	cfg.TLS.KeyFile = filepath.Join(dir, "missing.pem")
	_, err = setupTLS(cfg, portsFree)
	assert.Error(t, err)
}

func TestIssueSelfSigned(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("dns host", func(t *testing.T) {
		certPEM, _, err := issueSelfSigned("food.example.org", now)
		require.NoError(t, err)
		leaf := parseLeaf(t, certPEM)

		assert.ElementsMatch(t, []string{"localhost", "food.example.org"}, leaf.DNSNames)
		assert.Equal(t, "food.example.org", leaf.Subject.CommonName)
		assert.WithinDuration(t, now.Add(selfSignedValidity), leaf.NotAfter, time.Second)
	})

	t.Run("ip host", func(t *testing.T) {
		certPEM, _, err := issueSelfSigned("203.0.113.7", now)
		require.NoError(t, err)
		leaf := parseLeaf(t, certPEM)

		assert.Equal(t, []string{"localhost"}, leaf.DNSNames)
		ips := make([]string, 0, len(leaf.IPAddresses))
		for _, ip := range leaf.IPAddresses {
			ips = append(ips, ip.String())
		}
		assert.Contains(t, ips, "203.0.113.7")
		assert.Contains(t, ips, "127.0.0.1")
	})
}

func TestSelfSignedCert_ReuseAndRenew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "selfsigned")
	now := time.Now()

	first, err := selfSignedCert("food.example.org", dir, now)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "cert.pem"))
	assert.FileExists(t, filepath.Join(dir, "key.pem"))

	again, err := selfSignedCert("food.example.org", dir, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, fingerprint(first), fingerprint(again))

	renewed, err := selfSignedCert("food.example.org", dir, now.Add(selfSignedValidity-renewBefore+time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, fingerprint(first), fingerprint(renewed))
}

func TestFingerprint(t *testing.T) {
	dir := t.TempDir()
	cert, err := selfSignedCert("localhost", dir, time.Now())
	require.NoError(t, err)

	fp := fingerprint(cert)
	parts := strings.Split(fp, ":")
	assert.Len(t, parts, 32)
	assert.Equal(t, strings.ToUpper(fp), fp)
}

func parseLeaf(t *testing.T, certPEM []byte) *x509.Certificate {
	t.Helper()
	block, _ := pem.Decode(certPEM)
	require.NotNil(t, block)
	leaf, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return leaf
}
