// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"golang.org/x/crypto/acme/autocert"
)

// TLSMode is the resolved way the API is served.
type TLSMode string

const (
	TLSModeOff        TLSMode = "off"
	TLSModeACME       TLSMode = "acme"
	TLSModeSelfSigned TLSMode = "selfsigned"
	TLSModeManual     TLSMode = "manual"
)

const (
	selfSignedValidity = 365 * 24 * time.Hour
	renewBefore        = 30 * 24 * time.Hour
)

// tlsSetup is what the listener needs for the resolved mode.
type tlsSetup struct {
	config *tls.Config
	// challenge answers ACME HTTP-01 requests on :80 and redirects the rest.
	challenge http.Handler
	mode      TLSMode
}

// portProbe reports whether a TCP port can be bound.
type portProbe func(port int) bool

// resolveTLSMode picks the mode from the configured one. "auto" serves
// localhost in plain HTTP and public hosts over TLS, preferring provided
// certificate files, then Let's Encrypt, then a self-signed certificate.
func resolveTLSMode(cfg *config.Config, portFree portProbe) TLSMode {
	switch mode := strings.ToLower(cfg.TLS.Mode); mode {
	case "off":
		return TLSModeOff
	case "acme":
		return TLSModeACME
	case "selfsigned":
		return TLSModeSelfSigned
	case "manual":
		return TLSModeManual
	case "auto", "":
	default:
		slog.Warn("tls_mode_unknown", "mode", mode, "fallback", "auto")
	}

	host := cfg.Server.Host
	switch {
	case config.IsLocalhost(host):
		return TLSModeOff
	case cfg.TLS.CertFile != "" && cfg.TLS.KeyFile != "":
		return TLSModeManual
	case acmeEligible(cfg, portFree) == nil:
		return TLSModeACME
	default:
		return TLSModeSelfSigned
	}
}

// acmeEligible returns why Let's Encrypt cannot be used, or nil.
func acmeEligible(cfg *config.Config, portFree portProbe) error {
	host := cfg.Server.Host
	switch {
	case config.IsLocalhost(host):
		return errors.New("ACME needs a public host name")
	case net.ParseIP(host) != nil:
		return errors.New("ACME cannot issue certificates for IP addresses")
	case cfg.TLS.Email == "":
		return errors.New("ACME mode requires TLS_EMAIL to be set")
	case !portFree(80):
		return errors.New("ACME mode requires port 80 for the HTTP-01 challenge")
	case !portFree(443):
		return errors.New("ACME mode requires port 443")
	}
	return nil
}

func isPortAvailable(port int) bool {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// setupTLS prepares certificates for the resolved mode.
func setupTLS(cfg *config.Config, portFree portProbe) (*tlsSetup, error) {
	mode := resolveTLSMode(cfg, portFree)
	slog.Info("tls_mode", "mode", mode, "host", cfg.Server.Host)

	switch mode {
	case TLSModeOff:
		return &tlsSetup{mode: mode}, nil
	case TLSModeACME:
		if err := acmeEligible(cfg, portFree); err != nil {
			return nil, err
		}
		if cfg.Server.Port != 443 {
			slog.Warn("tls_acme_port_ignored", "configured_port", cfg.Server.Port)
		}
		return acmeSetup(cfg)
	case TLSModeManual:
		cert, err := loadKeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		return &tlsSetup{mode: mode, config: serverTLSConfig(cert)}, nil
	case TLSModeSelfSigned:
		cert, err := selfSignedCert(cfg.Server.Host, filepath.Join(cfg.TLS.CertDir, "selfsigned"), time.Now())
		if err != nil {
			return nil, err
		}
		slog.Warn("tls_self_signed", "detail", "clients must trust the certificate fingerprint explicitly")
		return &tlsSetup{mode: mode, config: serverTLSConfig(cert)}, nil
	default:
		return nil, fmt.Errorf("unknown TLS mode: %s", mode)
	}
}

func acmeSetup(cfg *config.Config) (*tlsSetup, error) {
	dir := filepath.Join(cfg.TLS.CertDir, "acme")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create ACME cache: %w", err)
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.TLS.Email,
		Cache:      autocert.DirCache(dir),
		HostPolicy: autocert.HostWhitelist(cfg.Server.Host),
	}
	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	return &tlsSetup{
		mode:      TLSModeACME,
		config:    tlsConfig,
		challenge: manager.HTTPHandler(nil),
	}, nil
}

func loadKeyPair(certFile, keyFile string) (*tls.Certificate, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("manual TLS mode requires both cert-file and key-file")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load certificate: %w", err)
	}
	slog.Info("tls_certificate", "cert", certFile, "sha256", fingerprint(&cert))
	return &cert, nil
}

// selfSignedCert reuses the certificate in dir unless it is missing,
// unreadable or within renewBefore of expiry, and issues a new one otherwise.
func selfSignedCert(host, dir string, now time.Time) (*tls.Certificate, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")

	if cert, err := tls.LoadX509KeyPair(certFile, keyFile); err == nil && !expiresSoon(&cert, now) {
		slog.Info("tls_certificate_reused", "sha256", fingerprint(&cert))
		return &cert, nil
	}

	certPEM, keyPEM, err := issueSelfSigned(host, now)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(certFile, certPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write key: %w", err)
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("load generated certificate: %w", err)
	}
	slog.Info("tls_certificate_issued", "host", host, "sha256", fingerprint(&cert))
	return &cert, nil
}

// issueSelfSigned returns a PEM encoded ECDSA P-256 certificate and key for
// host that also covers localhost.
func issueSelfSigned(host string, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"Food Maps"}, CommonName: host},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(selfSignedValidity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	if ip := net.ParseIP(host); ip != nil {
		tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
	} else if host != "" && host != "localhost" {
		tmpl.DNSNames = append(tmpl.DNSNames, host)
	}

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func expiresSoon(cert *tls.Certificate, now time.Time) bool {
	if len(cert.Certificate) == 0 {
		return true
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return true
	}
	return leaf.NotAfter.Sub(now) < renewBefore
}

// fingerprint returns the colon separated SHA-256 of the leaf certificate.
func fingerprint(cert *tls.Certificate) string {
	if len(cert.Certificate) == 0 {
		return ""
	}
	sum := sha256.Sum256(cert.Certificate[0])
	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = strings.ToUpper(hex.EncodeToString([]byte{b}))
	}
	return strings.Join(parts, ":")
}

func serverTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
}
