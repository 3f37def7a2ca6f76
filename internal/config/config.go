// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Session  SessionConfig
	Identity IdentityConfig
	Claims   ClaimsConfig
	SMTP     SMTPConfig
	SMS      SMSConfig
	Redis    RedisConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, selfsigned, manual, off
	CertDir  string // Directory for the ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// IdentityConfig configures bearer token verification.
type IdentityConfig struct {
	TokenSecret string
	TokenIssuer string
	TokenTTL    time.Duration
}

// ClaimsConfig tunes the claim reservation workflow.
type ClaimsConfig struct {
	HoldDuration  time.Duration
	CodeLength    int
	MaxAttempts   int
	SweepInterval time.Duration
	SweepGrace    time.Duration
}

// SMTPConfig configures the email notification channel. Empty Host disables it.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// SMSConfig configures the Twilio SMS channel. Empty AccountSID disables it.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// RedisConfig selects the shared confirmation registry. Empty URL keeps it in memory.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Identity: IdentityConfig{
			TokenSecret: cmd.String("token-secret"),
			TokenIssuer: cmd.String("token-issuer"),
			TokenTTL:    cmd.Duration("token-ttl"),
		},
		Claims: ClaimsConfig{
			HoldDuration:  cmd.Duration("claims-hold-duration"),
			CodeLength:    int(cmd.Int("claims-code-length")),
			MaxAttempts:   int(cmd.Int("claims-max-attempts")),
			SweepInterval: cmd.Duration("claims-sweep-interval"),
			SweepGrace:    cmd.Duration("claims-sweep-grace"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		SMS: SMSConfig{
			AccountSID: cmd.String("twilio-account-sid"),
			AuthToken:  cmd.String("twilio-auth-token"),
			From:       cmd.String("twilio-from"),
		},
		Redis: RedisConfig{
			URL:       cmd.String("redis-url"),
			KeyPrefix: cmd.String("redis-key-prefix"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// SMTPEnabled reports whether email notifications are configured.
func (c *Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

// SMSEnabled reports whether SMS notifications are configured.
func (c *Config) SMSEnabled() bool {
	return c.SMS.AccountSID != "" && c.SMS.AuthToken != "" && c.SMS.From != ""
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME mode always uses port 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual", "selfsigned":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

// DatabaseFlags are shared by every command that touches the database.
func DatabaseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/foodmaps.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
	}
}

// IdentityFlags configure bearer token signing and verification.
func IdentityFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for bearer tokens (auto-generated if empty in dev)",
			Sources: source("TOKEN_SECRET", "identity.token_secret"),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Value:   "foodmaps",
			Usage:   "Expected bearer token issuer",
			Sources: source("TOKEN_ISSUER", "identity.token_issuer"),
		},
		&cli.DurationFlag{
			Name:    "token-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of issued bearer tokens",
			Sources: source("TOKEN_TTL", "identity.token_ttl"),
		},
	}
}

// ClaimsFlags tune the claim reservation workflow.
func ClaimsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "claims-hold-duration",
			Value:   5 * time.Minute,
			Usage:   "How long a claim waits for its confirmation code",
			Sources: source("CLAIMS_HOLD_DURATION", "claims.hold_duration"),
		},
		&cli.IntFlag{
			Name:    "claims-code-length",
			Value:   4,
			Usage:   "Number of digits in a confirmation code",
			Sources: source("CLAIMS_CODE_LENGTH", "claims.code_length"),
		},
		&cli.IntFlag{
			Name:    "claims-max-attempts",
			Value:   5,
			Usage:   "Wrong codes accepted before a hold is released",
			Sources: source("CLAIMS_MAX_ATTEMPTS", "claims.max_attempts"),
		},
		&cli.DurationFlag{
			Name:    "claims-sweep-interval",
			Value:   time.Minute,
			Usage:   "Interval of the stuck-hold release sweep",
			Sources: source("CLAIMS_SWEEP_INTERVAL", "claims.sweep_interval"),
		},
		&cli.DurationFlag{
			Name:    "claims-sweep-grace",
			Value:   time.Minute,
			Usage:   "Extra wait before the sweep releases holds without a registry entry",
			Sources: source("CLAIMS_SWEEP_GRACE", "claims.sweep_grace"),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for a shared confirmation registry (in-memory if empty)",
			Sources: source("REDIS_URL", "redis.url"),
		},
		&cli.StringFlag{
			Name:    "redis-key-prefix",
			Value:   "foodmaps:claims:",
			Usage:   "Key prefix for confirmation registry entries",
			Sources: source("REDIS_KEY_PREFIX", "redis.key_prefix"),
		},
	}
}

// NotifyFlags configure the SMS and email channels.
func NotifyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (email notifications disabled if empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address for notifications",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Food Maps",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
		&cli.StringFlag{
			Name:    "twilio-account-sid",
			Usage:   "Twilio account SID (SMS disabled if empty)",
			Sources: source("TWILIO_ACCOUNT_SID", "sms.account_sid"),
		},
		&cli.StringFlag{
			Name:    "twilio-auth-token",
			Usage:   "Twilio auth token",
			Sources: source("TWILIO_AUTH_TOKEN", "sms.auth_token"),
		},
		&cli.StringFlag{
			Name:    "twilio-from",
			Usage:   "Twilio sender phone number",
			Sources: source("TWILIO_PHONE_NUMBER", "sms.from"),
		},
	}
}

// Flags returns every flag used by the serve command.
func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, selfsigned, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: source("SESSION_MAX_AGE", "session.max_age"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
	}
	flags = append(flags, DatabaseFlags()...)
	flags = append(flags, IdentityFlags()...)
	flags = append(flags, ClaimsFlags()...)
	flags = append(flags, NotifyFlags()...)
	return flags
}
