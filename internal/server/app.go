// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"codeberg.org/oliverandrich/foodmaps/internal/claims"
	"codeberg.org/oliverandrich/foodmaps/internal/clock"
	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/metrics"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"codeberg.org/oliverandrich/foodmaps/internal/services/email"
	"codeberg.org/oliverandrich/foodmaps/internal/services/notify"
	"codeberg.org/oliverandrich/foodmaps/internal/services/session"
	"codeberg.org/oliverandrich/foodmaps/internal/services/sms"
	"codeberg.org/oliverandrich/foodmaps/internal/services/token"
	"codeberg.org/oliverandrich/foodmaps/internal/sse"
	"github.com/redis/go-redis/v9"
	"github.com/vinovest/sqlx"
)

// App is the wired claim service.
type App struct {
	Repo        *repository.Repository
	Coordinator *claims.Coordinator
	Scheduler   *claims.Scheduler
	Gateway     *notify.Gateway
	Metrics     *metrics.Metrics
	Hub         *sse.Hub
	Tokens      *token.Service
	Sessions    *session.Manager
	cfg         *config.Config
	closers     []func() error
}

// NewApp builds the workflow, its notification channels and the identity
// services on top of an open database.
func NewApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Repo:    repository.New(db),
		Hub:     sse.NewHub(),
		Metrics: metrics.New(),
		cfg:     cfg,
	}

	registry, closeRegistry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeRegistry != nil {
		app.closers = append(app.closers, closeRegistry)
	}

	senders, err := buildSenders(cfg, app.Hub, logger)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Gateway = notify.NewGateway(senders,
		notify.WithLogger(logger),
		notify.WithFailureHook(app.Metrics.NotifyFailed),
	)

	clk := clock.NewSystem()
	app.Scheduler = claims.NewScheduler(clk)
	app.Coordinator = claims.NewCoordinator(app.Repo, registry, app.Scheduler, app.Gateway, clk,
		claims.WithHoldDuration(cfg.Claims.HoldDuration),
		claims.WithSweepGrace(cfg.Claims.SweepGrace),
		claims.WithCodeLength(cfg.Claims.CodeLength),
		claims.WithMaxAttempts(cfg.Claims.MaxAttempts),
		claims.WithRecorder(app.Metrics),
		claims.WithLogger(logger),
	)
	app.Metrics.WatchPending(app.Scheduler.Pending)

	identity := cfg.Identity
	if identity.TokenSecret == "" {
		if !config.IsLocalhost(cfg.Server.Host) {
			_ = app.Close()
			return nil, errors.New("token secret is required outside localhost")
		}
		identity.TokenSecret = randomHex(32)
		logger.Warn("token_secret_generated", "detail", "bearer tokens will not survive a restart")
	}
	if app.Tokens, err = token.NewService(&identity, clk); err != nil {
		_ = app.Close()
		return nil, err
	}

	if app.Sessions, err = session.NewManager(&cfg.Session, secureCookies(cfg)); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

// Sweeper returns the periodic stuck-hold release loop.
func (a *App) Sweeper(logger *slog.Logger) *claims.Sweeper {
	return claims.NewSweeper(a.Coordinator, a.cfg.Claims.SweepInterval, logger)
}

// Close stops pending release timers, waits for in-flight notifications and
// closes the registry connection.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Gateway != nil {
		a.Gateway.Wait()
	}
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// buildRegistry returns the Redis registry when a URL is configured and
// the in-memory one otherwise. The close func is nil for the latter.
func buildRegistry(ctx context.Context, cfg *config.Config) (claims.Registry, func() error, error) {
	if cfg.Redis.URL == "" {
		return claims.NewMemoryRegistry(), nil, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	retention := 2*cfg.Claims.HoldDuration + cfg.Claims.SweepGrace
	slog.Info("claim_registry", "backend", "redis", "addr", opts.Addr, "prefix", cfg.Redis.KeyPrefix)
	return claims.NewRedisRegistry(client, cfg.Redis.KeyPrefix, retention), client.Close, nil
}

// buildSenders returns the notification channels. The in-app stream is
// always on; without SMS and email, messages are also written to the log.
func buildSenders(cfg *config.Config, hub *sse.Hub, logger *slog.Logger) ([]notify.Sender, error) {
	senders := []notify.Sender{sse.NewSender(hub)}

	if cfg.SMSEnabled() {
		s, err := sms.NewService(&cfg.SMS)
		if err != nil {
			return nil, fmt.Errorf("sms channel: %w", err)
		}
		senders = append(senders, s)
	}
	if cfg.SMTPEnabled() {
		s, err := email.NewService(&cfg.SMTP)
		if err != nil {
			return nil, fmt.Errorf("email channel: %w", err)
		}
		senders = append(senders, s)
	}
	if !cfg.SMSEnabled() && !cfg.SMTPEnabled() {
		senders = append(senders, notify.NewLogSender(logger))
	}

	for _, s := range senders {
		logger.Info("notify_channel", "channel", s.Name())
	}
	return senders, nil
}

func secureCookies(cfg *config.Config) bool {
	return strings.HasPrefix(cfg.Server.BaseURL, "https://")
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
