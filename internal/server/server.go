// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the claim service and runs its HTTP API.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/database"
	"codeberg.org/oliverandrich/foodmaps/internal/handlers"
	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"codeberg.org/oliverandrich/foodmaps/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run starts the API and the release sweep and blocks until SIGINT,
// SIGTERM or cancellation of ctx.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	logger := SetupLogger(cfg.Log.Level, cfg.Log.Format)

	logger.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	app, err := NewApp(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			logger.Error("failed to close app", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, NewEcho(cfg, app, logger), app, logger)
}

// NewEcho builds the HTTP surface: middleware, API routes and /metrics.
func NewEcho(cfg *config.Config, app *App, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, app.Metrics, logger)

	h := handlers.New(app.Repo, app.Coordinator, app.Sessions, app.Hub)
	h.Register(e, middleware.Identity(app.Tokens, app.Sessions, app.Repo))
	e.GET("/metrics", echo.WrapHandler(app.Metrics.Handler()))

	return e
}

// serve runs the listeners for the resolved TLS mode next to the sweeper
// and shuts everything down when ctx ends or one of them fails.
func serve(ctx context.Context, cfg *config.Config, e *echo.Echo, app *App, logger *slog.Logger) error {
	setup, err := setupTLS(cfg, isPortAvailable)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	var redirect *http.Server
	if setup.mode == TLSModeACME {
		addr = ":443"
		redirect = &http.Server{
			Addr:              ":80",
			Handler:           setup.challenge,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server running", "url", cfg.Server.BaseURL, "tls", setup.mode)
		var serveErr error
		if setup.config == nil {
			serveErr = e.Start(addr)
		} else {
			serveErr = startTLSServer(e, addr, setup.config)
		}
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	})

	if redirect != nil {
		g.Go(func() error {
			logger.Info("acme challenge listener", "addr", redirect.Addr)
			if err := redirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		return app.Sweeper(logger).Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs []error
		errs = append(errs, e.Shutdown(shutdownCtx))
		if redirect != nil {
			errs = append(errs, redirect.Shutdown(shutdownCtx))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// startTLSServer serves e on addr with a prepared TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
