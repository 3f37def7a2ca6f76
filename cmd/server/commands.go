// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"codeberg.org/oliverandrich/foodmaps/internal/clock"
	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/database"
	"codeberg.org/oliverandrich/foodmaps/internal/i18n"
	"codeberg.org/oliverandrich/foodmaps/internal/models"
	"codeberg.org/oliverandrich/foodmaps/internal/repository"
	"codeberg.org/oliverandrich/foodmaps/internal/server"
	"codeberg.org/oliverandrich/foodmaps/internal/services/sms"
	"codeberg.org/oliverandrich/foodmaps/internal/services/token"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// openRepo opens and migrates the database named by --database-dsn.
func openRepo(cmd *cli.Command) (*sqlx.DB, *repository.Repository, error) {
	server.SetupLogger(cmd.String("log-level"), cmd.String("log-format"))
	db, err := database.Open(cmd.String("database-dsn"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, repository.New(db), nil
}

func runSweep(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	logger := server.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	if err := i18n.Init(); err != nil {
		return fmt.Errorf("failed to init i18n: %w", err)
	}

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	app, err := server.NewApp(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	released, err := app.Coordinator.Sweep(ctx)
	closeErr := app.Close()
	if err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "released %d holds\n", released)
	return closeErr
}

func migrateCommand() *cli.Command {
	action := func(fn func(*cli.Command, *sqlx.DB) error) cli.ActionFunc {
		return func(_ context.Context, cmd *cli.Command) error {
			server.SetupLogger(cmd.String("log-level"), cmd.String("log-format"))
			db, err := database.Connect(cmd.String("database-dsn"))
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, db)
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Flags:  config.DatabaseFlags(),
				Action: action(func(_ *cli.Command, db *sqlx.DB) error { return database.RunMigrations(db.DB) }),
			},
			{
				Name:   "down",
				Usage:  "Roll back the last migration",
				Flags:  config.DatabaseFlags(),
				Action: action(func(_ *cli.Command, db *sqlx.DB) error { return database.MigrateDown(db.DB) }),
			},
			{
				Name:   "reset",
				Usage:  "Roll back all migrations",
				Flags:  config.DatabaseFlags(),
				Action: action(func(_ *cli.Command, db *sqlx.DB) error { return database.MigrateReset(db.DB) }),
			},
			{
				Name:  "status",
				Usage: "Print the applied schema version",
				Flags: config.DatabaseFlags(),
				Action: action(func(cmd *cli.Command, db *sqlx.DB) error {
					version, err := database.MigrationVersion(db.DB)
					if err != nil {
						return err
					}
					fmt.Fprintf(out(cmd), "schema version %d\n", version)
					return nil
				}),
			},
		},
	}
}

func userCommand() *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user",
				Flags: append(config.DatabaseFlags(),
					&cli.StringFlag{Name: "email", Usage: "Email address", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Display name"},
					&cli.StringFlag{Name: "phone", Usage: "Phone number for confirmation codes"},
					&cli.StringFlag{Name: "locale", Value: "en", Usage: "Preferred language (en, es)"},
				),
				Action: addUser,
			},
		},
	}
}

func addUser(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	user := &models.User{
		Email:  strings.TrimSpace(cmd.String("email")),
		Name:   cmd.String("name"),
		Locale: cmd.String("locale"),
	}
	if phone := cmd.String("phone"); phone != "" {
		user.Phone = sms.Normalize(phone)
		if !sms.Valid(user.Phone) {
			return fmt.Errorf("invalid phone number %q", phone)
		}
	}
	if user.Name == "" {
		user.Name, _, _ = strings.Cut(user.Email, "@")
	}

	if _, err := repo.GetUserByEmail(ctx, user.Email); err == nil {
		return fmt.Errorf("user %s already exists", user.Email)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "created user %d (%s)\n", user.ID, user.Email)
	return nil
}

func listingCommand() *cli.Command {
	return &cli.Command{
		Name:  "listing",
		Usage: "Manage listings",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an available listing",
				Flags: append(config.DatabaseFlags(),
					&cli.IntFlag{Name: "donor", Usage: "Donor user id", Required: true},
					&cli.StringFlag{Name: "title", Usage: "Listing title", Required: true},
					&cli.StringFlag{Name: "address", Usage: "Pickup address", Required: true},
					&cli.StringFlag{Name: "description", Usage: "Free text description"},
				),
				Action: addListing,
			},
		},
	}
}

func addListing(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	donorID := int64(cmd.Int("donor"))
	if _, err := repo.GetUserByID(ctx, donorID); err != nil {
		return fmt.Errorf("donor %d: %w", donorID, err)
	}

	listing := &models.Listing{
		DonorID:     donorID,
		Title:       cmd.String("title"),
		Address:     cmd.String("address"),
		Description: cmd.String("description"),
	}
	if err := repo.CreateListing(ctx, listing); err != nil {
		return err
	}
	fmt.Fprintf(out(cmd), "created listing %d (%s)\n", listing.ID, listing.Title)
	return nil
}

func tokenCommand() *cli.Command {
	flags := append(config.DatabaseFlags(), config.IdentityFlags()...)
	flags = append(flags, &cli.IntFlag{Name: "user", Usage: "User id the token is issued for", Required: true})

	return &cli.Command{
		Name:  "token",
		Usage: "Manage bearer tokens",
		Commands: []*cli.Command{
			{
				Name:   "issue",
				Usage:  "Print a bearer token for a user",
				Flags:  flags,
				Action: issueToken,
			},
		},
	}
}

func issueToken(ctx context.Context, cmd *cli.Command) error {
	tokens, err := token.NewService(&config.IdentityConfig{
		TokenSecret: cmd.String("token-secret"),
		TokenIssuer: cmd.String("token-issuer"),
		TokenTTL:    cmd.Duration("token-ttl"),
	}, clock.NewSystem())
	if err != nil {
		return err
	}

	db, repo, err := openRepo(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	userID := int64(cmd.Int("user"))
	if _, err := repo.GetUserByID(ctx, userID); err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}

	raw, expires, err := tokens.Issue(userID)
	if err != nil {
		return err
	}
	fmt.Fprintln(out(cmd), raw)
	fmt.Fprintf(out(cmd), "expires %s\n", expires.UTC().Format(time.RFC3339))
	return nil
}
