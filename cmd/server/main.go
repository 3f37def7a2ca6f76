// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/oliverandrich/foodmaps/internal/config"
	"codeberg.org/oliverandrich/foodmaps/internal/server"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:           "foodmaps",
		Usage:          "Food donation listings with confirmed pickup claims",
		Version:        fmt.Sprintf("%s (built %s)", Version, BuildTime),
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the release sweep",
				Flags:  config.Flags(),
				Action: server.Run,
			},
			{
				Name:   "sweep",
				Usage:  "Release expired and orphaned holds once and exit",
				Flags:  config.Flags(),
				Action: runSweep,
			},
			migrateCommand(),
			userCommand(),
			listingCommand(),
			tokenCommand(),
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
