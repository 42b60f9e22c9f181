// Command vulnctl administers a VulnHunter deployment: it issues and revokes
// API keys and applies database migrations.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

var databaseFlag = &cli.StringFlag{
	Name:     "database-url",
	Usage:    "PostgreSQL connection string",
	Sources:  cli.EnvVars("DATABASE_URL"),
	Required: true,
}

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:  "vulnctl",
		Usage: "Manage VulnHunter API keys and database schema",
		Commands: []*cli.Command{
			keysCommand(),
			migrateCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
