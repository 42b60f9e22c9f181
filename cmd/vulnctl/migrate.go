package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/kiranshivaraju/vulnhunter/internal/store"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			databaseFlag,
			&cli.StringFlag{
				Name:  "dir",
				Usage: "directory holding the migration files",
				Value: "migrations",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			if err := store.RunMigrations(cmd.String("database-url"), cmd.String("dir")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, "migrations applied")
			return nil
		},
	}
}
