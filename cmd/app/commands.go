// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"codeberg.org/oliverandrich/certissuer/internal/config"
	"codeberg.org/oliverandrich/certissuer/internal/database"
	"codeberg.org/oliverandrich/certissuer/internal/models"
	"codeberg.org/oliverandrich/certissuer/internal/server"
	"codeberg.org/oliverandrich/certissuer/internal/services/email"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// withApp opens the database, wires the services and runs fn.
func withApp(cmd *cli.Command, fn func(*server.App) error) error {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeDB(db)

	// Administrative commands never send codes.
	app := server.NewApp(db, cfg, email.NewLogSender(nil))
	defer app.Accounts.Wait()

	return fn(app)
}

func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}

func approve(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *server.App) error {
		address := cmd.String("email")
		if err := app.Accounts.Approve(ctx, address); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.Root().Writer, "approved %s\n", address)
		return err
	})
}

func listAccounts(ctx context.Context, cmd *cli.Command) error {
	return withApp(cmd, func(app *server.App) error {
		accounts, err := app.Accounts.List(ctx, cmd.Bool("pending"))
		if err != nil {
			return err
		}
		return writeAccounts(cmd.Root().Writer, accounts)
	})
}

func writeAccounts(w io.Writer, accounts []models.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "EMAIL\tNAME\tORGANIZATION\tAPPROVED\tCREATED")
	for _, a := range accounts {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n",
			a.Email, a.Name, a.Organization, a.Approved, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// migrate relies on database.Open applying pending migrations.
func migrate(_ context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer closeDB(db)

	driver := database.DriverFor(cfg.Database.DSN)
	if cmd.Bool("down") {
		if err := database.MigrateDown(db.DB, driver); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	}

	version, err := database.MigrationVersion(db.DB, driver)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "schema version %d\n", version)
	return err
}
