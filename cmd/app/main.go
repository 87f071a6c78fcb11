// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"log"
	"os"

	"codeberg.org/oliverandrich/certissuer/internal/config"
	"codeberg.org/oliverandrich/certissuer/internal/server"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "app",
		Usage:  "Issue and verify certificates for approved organizations",
		Flags:  config.Flags(),
		Action: server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP API (default)",
				Action: server.Run,
			},
			{
				Name:  "approve",
				Usage: "Approve an issuer account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address of the account to approve",
						Required: true,
					},
				},
				Action: approve,
			},
			{
				Name:  "accounts",
				Usage: "List issuer accounts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pending",
						Usage: "Only list accounts awaiting approval",
					},
				},
				Action: listAccounts,
			},
			{
				Name:  "migrate",
				Usage: "Apply database migrations and exit",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "down",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: migrate,
			},
		},
	}
}
