package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "inboxsync",
		Usage: "near-real-time IMAP ingestion, classification and notification",
		Commands: []*cli.Command{
			migrateCommand(),
			serverCommand(),
			accountsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
