package main

import (
	"context"
	"fmt"
	"log"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/internal"
	"github.com/customeros/inboxsync/internal/database"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/server"
	"github.com/customeros/inboxsync/services/events"
	"github.com/customeros/inboxsync/services/storage"
)

type deps struct {
	cfg *config.Config
	db  *gorm.DB
	log logger.Logger
}

func setup() (*deps, error) {
	cfg, err := config.InitConfig()
	if err != nil {
		return nil, errors.Wrap(err, "config initialization failed")
	}
	if cfg == nil {
		return nil, errors.New("config is empty")
	}

	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	return &deps{
		cfg: cfg,
		db:  database.InitDatabase(cfg.DatabaseConfig),
		log: appLogger,
	}, nil
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Action: func(c *cli.Context) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			if err := repository.MigrateDB(rt.cfg.DatabaseConfig, rt.db); err != nil {
				return errors.Wrap(err, "database migration failed")
			}
			log.Println("Database migration completed successfully")
			return nil
		},
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Start the sync workers and the HTTP API",
		Action: func(c *cli.Context) error {
			rt, err := setup()
			if err != nil {
				return err
			}
			log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
			log.Println("InboxSync starting up...")

			srv, err := server.NewServer(rt.cfg, rt.db)
			if err != nil {
				return errors.Wrap(err, "server setup failed")
			}
			if err := srv.Run(); err != nil {
				return errors.Wrap(err, "server startup failed")
			}
			log.Println("Shutdown complete")
			return nil
		},
	}
}

func accountsCommand() *cli.Command {
	accountFlag := &cli.StringFlag{
		Name:     "account",
		Aliases:  []string{"a"},
		Usage:    "account id or email",
		Required: true,
	}

	return &cli.Command{
		Name:  "accounts",
		Usage: "Manage mailbox accounts",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Upsert accounts from a JSON file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "path to the accounts file",
						EnvVars: []string{"ACCOUNTS_FILE"},
					},
				},
				Action: func(c *cli.Context) error {
					path := c.String("file")
					if path == "" {
						return errors.New("no accounts file given, use --file or ACCOUNTS_FILE")
					}
					rt, err := setup()
					if err != nil {
						return err
					}
					repos := repository.InitRepositories(rt.db)
					n, err := internal.ImportAccounts(c.Context, path, repos.AccountRepository, rt.log)
					if err != nil {
						return err
					}
					fmt.Printf("Imported %d accounts\n", n)
					return nil
				},
			},
			{
				Name:  "sync",
				Usage: "Ask the running server to rescan an account now",
				Flags: []cli.Flag{accountFlag},
				Action: func(c *cli.Context) error {
					rt, err := setup()
					if err != nil {
						return err
					}
					if rt.cfg.AppConfig.RabbitMQURL == "" {
						return errors.New("RABBITMQ_URL is required to reach the server")
					}
					account, err := findAccount(c.Context, repository.InitRepositories(rt.db), c.String("account"))
					if err != nil {
						return err
					}

					eventsService, err := events.NewEventsService(rt.cfg.AppConfig.RabbitMQURL, rt.log, events.DefaultPublisherConfig())
					if err != nil {
						return err
					}
					defer eventsService.Close()
					if err := eventsService.Publisher.PublishSyncRequest(c.Context, account.ID); err != nil {
						return errors.Wrap(err, "publish sync request")
					}
					fmt.Printf("Sync requested for %s\n", account.Email)
					return nil
				},
			},
			{
				Name:  "remove",
				Usage: "Delete an account with its cursors and archived raw messages",
				Flags: []cli.Flag{accountFlag},
				Action: func(c *cli.Context) error {
					rt, err := setup()
					if err != nil {
						return err
					}
					repos := repository.InitRepositories(rt.db)
					account, err := findAccount(c.Context, repos, c.String("account"))
					if err != nil {
						return err
					}

					if err := repos.SyncCursorRepository.DeleteAccountCursors(c.Context, account.ID); err != nil {
						return err
					}
					if err := repos.AccountRepository.DeleteAccount(c.Context, account.ID); err != nil {
						return err
					}

					rawStorage, err := storage.NewRawStorage(rt.cfg.StorageConfig)
					if err != nil {
						return err
					}
					if rawStorage != nil {
						n, err := rawStorage.DeletePrefix(c.Context, storage.AccountPrefix(account.Email))
						if err != nil {
							return errors.Wrap(err, "purge raw archive")
						}
						fmt.Printf("Deleted %d archived messages\n", n)
					}
					fmt.Printf("Removed account %s\n", account.Email)
					return nil
				},
			},
		},
	}
}

func findAccount(ctx context.Context, repos *repository.Repositories, key string) (*models.Account, error) {
	account, err := repos.AccountRepository.GetAccount(ctx, key)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}
	return repos.AccountRepository.GetAccountByEmail(ctx, key)
}
