package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	cron_config "github.com/customeros/inboxsync/internal/cron/config"
	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

type Config struct {
	AppConfig      *config.AppConfig
	Logger         *logger.Config
	Tracing        *tracing.JaegerConfig
	DatabaseConfig *config.DatabaseConfig
	SyncConfig     *config.SyncConfig
	NotifierConfig *config.NotifierConfig
	StorageConfig  *config.StorageConfig
	CronConfig     *cron_config.Config
}

func newConfig() *Config {
	return &Config{
		AppConfig:      &config.AppConfig{},
		Logger:         &logger.Config{},
		Tracing:        &tracing.JaegerConfig{},
		DatabaseConfig: &config.DatabaseConfig{},
		SyncConfig:     &config.SyncConfig{},
		NotifierConfig: &config.NotifierConfig{},
		StorageConfig:  &config.StorageConfig{},
		CronConfig:     &cron_config.Config{},
	}
}

func InitConfig() (*Config, error) {
	cfg := newConfig()

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(cfg)
	if err != nil {
		log.Fatalf("Error loading inboxsync config: %v", err)
	}

	return cfg, nil
}
