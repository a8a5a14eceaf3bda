package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/models"
)

type Repositories struct {
	AccountRepository    interfaces.AccountRepository
	MessageRepository    interfaces.MessageRepository
	SyncCursorRepository interfaces.SyncCursorRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		AccountRepository:    NewAccountRepository(db),
		MessageRepository:    NewMessageRepository(db),
		SyncCursorRepository: NewSyncCursorRepository(db),
	}
}

// MigrateDB runs AutoMigrate on a small pool, then restores the configured pool size.
func MigrateDB(dbConfig *config.DatabaseConfig, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	sqlDB.SetMaxOpenConns(5)

	err = db.AutoMigrate(
		&models.Account{},
		&models.Message{},
		&models.SyncCursor{},
	)

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConn)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConn)
	sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}
