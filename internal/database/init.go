package database

import (
	"gorm.io/gorm"

	"github.com/customeros/inboxsync/internal/config"
)

func InitDatabase(dbConfig *config.DatabaseConfig) *gorm.DB {
	return MustConnect(&DatabaseConfig{
		Host:            dbConfig.Host,
		Port:            dbConfig.Port,
		User:            dbConfig.User,
		DBName:          dbConfig.DBName,
		Password:        dbConfig.Password,
		MaxConn:         dbConfig.MaxConn,
		MaxIdleConn:     dbConfig.MaxIdleConn,
		ConnMaxLifetime: dbConfig.ConnMaxLifetime,
		LogLevel:        dbConfig.LogLevel,
		SSLMode:         dbConfig.SSLMode,
	})
}
