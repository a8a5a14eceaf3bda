package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm/logger"
)

func validConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Host:     "localhost",
		Port:     "5432",
		User:     "inbox",
		DBName:   "inbox",
		Password: "pw",
		SSLMode:  "disable",
	}
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, validateConfig(validConfig()))
	assert.Error(t, validateConfig(nil))

	cfg := validConfig()
	cfg.Password = ""
	assert.EqualError(t, validateConfig(cfg), "database password config is empty")
}

func TestNewConnection_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "abc"

	_, err := NewConnection(cfg)
	assert.ErrorContains(t, err, "invalid port number")
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"host=localhost port=5432 user=inbox password=pw dbname=inbox sslmode=disable",
		dsn(validConfig(), 5432))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Warn, gormLogLevel("WARN"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Warn, gormLogLevel(""))
}
