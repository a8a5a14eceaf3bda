package config

import "time"

type AppConfig struct {
	APIPort      string `env:"PORT" envDefault:"12222"`
	APIKey       string `env:"API_KEY,required"`
	RabbitMQURL  string `env:"RABBITMQ_URL"`
	AccountsFile string `env:"ACCOUNTS_FILE"`
}

type DatabaseConfig struct {
	Host            string `env:"POSTGRES_HOST,required"`
	Port            string `env:"POSTGRES_PORT" envDefault:"5432"`
	User            string `env:"POSTGRES_USER,required"`
	DBName          string `env:"POSTGRES_DB_NAME,required"`
	Password        string `env:"POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"POSTGRES_DB_MAX_CONN" envDefault:"25"`
	MaxIdleConn     int    `env:"POSTGRES_DB_MAX_IDLE_CONN" envDefault:"10"`
	ConnMaxLifetime int    `env:"POSTGRES_DB_CONN_MAX_LIFETIME" envDefault:"60"`
	LogLevel        string `env:"POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"POSTGRES_SSL_MODE" envDefault:"require"`
}

type SyncConfig struct {
	ConnectTimeout     time.Duration `env:"IMAP_CONNECT_TIMEOUT" envDefault:"30s"`
	BackoffBase        time.Duration `env:"SYNC_BACKOFF_BASE" envDefault:"1s"`
	BackoffCap         time.Duration `env:"SYNC_BACKOFF_CAP" envDefault:"60s"`
	MaxRetryDuration   time.Duration `env:"SYNC_MAX_RETRY_DURATION" envDefault:"30m"`
	ShutdownGrace      time.Duration `env:"SYNC_SHUTDOWN_GRACE" envDefault:"5s"`
	IndexMaxAttempts   int           `env:"SYNC_INDEX_MAX_ATTEMPTS" envDefault:"5"`
	StableSession      time.Duration `env:"SYNC_STABLE_SESSION" envDefault:"1m"`
	IdlePollInterval   time.Duration `env:"IMAP_IDLE_POLL_INTERVAL" envDefault:"1m"`
	IdleRefreshTimeout time.Duration `env:"IMAP_IDLE_REFRESH" envDefault:"25m"`
}

type NotifierConfig struct {
	SlackWebhookURL string        `env:"SLACK_WEBHOOK_URL"`
	WebhookURL      string        `env:"WEBHOOK_URL"`
	Timeout         time.Duration `env:"NOTIFIER_TIMEOUT" envDefault:"10s"`
	PreviewLength   int           `env:"NOTIFIER_PREVIEW_LENGTH" envDefault:"200"`
	PublishEvents   bool          `env:"NOTIFIER_PUBLISH_EVENTS" envDefault:"true"`
}

type StorageConfig struct {
	Enabled         bool   `env:"RAW_ARCHIVE_ENABLED" envDefault:"false"`
	AccountID       string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID     string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	RawEmailBucket  string `env:"BUCKET_NAME_RAW_EMAIL" envDefault:"raw-emails"`
}
