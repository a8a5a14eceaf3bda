package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/utils"
)

const DefaultImapPort = 993

var DefaultFolders = []string{"INBOX"}

type Account struct {
	ID       string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Email    string             `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string             `gorm:"column:password;type:text;not null" json:"-"`
	Host     string             `gorm:"column:host;type:varchar(255)" json:"host"`
	Port     int                `gorm:"column:port;not null;default:993" json:"port"`
	Security enum.EmailSecurity `gorm:"column:security;type:varchar(20);not null;default:'tls'" json:"security"`
	Provider enum.EmailProvider `gorm:"column:provider;type:varchar(50);not null;default:'generic'" json:"provider"`
	Folders  pq.StringArray     `gorm:"column:folders;type:text[];not null" json:"folders"`
	// Status Information
	ConnectionStatus enum.SyncState     `gorm:"column:connection_status;type:varchar(30)" json:"connectionStatus"`
	Health           enum.AccountHealth `gorm:"column:health;type:varchar(20);not null;default:'ok'" json:"health"`
	LastError        string             `gorm:"column:last_error;type:text" json:"lastError"`
	LastSyncedAt     *time.Time         `gorm:"column:last_synced_at;type:timestamp" json:"lastSyncedAt"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateEventID("acc")
	}
	a.ApplyDefaults()
	return nil
}

// ApplyDefaults fills host, port, security and folders the way the provider expects.
func (a *Account) ApplyDefaults() {
	if a.Provider == "" {
		a.Provider = enum.EmailProviderGeneric
	}
	if a.Host == "" {
		a.Host = a.Provider.DefaultImapHost()
	}
	if a.Port == 0 {
		a.Port = DefaultImapPort
	}
	if a.Security == "" {
		a.Security = enum.EmailSecurityTLS
	}
	if len(a.Folders) == 0 {
		a.Folders = append(pq.StringArray{}, DefaultFolders...)
	}
}

// PrimaryFolder is the folder watched for new mail.
func (a *Account) PrimaryFolder() string {
	if len(a.Folders) == 0 {
		return DefaultFolders[0]
	}
	return a.Folders[0]
}
