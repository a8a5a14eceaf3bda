package models

import (
	"time"
)

// SyncCursor is the per (account, folder) UID high-water mark. LastUID is
// only meaningful under the UidValidity it was recorded with; 0 means unknown.
type SyncCursor struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	AccountID   string    `gorm:"column:account_id;type:varchar(50);uniqueIndex:uq_sync_cursor_account_folder;not null"`
	FolderName  string    `gorm:"column:folder_name;type:varchar(255);uniqueIndex:uq_sync_cursor_account_folder;not null"`
	LastUID     uint32    `gorm:"column:last_uid;not null"`
	UidValidity uint32    `gorm:"column:uid_validity;not null;default:0"`
	LastSync    time.Time `gorm:"column:last_sync;type:timestamp;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (SyncCursor) TableName() string {
	return "sync_cursors"
}
