package models

import (
	"time"

	"github.com/customeros/inboxsync/internal/enum"
)

// Message is one ingested email as stored in the index.
type Message struct {
	ID         string        `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	Account    string        `gorm:"column:account;type:varchar(255);index:idx_messages_account_received,priority:1;not null" json:"account"`
	Folder     string        `gorm:"column:folder;type:varchar(255);index;not null" json:"folder"`
	ServerSeq  uint32        `gorm:"column:server_seq;not null" json:"serverSeq"`
	Subject    string        `gorm:"column:subject;type:text" json:"subject"`
	From       string        `gorm:"column:from_address;type:text" json:"from"`
	To         string        `gorm:"column:to_address;type:text" json:"to"`
	Body       string        `gorm:"column:body;type:text" json:"body"`
	ReceivedAt time.Time     `gorm:"column:received_at;type:timestamp;index:idx_messages_account_received,priority:2;not null" json:"receivedAt"`
	Category   enum.Category `gorm:"column:category;type:varchar(30);index;not null;default:'uncategorized'" json:"category"`
	IsRead     bool          `gorm:"column:is_read;not null;default:false" json:"isRead"`

	ClassificationReason string `gorm:"column:classification_reason;type:varchar(255)" json:"classificationReason,omitempty"`
	// set once a notification for the category was claimed
	NotifiedCategory string `gorm:"column:notified_category;type:varchar(30)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}
