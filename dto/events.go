package dto

import (
	"time"

	"github.com/customeros/inboxsync/internal/enum"
)

// MessageIndexed is published after every successful index write.
type MessageIndexed struct {
	MessageId  string        `json:"messageId"`
	AccountId  string        `json:"accountId"`
	Account    string        `json:"account"`
	Folder     string        `json:"folder"`
	ServerSeq  uint32        `json:"serverSeq"`
	Category   enum.Category `json:"category"`
	ReceivedAt time.Time     `json:"receivedAt"`
}

// AccountDegraded is published once per failure streak that outlives the retry window.
type AccountDegraded struct {
	AccountId    string        `json:"accountId"`
	Email        string        `json:"email"`
	LastError    string        `json:"lastError"`
	FailingSince time.Time     `json:"failingSince"`
	Duration     time.Duration `json:"duration"`
}

// SyncRequested asks the orchestrator to rescan an account now.
type SyncRequested struct {
	AccountId string `json:"accountId"`
}

// NotificationMessage is the message projection carried by a notification.
type NotificationMessage struct {
	Id         string    `json:"id"`
	Account    string    `json:"account"`
	Folder     string    `json:"folder"`
	Subject    string    `json:"subject"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Preview    string    `json:"preview"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type NotificationEvent struct {
	Id              string              `json:"id"`
	Message         NotificationMessage `json:"message"`
	TriggerCategory enum.Category       `json:"triggerCategory"`
	Timestamp       time.Time           `json:"timestamp"`
}
