package interfaces

import (
	"context"
	"time"

	"github.com/customeros/inboxsync/internal/models"
)

// MailTransport opens mailbox connections.
type MailTransport interface {
	Connect(ctx context.Context, account *models.Account) (MailConnection, error)
}

// MailConnection is owned by exactly one worker and is not safe for concurrent use.
type MailConnection interface {
	SelectFolder(ctx context.Context, name string) (*FolderHandle, error)
	ListNew(ctx context.Context, folder *FolderHandle, cursor uint32) ([]MessageRef, error)
	FetchRaw(ctx context.Context, ref MessageRef) ([]byte, error)
	// Watch blocks until new mail is signalled (nil), the connection drops
	// (ErrConnectionLost) or ctx is done (ctx.Err()).
	Watch(ctx context.Context, folder *FolderHandle) error
	Close() error
}

type FolderHandle struct {
	Name        string
	Messages    uint32
	UidNext     uint32
	UidValidity uint32
}

type MessageRef struct {
	Folder string
	UID    uint32
}

type AccountStatus struct {
	AccountID   string
	Email       string
	State       string
	Health      string
	LastError   string
	Folders     map[string]FolderStats
	LastChecked time.Time
}

type FolderStats struct {
	Cursor   uint32
	LastSync time.Time
}
