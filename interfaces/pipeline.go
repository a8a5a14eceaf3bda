package interfaces

import (
	"context"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

type Decoder interface {
	Decode(raw []byte, account, folder string, serverSeq uint32) *models.Message
}

type Classifier interface {
	Classify(message *models.Message) enum.Category
}

// IndexStore is safe for concurrent use by all workers.
type IndexStore interface {
	Upsert(ctx context.Context, message *models.Message) error
	Search(ctx context.Context, query string, filters dto.SearchFilters) []*models.Message
	Get(ctx context.Context, id string) (*models.Message, error)
	ClaimNotification(ctx context.Context, id string, category enum.Category) (bool, error)
}

// Notifier must return without waiting on any sink.
type Notifier interface {
	Notify(ctx context.Context, message *models.Message)
	Close(ctx context.Context) error
}

type NotificationSink interface {
	Name() string
	Send(ctx context.Context, event dto.NotificationEvent) error
}

type RawArchive interface {
	Store(ctx context.Context, message *models.Message, raw []byte) error
}

type SyncOrchestrator interface {
	Start(ctx context.Context) error
	Stop() error
	AddAccount(ctx context.Context, account *models.Account) error
	RemoveAccount(ctx context.Context, accountID string) error
	TriggerImmediateSync(accountID string) bool
	Status() map[string]AccountStatus
}
