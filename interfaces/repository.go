package interfaces

import (
	"context"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
)

type AccountRepository interface {
	GetAccounts(ctx context.Context) ([]*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	UpdateStatus(ctx context.Context, id string, state enum.SyncState, health enum.AccountHealth, lastError string) error
	DeleteAccount(ctx context.Context, id string) error
}

type MessageRepository interface {
	Upsert(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	Search(ctx context.Context, query string, filters dto.SearchFilters) ([]*models.Message, error)
	ClaimNotification(ctx context.Context, id string, category enum.Category) (bool, error)
}

type SyncCursorRepository interface {
	GetCursor(ctx context.Context, accountID, folderName string) (*models.SyncCursor, error)
	AdvanceCursor(ctx context.Context, accountID, folderName string, uid uint32) error
	// SetUidValidity records the folder's UIDVALIDITY. With resetUID the
	// high-water mark goes back to 0, the only way a cursor ever moves down.
	SetUidValidity(ctx context.Context, accountID, folderName string, uidValidity uint32, resetUID bool) error
	GetAccountCursors(ctx context.Context, accountID string) (map[string]*models.SyncCursor, error)
	DeleteAccountCursors(ctx context.Context, accountID string) error
}
