package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

type syncCursorRepository struct {
	db *gorm.DB
}

func NewSyncCursorRepository(db *gorm.DB) interfaces.SyncCursorRepository {
	return &syncCursorRepository{db: db}
}

// GetCursor returns a zero cursor when the folder was never synced.
func (r *syncCursorRepository) GetCursor(ctx context.Context, accountID, folderName string) (*models.SyncCursor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.GetCursor")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagFolder(span, folderName)

	var cursor models.SyncCursor
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND folder_name = ?", accountID, folderName).
		First(&cursor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.SyncCursor{AccountID: accountID, FolderName: folderName}, nil
		}
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get sync cursor: %w", err)
	}

	return &cursor, nil
}

// AdvanceCursor moves the high-water mark forward. A lower uid never rolls it back.
func (r *syncCursorRepository) AdvanceCursor(ctx context.Context, accountID, folderName string, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.AdvanceCursor")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagFolder(span, folderName)
	span.LogKV("uid", uid)

	now := utils.Now()
	cursor := models.SyncCursor{
		AccountID:  accountID,
		FolderName: folderName,
		LastUID:    uid,
		LastSync:   now,
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "account_id"}, {Name: "folder_name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"last_uid":   gorm.Expr("GREATEST(sync_cursors.last_uid, EXCLUDED.last_uid)"),
				"last_sync":  now,
				"updated_at": now,
			}),
		}).
		Create(&cursor).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to advance sync cursor: %w", err)
	}

	return nil
}

func (r *syncCursorRepository) SetUidValidity(ctx context.Context, accountID, folderName string, uidValidity uint32, resetUID bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.SetUidValidity")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagFolder(span, folderName)
	span.LogKV("uidValidity", uidValidity, "resetUID", resetUID)

	now := utils.Now()
	cursor := models.SyncCursor{
		AccountID:   accountID,
		FolderName:  folderName,
		UidValidity: uidValidity,
		LastSync:    now,
	}
	updates := map[string]interface{}{
		"uid_validity": uidValidity,
		"updated_at":   now,
	}
	if resetUID {
		updates["last_uid"] = 0
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account_id"}, {Name: "folder_name"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(&cursor).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to set uid validity: %w", err)
	}

	return nil
}

func (r *syncCursorRepository) GetAccountCursors(ctx context.Context, accountID string) (map[string]*models.SyncCursor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.GetAccountCursors")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var cursors []*models.SyncCursor
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Find(&cursors).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to get account sync cursors: %w", err)
	}

	result := make(map[string]*models.SyncCursor, len(cursors))
	for _, c := range cursors {
		result[c.FolderName] = c
	}

	return result, nil
}

func (r *syncCursorRepository) DeleteAccountCursors(ctx context.Context, accountID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "syncCursorRepository.DeleteAccountCursors")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&models.SyncCursor{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete account sync cursors: %w", result.Error)
	}

	return nil
}
