package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
)

// columns a re-fetch may overwrite; is_read and notified_category belong to users and the notifier
var messageUpsertColumns = []string{
	"account", "folder", "server_seq", "subject", "from_address", "to_address",
	"body", "received_at", "category", "classification_reason", "updated_at",
}

const relevanceOrder = `(CASE WHEN subject ILIKE ? THEN 4 ELSE 0 END +
 CASE WHEN from_address ILIKE ? THEN 2 ELSE 0 END +
 CASE WHEN to_address ILIKE ? THEN 1 ELSE 0 END +
 CASE WHEN body ILIKE ? THEN 1 ELSE 0 END) DESC, received_at DESC`

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) interfaces.MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Upsert(ctx context.Context, message *models.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Upsert")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil || message.ID == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}
	tracing.TagEntity(span, message.ID)

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(messageUpsertColumns),
		}).
		Create(message).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var message models.Message
	err := r.db.WithContext(ctx).First(&message, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

// Search filters on exact account/category/folder and ranks text matches by
// field weight, newest first within equal scores.
func (r *messageRepository) Search(ctx context.Context, query string, filters dto.SearchFilters) ([]*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.Search")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	span.LogKV("query", query)
	tracing.LogObjectAsJson(span, "filters", filters)

	tx := r.db.WithContext(ctx).Model(&models.Message{})
	if filters.Account != "" {
		tx = tx.Where("account = ?", filters.Account)
	}
	if filters.Category != "" {
		tx = tx.Where("category = ?", filters.Category)
	}
	if filters.Folder != "" {
		tx = tx.Where("folder = ?", filters.Folder)
	}

	query = strings.TrimSpace(query)
	if query != "" {
		p := "%" + escapeLike(query) + "%"
		tx = tx.Where("(subject ILIKE ? OR from_address ILIKE ? OR to_address ILIKE ? OR body ILIKE ?)", p, p, p, p).
			Clauses(clause.OrderBy{Expression: clause.Expr{SQL: relevanceOrder, Vars: []interface{}{p, p, p, p}, WithoutParentheses: true}})
	} else {
		tx = tx.Order("received_at DESC")
	}

	var messages []*models.Message
	if err := tx.Limit(filters.EffectiveLimit()).Find(&messages).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	span.LogKV("result.count", len(messages))
	return messages, nil
}

// ClaimNotification sets notified_category only if no notification was claimed
// before. Exactly one concurrent caller gets true.
func (r *messageRepository) ClaimNotification(ctx context.Context, id string, category enum.Category) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "messageRepository.ClaimNotification")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND (notified_category IS NULL OR notified_category = '')", id).
		Update("notified_category", category.String())
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to claim notification: %w", result.Error)
	}
	claimed := result.RowsAffected == 1
	span.LogKV("result.claimed", claimed)
	return claimed, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
