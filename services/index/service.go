package index

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
)

type indexService struct {
	log        logger.Logger
	repository interfaces.MessageRepository
}

func NewIndexService(log logger.Logger, messageRepository interfaces.MessageRepository) interfaces.IndexStore {
	return &indexService{log: log, repository: messageRepository}
}

// Upsert writes the message keyed by its id. Writing the same id twice leaves one document.
func (s *indexService) Upsert(ctx context.Context, message *models.Message) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexService.Upsert")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if message == nil {
		err := mailerrors.NewIndexError("upsert", "", mailerrors.ErrInvalidInput)
		tracing.TraceErr(span, err)
		return err
	}
	tracing.TagEntity(span, message.ID)

	if !message.Category.IsValid() {
		message.Category = enum.CategoryUncategorized
	}

	if err := s.repository.Upsert(ctx, message); err != nil {
		err = mailerrors.NewIndexError("upsert", message.ID, err)
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// Search never fails: a backend error is logged and yields no results.
func (s *indexService) Search(ctx context.Context, query string, filters dto.SearchFilters) []*models.Message {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexService.Search")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	if filters.Category != "" && !filters.Category.IsValid() {
		return []*models.Message{}
	}

	messages, err := s.repository.Search(ctx, query, filters)
	if err != nil {
		err = mailerrors.NewIndexError("search", "", err)
		tracing.TraceErr(span, err)
		s.log.Errorf("Search failed, returning empty result: %v", err)
		return []*models.Message{}
	}
	if messages == nil {
		return []*models.Message{}
	}
	return messages
}

func (s *indexService) Get(ctx context.Context, id string) (*models.Message, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexService.Get")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, id)

	message, err := s.repository.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil, mailerrors.ErrMessageNotFound
		}
		err = mailerrors.NewIndexError("get", id, err)
		tracing.TraceErr(span, err)
		return nil, err
	}
	return message, nil
}

func (s *indexService) ClaimNotification(ctx context.Context, id string, category enum.Category) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IndexService.ClaimNotification")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, id)

	claimed, err := s.repository.ClaimNotification(ctx, id, category)
	if err != nil {
		err = mailerrors.NewIndexError("claim", id, err)
		tracing.TraceErr(span, err)
		return false, err
	}
	return claimed, nil
}
