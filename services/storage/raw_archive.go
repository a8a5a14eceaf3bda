package storage

import (
	"context"
	"fmt"
	"net/url"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/config"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/storage/aws_client"
)

const RawEmailContentType = "message/rfc822"

type rawArchive struct {
	storage *ObjectStorageService
	log     logger.Logger
}

// NewRawArchive keeps a copy of every fetched RFC 822 source in R2. It returns nil when disabled.
func NewRawArchive(cfg *config.StorageConfig, log logger.Logger) (interfaces.RawArchive, error) {
	storage, err := NewRawStorage(cfg)
	if err != nil || storage == nil {
		return nil, err
	}
	return NewRawArchiveWithStorage(storage, log), nil
}

// NewRawStorage returns the R2 bucket holding raw messages, or nil when archiving is disabled.
func NewRawStorage(cfg *config.StorageConfig) (*ObjectStorageService, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	client, err := aws_client.NewR2Client(aws_client.R2Config{
		AccountID:       cfg.AccountID,
		AccessKeyID:     cfg.AccessKeyID,
		AccessKeySecret: cfg.AccessKeySecret,
	})
	if err != nil {
		return nil, err
	}
	return NewStorageService(client, cfg.RawEmailBucket), nil
}

func NewRawArchiveWithStorage(storage *ObjectStorageService, log logger.Logger) interfaces.RawArchive {
	return &rawArchive{storage: storage, log: log}
}

// RawEmailKey is raw/{account}/{folder}/{uid}.eml with path segments escaped.
func RawEmailKey(account, folder string, uid uint32) string {
	return fmt.Sprintf("raw/%s/%s/%d.eml", url.PathEscape(account), url.PathEscape(folder), uid)
}

// AccountPrefix is the key prefix holding every archived message of account.
func AccountPrefix(account string) string {
	return "raw/" + url.PathEscape(account) + "/"
}

func (a *rawArchive) Store(ctx context.Context, message *models.Message, raw []byte) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "RawArchive.Store")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	key := RawEmailKey(message.Account, message.Folder, message.ServerSeq)
	if err := a.storage.Upload(ctx, key, raw, RawEmailContentType); err != nil {
		tracing.TraceErr(span, err)
		a.log.Warnf("[%s][%s] raw archive upload failed for uid %d: %v", message.Account, message.Folder, message.ServerSeq, err)
		return err
	}
	return nil
}
