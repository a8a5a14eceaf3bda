package events

import (
	"context"

	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
)

// NoopPublisher stands in when no RabbitMQ URL is configured.
type NoopPublisher struct {
	logger logger.Logger
}

func NewNoopPublisher(logger logger.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) PublishFanoutEvent(_ context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	p.logger.Debugf("event bus disabled, dropping %T for %s %s", message, entityType, entityId)
	return nil
}

func (p *NoopPublisher) PublishNotificationEvent(_ context.Context, entityId string, message interface{}) error {
	p.logger.Debugf("event bus disabled, dropping notification %T for %s", message, entityId)
	return nil
}

func (p *NoopPublisher) PublishSyncRequest(_ context.Context, accountId string) error {
	p.logger.Debugf("event bus disabled, dropping sync request for %s", accountId)
	return nil
}

func (p *NoopPublisher) Close() error {
	return nil
}
