package interfaces

import (
	"context"

	"github.com/customeros/inboxsync/internal/enum"
)

type EventPublisher interface {
	PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error
	PublishNotificationEvent(ctx context.Context, entityId string, message interface{}) error
	PublishSyncRequest(ctx context.Context, accountId string) error
	Close() error
}

type EventListener interface {
	Handle(ctx context.Context, event any) error
	GetEventType() string
	GetQueueName() string
}

type EventSubscriber interface {
	RegisterListener(listener EventListener)
	ListenQueue(queueName string) error
	Close() error
}
