package notifier

import (
	"context"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
)

const EventSinkName = "event-bus"

// eventSink publishes notifications on the shared notifications exchange.
type eventSink struct {
	publisher interfaces.EventPublisher
}

func NewEventSink(publisher interfaces.EventPublisher) interfaces.NotificationSink {
	if publisher == nil {
		return nil
	}
	return &eventSink{publisher: publisher}
}

func (s *eventSink) Name() string {
	return EventSinkName
}

func (s *eventSink) Send(ctx context.Context, event dto.NotificationEvent) error {
	return s.publisher.PublishNotificationEvent(ctx, event.Message.Id, event)
}
