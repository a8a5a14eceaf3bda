package events

import (
	"fmt"

	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
)

type EventsService struct {
	Publisher  interfaces.EventPublisher
	Subscriber *RabbitMQSubscriber
}

// NewEventsService connects to the bus. An empty url yields a no-op publisher and no subscriber.
func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL not set, event bus disabled")
		return &EventsService{Publisher: NewNoopPublisher(log)}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	subscriber, err := NewRabbitMQSubscriber(rabbitmqURL, log, nil)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	return &EventsService{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Listen registers listeners and starts consuming their queues.
func (s *EventsService) Listen(listeners ...interfaces.EventListener) error {
	if s.Subscriber == nil {
		return nil
	}
	queues := make(map[string]bool)
	for _, l := range listeners {
		s.Subscriber.RegisterListener(l)
		queues[l.GetQueueName()] = true
	}
	for q := range queues {
		if err := s.Subscriber.ListenQueue(q); err != nil {
			return err
		}
	}
	return nil
}

// CloseSubscriber stops consuming. Publishing keeps working until Close.
func (s *EventsService) CloseSubscriber() error {
	if s.Subscriber == nil {
		return nil
	}
	return s.Subscriber.Close()
}

func (s *EventsService) Close() error {
	var errs []error

	if s.Subscriber != nil {
		if err := s.Subscriber.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing events service: %v", errs)
	}

	return nil
}
