package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

const (
	ChatSinkName    = "chat"
	WebhookSinkName = "webhook"

	InterestedEmailReceivedEvent = "interested_email_received"
)

type ChatPayload struct {
	Text        string `json:"text"`
	Subject     string `json:"subject"`
	From        string `json:"from"`
	BodyPreview string `json:"bodyPreview"`
}

type WebhookPayload struct {
	Email     dto.NotificationMessage `json:"email"`
	Event     string                  `json:"event"`
	Timestamp time.Time               `json:"timestamp"`
}

// httpSink posts one JSON document per event behind its own circuit breaker.
type httpSink struct {
	name    string
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	payload func(event dto.NotificationEvent) interface{}
}

func newBreaker(name string, log logger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	})
}

func NewChatSink(url string, client *http.Client, log logger.Logger) interfaces.NotificationSink {
	if url == "" {
		return nil
	}
	return &httpSink{
		name:    ChatSinkName,
		url:     url,
		client:  orDefaultClient(client),
		breaker: newBreaker("notifier-"+ChatSinkName, log),
		payload: func(event dto.NotificationEvent) interface{} {
			return ChatPayload{
				Text:        fmt.Sprintf("New interested email from %s: %s", event.Message.From, event.Message.Subject),
				Subject:     event.Message.Subject,
				From:        event.Message.From,
				BodyPreview: event.Message.Preview,
			}
		},
	}
}

func NewWebhookSink(url string, client *http.Client, log logger.Logger) interfaces.NotificationSink {
	if url == "" {
		return nil
	}
	return &httpSink{
		name:    WebhookSinkName,
		url:     url,
		client:  orDefaultClient(client),
		breaker: newBreaker("notifier-"+WebhookSinkName, log),
		payload: func(event dto.NotificationEvent) interface{} {
			return WebhookPayload{
				Email:     event.Message,
				Event:     InterestedEmailReceivedEvent,
				Timestamp: event.Timestamp,
			}
		},
	}
}

func orDefaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultSinkTimeout}
}

func (s *httpSink) Name() string {
	return s.name
}

func (s *httpSink) Send(ctx context.Context, event dto.NotificationEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "HttpSink.Send")
	defer span.Finish()
	span.SetTag("sink", s.name)

	body, err := json.Marshal(s.payload(event))
	if err != nil {
		return errors.Wrap(err, "marshal payload")
	}

	_, err = s.breaker.Execute(func() (interface{}, error) {
		return nil, s.post(ctx, span, body)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (s *httpSink) post(ctx context.Context, span opentracing.Span, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.InjectSpanContextIntoHTTPRequest(req, span)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post")
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
