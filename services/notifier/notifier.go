package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	mailerrors "github.com/customeros/inboxsync/internal/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
	"github.com/customeros/inboxsync/services/decoder"
)

const (
	DefaultSinkTimeout = 10 * time.Second
	// category that triggers a dispatch
	TriggerCategory = enum.CategoryInterested
)

// Claimer grants the right to notify for a message exactly once.
type Claimer interface {
	ClaimNotification(ctx context.Context, id string, category enum.Category) (bool, error)
}

type Config struct {
	SinkTimeout   time.Duration
	PreviewLength int
	Clock         func() time.Time
}

type notifier struct {
	log     logger.Logger
	claimer Claimer
	sinks   []interfaces.NotificationSink
	config  Config

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

func NewNotifier(log logger.Logger, claimer Claimer, config Config, sinks ...interfaces.NotificationSink) interfaces.Notifier {
	if config.SinkTimeout <= 0 {
		config.SinkTimeout = DefaultSinkTimeout
	}
	if config.PreviewLength <= 0 {
		config.PreviewLength = decoder.DefaultPreviewLength
	}
	if config.Clock == nil {
		config.Clock = utils.Now
	}
	active := make([]interfaces.NotificationSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &notifier{log: log, claimer: claimer, sinks: active, config: config}
}

// Notify returns at once. Claiming and delivery happen in the background and
// their failures are only logged.
func (n *notifier) Notify(ctx context.Context, message *models.Message) {
	if message == nil || message.Category != TriggerCategory || len(n.sinks) == 0 {
		return
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		n.log.Warnf("Notifier closed, dropping notification for message %s", message.ID)
		return
	}
	n.inFlight.Add(1)
	n.mu.Unlock()

	snapshot := *message
	detached := context.WithoutCancel(ctx)
	go func() {
		defer n.inFlight.Done()
		defer tracing.RecoverAndLogToJaeger(n.log)
		n.dispatch(detached, &snapshot)
	}()
}

func (n *notifier) dispatch(ctx context.Context, message *models.Message) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Notifier.Dispatch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagEntity(span, message.ID)

	claimed, err := n.claimer.ClaimNotification(ctx, message.ID, TriggerCategory)
	if err != nil {
		err = mailerrors.NewNotifyError("claim", message.ID, err)
		tracing.TraceErr(span, err)
		n.log.Errorf("[%s][%s] %v", message.Account, message.Folder, err)
		return
	}
	if !claimed {
		span.LogKV("result", "already notified")
		return
	}

	event := n.buildEvent(message)

	var wg sync.WaitGroup
	for _, sink := range n.sinks {
		wg.Add(1)
		go func(sink interfaces.NotificationSink) {
			defer wg.Done()
			defer tracing.RecoverAndLogToJaeger(n.log)
			n.send(ctx, sink, event)
		}(sink)
	}
	wg.Wait()
}

func (n *notifier) send(ctx context.Context, sink interfaces.NotificationSink, event dto.NotificationEvent) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Notifier.Send")
	defer span.Finish()
	span.SetTag("sink", sink.Name())

	ctx, cancel := context.WithTimeout(ctx, n.config.SinkTimeout)
	defer cancel()

	if err := sink.Send(ctx, event); err != nil {
		err = mailerrors.NewNotifyError(sink.Name(), event.Message.Id, err)
		tracing.TraceErr(span, err)
		n.log.Errorf("[%s][%s] %v", event.Message.Account, event.Message.Folder, err)
		return
	}
	n.log.Infof("[%s][%s] notification %s delivered to %s", event.Message.Account, event.Message.Folder, event.Id, sink.Name())
}

func (n *notifier) buildEvent(message *models.Message) dto.NotificationEvent {
	return dto.NotificationEvent{
		Id: uuid.NewString(),
		Message: dto.NotificationMessage{
			Id:         message.ID,
			Account:    message.Account,
			Folder:     message.Folder,
			Subject:    message.Subject,
			From:       message.From,
			To:         message.To,
			Preview:    decoder.Preview(message.Body, n.config.PreviewLength),
			ReceivedAt: message.ReceivedAt,
		},
		TriggerCategory: TriggerCategory,
		Timestamp:       n.config.Clock(),
	}
}

// Close stops accepting notifications and waits for in-flight ones until ctx is done.
func (n *notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
