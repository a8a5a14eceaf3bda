package listeners

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services/events"
)

// SyncTrigger is the part of the orchestrator a sync request needs.
type SyncTrigger interface {
	TriggerImmediateSync(accountId string) bool
}

type SyncRequestListener struct {
	events.BaseEventListener
	trigger SyncTrigger
}

func NewSyncRequestListener(logger logger.Logger, trigger SyncTrigger) interfaces.EventListener {
	return &SyncRequestListener{
		BaseEventListener: events.NewBaseEventListener(
			logger,
			events.GetEventType[dto.SyncRequested](),
			events.QueueSyncRequests,
		),
		trigger: trigger,
	}
}

// Handle acks requests for accounts this instance does not run.
func (l *SyncRequestListener) Handle(ctx context.Context, baseEvent any) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncRequestListener.Handle")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)
	tracing.LogObjectAsJson(span, "event", baseEvent)

	validatedEvent, err := l.ValidateBaseEvent(ctx, baseEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	request, err := events.DecodeEventData[dto.SyncRequested](ctx, validatedEvent)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	accountId := request.AccountId
	if accountId == "" {
		accountId = validatedEvent.Event.EntityId
	}
	tracing.TagAccount(span, accountId)

	if !l.trigger.TriggerImmediateSync(accountId) {
		l.Logger().Warnf("[%s] sync requested for unknown account", accountId)
		span.LogKV("triggered", false)
		return nil
	}
	span.LogKV("triggered", true)
	return nil
}
