package listeners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/services/events"
)

type fakeTrigger struct {
	known     map[string]bool
	triggered []string
}

func (f *fakeTrigger) TriggerImmediateSync(accountId string) bool {
	f.triggered = append(f.triggered, accountId)
	return f.known[accountId]
}

func syncEvent(entityId string, data interface{}) dto.Event {
	return dto.Event{Event: dto.EventDetails{
		EntityId:  entityId,
		EventType: "SyncRequested",
		Data:      data,
	}}
}

func TestSyncRequestListener_Subscription(t *testing.T) {
	l := NewSyncRequestListener(logger.NewNopLogger(), &fakeTrigger{})

	assert.Equal(t, "SyncRequested", l.GetEventType())
	assert.Equal(t, events.QueueSyncRequests, l.GetQueueName())
}

func TestSyncRequestListener_TriggersAccount(t *testing.T) {
	trigger := &fakeTrigger{known: map[string]bool{"acc_1": true}}
	l := NewSyncRequestListener(logger.NewNopLogger(), trigger)

	err := l.Handle(context.Background(), syncEvent("acc_1", map[string]interface{}{"accountId": "acc_1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_1"}, trigger.triggered)
}

func TestSyncRequestListener_FallsBackToEntityId(t *testing.T) {
	trigger := &fakeTrigger{known: map[string]bool{"acc_2": true}}
	l := NewSyncRequestListener(logger.NewNopLogger(), trigger)

	err := l.Handle(context.Background(), syncEvent("acc_2", map[string]interface{}{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"acc_2"}, trigger.triggered)
}

func TestSyncRequestListener_UnknownAccountIsAcked(t *testing.T) {
	trigger := &fakeTrigger{}
	l := NewSyncRequestListener(logger.NewNopLogger(), trigger)

	assert.NoError(t, l.Handle(context.Background(), syncEvent("ghost", map[string]interface{}{"accountId": "ghost"})))
}

func TestSyncRequestListener_InvalidEvent(t *testing.T) {
	trigger := &fakeTrigger{}
	l := NewSyncRequestListener(logger.NewNopLogger(), trigger)

	assert.Error(t, l.Handle(context.Background(), "garbage"))
	assert.Error(t, l.Handle(context.Background(), syncEvent("acc", "not a map")))
	assert.Empty(t, trigger.triggered)
}
