package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/inboxsync/dto"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
	err     error
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{claimed: make(map[string]bool)}
}

func (c *fakeClaimer) ClaimNotification(_ context.Context, id string, _ enum.Category) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.claimed[id] {
		return false, nil
	}
	c.claimed[id] = true
	return true, nil
}

type recorder struct {
	mu     sync.Mutex
	bodies [][]byte
	status int
	delay  time.Duration
}

func (r *recorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.delay > 0 {
			time.Sleep(r.delay)
		}
		var body json.RawMessage
		_ = json.NewDecoder(req.Body).Decode(&body)
		r.mu.Lock()
		r.bodies = append(r.bodies, body)
		status := r.status
		r.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func (r *recorder) first(t *testing.T, v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.bodies)
	require.NoError(t, json.Unmarshal(r.bodies[0], v))
}

func interestedMessage(id string) *models.Message {
	return &models.Message{
		ID:         id,
		Account:    "sales@example.com",
		Folder:     "INBOX",
		Subject:    "Re: proposal",
		From:       "Jane <jane@acme.com>",
		To:         "sales@example.com",
		Body:       "<p>We are <b>interested</b>, let's talk.</p>",
		ReceivedAt: fixedNow.Add(-time.Hour),
		Category:   enum.CategoryInterested,
	}
}

func newTestNotifier(claimer Claimer, sinks ...interfaces.NotificationSink) interfaces.Notifier {
	return NewNotifier(logger.NewNopLogger(), claimer, Config{
		SinkTimeout: 2 * time.Second,
		Clock:       func() time.Time { return fixedNow },
	}, sinks...)
}

func closeNotifier(t *testing.T, n interfaces.Notifier) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, n.Close(ctx))
}

func TestNotify_PayloadsForInterested(t *testing.T) {
	chat, hook := &recorder{}, &recorder{}
	chatSrv := httptest.NewServer(chat.handler())
	defer chatSrv.Close()
	hookSrv := httptest.NewServer(hook.handler())
	defer hookSrv.Close()

	log := logger.NewNopLogger()
	n := newTestNotifier(newFakeClaimer(),
		NewChatSink(chatSrv.URL, nil, log),
		NewWebhookSink(hookSrv.URL, nil, log))

	n.Notify(context.Background(), interestedMessage("m1"))
	closeNotifier(t, n)

	var chatPayload ChatPayload
	chat.first(t, &chatPayload)
	assert.Equal(t, "Re: proposal", chatPayload.Subject)
	assert.Equal(t, "Jane <jane@acme.com>", chatPayload.From)
	assert.Equal(t, "We are interested, let's talk.", chatPayload.BodyPreview)
	assert.Contains(t, chatPayload.Text, "Re: proposal")

	var hookPayload WebhookPayload
	hook.first(t, &hookPayload)
	assert.Equal(t, InterestedEmailReceivedEvent, hookPayload.Event)
	assert.Equal(t, "m1", hookPayload.Email.Id)
	assert.Equal(t, "Re: proposal", hookPayload.Email.Subject)
	assert.True(t, fixedNow.Equal(hookPayload.Timestamp))
}

func TestNotify_IgnoresOtherCategories(t *testing.T) {
	chat := &recorder{}
	srv := httptest.NewServer(chat.handler())
	defer srv.Close()

	claimer := newFakeClaimer()
	n := newTestNotifier(claimer, NewChatSink(srv.URL, nil, logger.NewNopLogger()))

	for _, c := range enum.AllCategories {
		if c == enum.CategoryInterested {
			continue
		}
		m := interestedMessage("m-" + c.String())
		m.Category = c
		n.Notify(context.Background(), m)
	}
	closeNotifier(t, n)

	assert.Equal(t, 0, chat.count())
	assert.Empty(t, claimer.claimed)
}

func TestNotify_AtMostOncePerMessage(t *testing.T) {
	chat := &recorder{}
	srv := httptest.NewServer(chat.handler())
	defer srv.Close()

	n := newTestNotifier(newFakeClaimer(), NewChatSink(srv.URL, nil, logger.NewNopLogger()))
	for i := 0; i < 5; i++ {
		n.Notify(context.Background(), interestedMessage("m1"))
	}
	closeNotifier(t, n)

	assert.Equal(t, 1, chat.count())
}

func TestNotify_SinkFailureIsIsolated(t *testing.T) {
	broken, healthy := &recorder{status: http.StatusInternalServerError}, &recorder{}
	brokenSrv := httptest.NewServer(broken.handler())
	defer brokenSrv.Close()
	healthySrv := httptest.NewServer(healthy.handler())
	defer healthySrv.Close()

	log := logger.NewNopLogger()
	n := newTestNotifier(newFakeClaimer(),
		NewChatSink(brokenSrv.URL, nil, log),
		NewWebhookSink(healthySrv.URL, nil, log))

	n.Notify(context.Background(), interestedMessage("m1"))
	closeNotifier(t, n)

	assert.Equal(t, 1, broken.count())
	assert.Equal(t, 1, healthy.count())
}

func TestNotify_DoesNotBlockCaller(t *testing.T) {
	slow := &recorder{delay: 300 * time.Millisecond}
	srv := httptest.NewServer(slow.handler())
	defer srv.Close()

	n := newTestNotifier(newFakeClaimer(), NewChatSink(srv.URL, nil, logger.NewNopLogger()))

	start := time.Now()
	n.Notify(context.Background(), interestedMessage("m1"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	closeNotifier(t, n)
	assert.Equal(t, 1, slow.count())
}

func TestNotify_SurvivesCallerCancellation(t *testing.T) {
	chat := &recorder{delay: 50 * time.Millisecond}
	srv := httptest.NewServer(chat.handler())
	defer srv.Close()

	n := newTestNotifier(newFakeClaimer(), NewChatSink(srv.URL, nil, logger.NewNopLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	n.Notify(ctx, interestedMessage("m1"))
	cancel()
	closeNotifier(t, n)

	assert.Equal(t, 1, chat.count())
}

func TestNotify_ClaimErrorSkipsDispatch(t *testing.T) {
	chat := &recorder{}
	srv := httptest.NewServer(chat.handler())
	defer srv.Close()

	claimer := newFakeClaimer()
	claimer.err = errors.New("db down")
	n := newTestNotifier(claimer, NewChatSink(srv.URL, nil, logger.NewNopLogger()))
	n.Notify(context.Background(), interestedMessage("m1"))
	closeNotifier(t, n)

	assert.Equal(t, 0, chat.count())
}

func TestNotify_AfterCloseIsDropped(t *testing.T) {
	chat := &recorder{}
	srv := httptest.NewServer(chat.handler())
	defer srv.Close()

	n := newTestNotifier(newFakeClaimer(), NewChatSink(srv.URL, nil, logger.NewNopLogger()))
	closeNotifier(t, n)
	n.Notify(context.Background(), interestedMessage("m1"))
	closeNotifier(t, n)

	assert.Equal(t, 0, chat.count())
}

func TestNewSinks_EmptyURLDisablesSink(t *testing.T) {
	assert.Nil(t, NewChatSink("", nil, logger.NewNopLogger()))
	assert.Nil(t, NewWebhookSink("", nil, logger.NewNopLogger()))
	assert.Nil(t, NewEventSink(nil))
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	broken := &recorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(broken.handler())
	defer srv.Close()

	sink := NewWebhookSink(srv.URL, nil, logger.NewNopLogger())
	event := dto.NotificationEvent{Id: "e1", Message: dto.NotificationMessage{Id: "m1"}, Timestamp: fixedNow}
	for i := 0; i < 8; i++ {
		_ = sink.Send(context.Background(), event)
	}

	assert.Equal(t, 5, broken.count())
}

type fakePublisher struct {
	mu     sync.Mutex
	events []interface{}
}

func (p *fakePublisher) PublishFanoutEvent(context.Context, string, enum.EntityType, interface{}) error {
	return nil
}

func (p *fakePublisher) PublishNotificationEvent(_ context.Context, _ string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, message)
	return nil
}

func (p *fakePublisher) PublishSyncRequest(context.Context, string) error { return nil }

func (p *fakePublisher) Close() error { return nil }

func TestEventSink_PublishesNotificationEvent(t *testing.T) {
	pub := &fakePublisher{}
	n := newTestNotifier(newFakeClaimer(), NewEventSink(pub))

	n.Notify(context.Background(), interestedMessage("m1"))
	closeNotifier(t, n)

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].(dto.NotificationEvent)
	require.True(t, ok)
	assert.Equal(t, enum.CategoryInterested, event.TriggerCategory)
	assert.Equal(t, "m1", event.Message.Id)
	assert.Equal(t, fixedNow, event.Timestamp)
}
